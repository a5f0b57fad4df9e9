// Package mjcf reads, edits, and exports planar model description files.
//
// A model file is an XML document holding a kinematic tree of bodies,
// the joints connecting them, the actuators driving the joints, and any
// equality constraints between bodies. The package provides a handle to
// the parsed document so that callers can delete named joints, motors,
// and equality constraints before exporting the edited model to a
// temporary file for simulation.
package mjcf

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Model is a handle to a parsed model document
type Model struct {
	XMLName   xml.Name   `xml:"mujoco"`
	Name      string     `xml:"model,attr"`
	Option    Option     `xml:"option"`
	Worldbody Worldbody  `xml:"worldbody"`
	Actuators []Motor    `xml:"actuator>motor"`
	Equality  []Equality `xml:"equality>weld"`
}

// Option holds simulation options
type Option struct {
	Timestep float64 `xml:"timestep,attr"`
	GravityY float64 `xml:"gravity,attr,omitempty"`
}

// Worldbody is the root of the kinematic tree. Geoms attached directly
// to the worldbody are static (e.g. the floor plane).
type Worldbody struct {
	Geoms  []Geom `xml:"geom"`
	Bodies []Body `xml:"body"`
}

// Body is a rigid body in the kinematic tree
type Body struct {
	Name   string  `xml:"name,attr"`
	Pos    string  `xml:"pos,attr"`
	Joints []Joint `xml:"joint"`
	Geoms  []Geom  `xml:"geom"`
	Sites  []Site  `xml:"site"`
	Bodies []Body  `xml:"body"`
}

// Joint connects a body to its parent. Type is "hinge" or "slide".
type Joint struct {
	Name    string  `xml:"name,attr"`
	Type    string  `xml:"type,attr"`
	Axis    string  `xml:"axis,attr,omitempty"`
	Range   string  `xml:"range,attr,omitempty"`
	Damping float64 `xml:"damping,attr,omitempty"`
}

// Geom is a collision/inertial geometry attached to a body. Type is
// "box", "capsule", or "plane" (worldbody only).
type Geom struct {
	Name    string  `xml:"name,attr"`
	Type    string  `xml:"type,attr"`
	Pos     string  `xml:"pos,attr,omitempty"`
	Size    string  `xml:"size,attr"`
	Density float64 `xml:"density,attr,omitempty"`
}

// Site is a named reference frame attached to a body
type Site struct {
	Name string `xml:"name,attr"`
	Pos  string `xml:"pos,attr,omitempty"`
}

// Motor is an actuator applying a generalized force to a joint
type Motor struct {
	Name      string `xml:"name,attr"`
	Joint     string `xml:"joint,attr"`
	CtrlRange string `xml:"ctrlrange,attr"`
	Gear      string `xml:"gear,attr,omitempty"`
}

// Equality is a weld constraint between two bodies
type Equality struct {
	Name  string `xml:"name,attr"`
	Body1 string `xml:"body1,attr"`
	Body2 string `xml:"body2,attr"`
}

// LoadModel reads and parses the model file at path
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loadModel: could not read model file: %v",
			err)
	}
	return Parse(data)
}

// Parse parses a model document
func Parse(data []byte) (*Model, error) {
	var m Model
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse: invalid model document: %v", err)
	}
	if m.Option.Timestep <= 0 {
		m.Option.Timestep = 0.002
	}
	return &m, nil
}

// Vec parses a space-separated attribute such as pos="0 1.25" into its
// float components
func Vec(attr string) ([]float64, error) {
	fields := strings.Fields(attr)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("vec: bad component %q: %v", f, err)
		}
		out[i] = v
	}
	return out, nil
}

// Bodies returns every body in the kinematic tree in depth-first order
func (m *Model) Bodies() []*Body {
	var all []*Body
	var walk func(b *Body)
	walk = func(b *Body) {
		all = append(all, b)
		for i := range b.Bodies {
			walk(&b.Bodies[i])
		}
	}
	for i := range m.Worldbody.Bodies {
		walk(&m.Worldbody.Bodies[i])
	}
	return all
}

// FindBody returns the named body, or nil if no such body exists
func (m *Model) FindBody(name string) *Body {
	for _, b := range m.Bodies() {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Joints returns every joint in the kinematic tree in depth-first order,
// paired with the body each joint belongs to
func (m *Model) Joints() []JointRef {
	var refs []JointRef
	for _, b := range m.Bodies() {
		for i := range b.Joints {
			refs = append(refs, JointRef{Body: b, Joint: &b.Joints[i]})
		}
	}
	return refs
}

// JointRef pairs a joint with its owning body
type JointRef struct {
	Body  *Body
	Joint *Joint
}

// RemoveJoint deletes the named joint from the kinematic tree
func (m *Model) RemoveJoint(name string) error {
	for _, b := range m.Bodies() {
		for i := range b.Joints {
			if b.Joints[i].Name == name {
				b.Joints = append(b.Joints[:i], b.Joints[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("removeJoint: no joint named %q", name)
}

// RemoveActuator deletes the named motor from the actuator list
func (m *Model) RemoveActuator(name string) error {
	for i := range m.Actuators {
		if m.Actuators[i].Name == name {
			m.Actuators = append(m.Actuators[:i], m.Actuators[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("removeActuator: no actuator named %q", name)
}

// RemoveEquality deletes the named equality constraint
func (m *Model) RemoveEquality(name string) error {
	for i := range m.Equality {
		if m.Equality[i].Name == name {
			m.Equality = append(m.Equality[:i], m.Equality[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("removeEquality: no equality constraint named %q", name)
}

// DeleteFromHandle deletes the named joints, motors, and equality
// constraints from a model handle, returning the same handle for
// chaining
func DeleteFromHandle(m *Model, joints, motors,
	equalities []string) (*Model, error) {
	for _, j := range joints {
		if err := m.RemoveJoint(j); err != nil {
			return nil, fmt.Errorf("deleteFromHandle: %v", err)
		}
	}
	for _, mo := range motors {
		if err := m.RemoveActuator(mo); err != nil {
			return nil, fmt.Errorf("deleteFromHandle: %v", err)
		}
	}
	for _, e := range equalities {
		if err := m.RemoveEquality(e); err != nil {
			return nil, fmt.Errorf("deleteFromHandle: %v", err)
		}
	}
	return m, nil
}

// SaveHandle exports the model to fileName inside a fresh temporary
// directory created under tmpDir. If tmpDir is the empty string the
// system temporary directory is used. The caller owns removal of the
// produced directory.
func SaveHandle(m *Model, tmpDir, fileName string) (string, error) {
	if tmpDir != "" {
		if _, err := os.Stat(tmpDir); err != nil {
			return "", fmt.Errorf("saveHandle: specified directory (%q) "+
				"does not exist", tmpDir)
		}
	}

	dir, err := os.MkdirTemp(tmpDir, "model")
	if err != nil {
		return "", fmt.Errorf("saveHandle: could not create temporary "+
			"directory: %v", err)
	}

	data, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("saveHandle: could not marshal model: %v", err)
	}

	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("saveHandle: could not write model file: %v",
			err)
	}
	return path, nil
}
