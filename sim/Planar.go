package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/ByteArena/box2d"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/kiwi-sherbet/loco-mujoco/mjcf"
)

const (
	defaultGravity = -9.81
	defaultDensity = 1.0
	groundFriction = 0.9

	velocityIterations = 8
	positionIterations = 3
)

// jointKind discriminates how a joint maps onto the Box2D world. A
// root body carrying the slide-x/slide-y/hinge triple is free-floating
// in the plane and needs no Box2D joint at all; its three joints read
// and write the body transform directly.
type jointKind int

const (
	freeX jointKind = iota
	freeY
	freeRot
	revolute
	prismatic
)

type planarJoint struct {
	name    string
	kind    jointKind
	bodyIdx int
	limits  r1.Interval
	limited bool

	// anchor of the joint in the parent body's rest frame and the
	// slide axis in that frame; unused for free joints
	localAnchor box2d.B2Vec2
	axis        box2d.B2Vec2

	b2Revolute  *box2d.B2RevoluteJoint
	b2Prismatic *box2d.B2PrismaticJoint
}

type planarBody struct {
	name      string
	b2        *box2d.B2Body
	parentIdx int // -1 for bodies attached to the worldbody

	restPos   box2d.B2Vec2 // world position with all joints at zero
	jointIdxs []int        // joints connecting this body to its parent
}

type planarSite struct {
	name    string
	bodyIdx int
	local   box2d.B2Vec2
}

type planarActuator struct {
	name     string
	jointIdx int
	bounds   r1.Interval
	gear     float64
}

// Planar is a Simulator for planar rigid-body models built from an
// mjcf.Model. Bodies become Box2D dynamic bodies, hinge joints become
// revolute joints, slide joints become prismatic joints, and a body
// whose joints form the slide-x/slide-y/hinge triple floats freely.
type Planar struct {
	world    box2d.B2World
	timestep float64

	bodies  []*planarBody
	bodyIdx map[string]int

	joints   []*planarJoint
	jointIdx map[string]int

	sites   []*planarSite
	siteIdx map[string]int

	actuators []*planarActuator
	control   []float64

	// joint state owned by the simulator; Forward pushes it into body
	// transforms, Step reads it back out after integration
	qpos, qvel         []float64
	initQPos, initQVel []float64

	groups      map[string][]string
	fixtureGeom map[*box2d.B2Fixture]string
	contacts    *contactAccumulator

	ground *box2d.B2Body
}

// NewPlanar builds a planar simulation from a model. The groups
// argument maps collision-group keys to the geom names belonging to
// each group, for later CollisionForce queries.
func NewPlanar(model *mjcf.Model,
	groups map[string][]string) (*Planar, error) {
	gravity := model.Option.GravityY
	if gravity == 0 {
		gravity = defaultGravity
	}

	p := &Planar{
		world:       box2d.MakeB2World(box2d.MakeB2Vec2(0.0, gravity)),
		timestep:    model.Option.Timestep,
		bodyIdx:     make(map[string]int),
		jointIdx:    make(map[string]int),
		siteIdx:     make(map[string]int),
		groups:      make(map[string][]string),
		fixtureGeom: make(map[*box2d.B2Fixture]string),
	}
	for key, names := range groups {
		p.groups[key] = append([]string(nil), names...)
	}

	if err := p.buildGround(model); err != nil {
		return nil, fmt.Errorf("newPlanar: %v", err)
	}
	for i := range model.Worldbody.Bodies {
		if err := p.buildBody(&model.Worldbody.Bodies[i], -1,
			box2d.MakeB2Vec2(0, 0)); err != nil {
			return nil, fmt.Errorf("newPlanar: %v", err)
		}
	}
	if err := p.buildActuators(model); err != nil {
		return nil, fmt.Errorf("newPlanar: %v", err)
	}

	p.qpos = make([]float64, len(p.joints))
	p.qvel = make([]float64, len(p.joints))
	p.control = make([]float64, len(p.actuators))
	p.Forward()

	p.initQPos = append([]float64(nil), p.qpos...)
	p.initQVel = append([]float64(nil), p.qvel...)

	p.contacts = newContactAccumulator(p)
	p.world.SetContactListener(p.contacts)

	return p, nil
}

// buildGround creates one static body holding every geom attached
// directly to the worldbody (the floor plane and any obstacles).
func (p *Planar) buildGround(model *mjcf.Model) error {
	def := box2d.MakeB2BodyDef()
	ground := p.world.CreateBody(&def)
	p.ground = ground

	for _, g := range model.Worldbody.Geoms {
		pos, err := geomPos(g)
		if err != nil {
			return err
		}
		size, err := mjcf.Vec(g.Size)
		if err != nil {
			return fmt.Errorf("bad size for geom %q: %v", g.Name, err)
		}

		switch g.Type {
		case "plane":
			shape := box2d.NewB2EdgeShape()
			shape.Set(box2d.MakeB2Vec2(pos.X-size[0], pos.Y),
				box2d.MakeB2Vec2(pos.X+size[0], pos.Y))
			fixDef := box2d.MakeB2FixtureDef()
			fixDef.Shape = shape
			fixDef.Friction = groundFriction
			fix := ground.CreateFixtureFromDef(&fixDef)
			p.fixtureGeom[fix] = g.Name
		case "box":
			shape := box2d.NewB2PolygonShape()
			shape.SetAsBoxFromCenterAndAngle(size[0], size[1], pos, 0.0)
			fixDef := box2d.MakeB2FixtureDef()
			fixDef.Shape = shape
			fixDef.Friction = groundFriction
			fix := ground.CreateFixtureFromDef(&fixDef)
			p.fixtureGeom[fix] = g.Name
		default:
			return fmt.Errorf("unsupported worldbody geom type %q", g.Type)
		}
	}
	return nil
}

// buildBody creates the Box2D body for one model body and recurses
// into its children. parentPos is the parent's rest world position.
func (p *Planar) buildBody(b *mjcf.Body, parentIdx int,
	parentPos box2d.B2Vec2) error {
	offset, err := bodyPos(b)
	if err != nil {
		return err
	}
	restPos := box2d.MakeB2Vec2(parentPos.X+offset.X, parentPos.Y+offset.Y)

	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_dynamicBody
	def.Position = restPos
	b2body := p.world.CreateBody(&def)

	body := &planarBody{
		name:      b.Name,
		b2:        b2body,
		parentIdx: parentIdx,
		restPos:   restPos,
	}
	idx := len(p.bodies)
	if _, ok := p.bodyIdx[b.Name]; ok {
		return fmt.Errorf("duplicate body name %q", b.Name)
	}
	p.bodies = append(p.bodies, body)
	p.bodyIdx[b.Name] = idx

	for _, g := range b.Geoms {
		if err := p.attachGeom(b2body, g); err != nil {
			return err
		}
	}

	for _, s := range b.Sites {
		local := box2d.MakeB2Vec2(0, 0)
		if s.Pos != "" {
			v, err := mjcf.Vec(s.Pos)
			if err != nil || len(v) < 2 {
				return fmt.Errorf("bad pos for site %q", s.Name)
			}
			local = box2d.MakeB2Vec2(v[0], v[1])
		}
		p.siteIdx[s.Name] = len(p.sites)
		p.sites = append(p.sites, &planarSite{s.Name, idx, local})
	}

	if err := p.buildJoints(b, body, idx); err != nil {
		return err
	}

	for i := range b.Bodies {
		if err := p.buildBody(&b.Bodies[i], idx, restPos); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planar) attachGeom(b2body *box2d.B2Body, g mjcf.Geom) error {
	size, err := mjcf.Vec(g.Size)
	if err != nil || len(size) == 0 {
		return fmt.Errorf("bad size for geom %q", g.Name)
	}
	center, err := geomPos(g)
	if err != nil {
		return err
	}

	var hx, hy float64
	switch g.Type {
	case "box":
		if len(size) < 2 {
			return fmt.Errorf("box geom %q needs two size components",
				g.Name)
		}
		hx, hy = size[0], size[1]
	case "capsule":
		// capsules are approximated by their bounding box
		if len(size) < 2 {
			return fmt.Errorf("capsule geom %q needs two size components",
				g.Name)
		}
		hx, hy = size[0], size[1]+size[0]
	default:
		return fmt.Errorf("unsupported geom type %q on geom %q", g.Type,
			g.Name)
	}

	shape := box2d.NewB2PolygonShape()
	shape.SetAsBoxFromCenterAndAngle(hx, hy, center, 0.0)

	density := g.Density
	if density == 0 {
		density = defaultDensity
	}

	fixDef := box2d.MakeB2FixtureDef()
	fixDef.Shape = shape
	fixDef.Density = density
	fixDef.Friction = groundFriction
	fixDef.Restitution = 0.0
	fix := b2body.CreateFixtureFromDef(&fixDef)
	p.fixtureGeom[fix] = g.Name
	return nil
}

// buildJoints registers the joints of one body. The slide-x/slide-y/
// hinge triple on a worldbody child is recognized as a free base and
// creates no Box2D joint; everything else becomes a revolute or
// prismatic joint against the parent (or the ground when the parent is
// the worldbody).
func (p *Planar) buildJoints(b *mjcf.Body, body *planarBody,
	idx int) error {
	if body.parentIdx < 0 && isFreeBase(b.Joints) {
		kinds := []jointKind{freeX, freeY, freeRot}
		for i, j := range b.Joints {
			p.addJoint(&planarJoint{
				name:    j.Name,
				kind:    kinds[i],
				bodyIdx: idx,
			}, body)
		}
		return nil
	}

	parentB2 := p.ground
	parentRest := box2d.MakeB2Vec2(0, 0)
	if body.parentIdx >= 0 {
		parentB2 = p.bodies[body.parentIdx].b2
		parentRest = p.bodies[body.parentIdx].restPos
	}
	localAnchor := box2d.MakeB2Vec2(body.restPos.X-parentRest.X,
		body.restPos.Y-parentRest.Y)

	for _, j := range b.Joints {
		pj := &planarJoint{
			name:        j.Name,
			bodyIdx:     idx,
			localAnchor: localAnchor,
		}
		if j.Range != "" {
			r, err := mjcf.Vec(j.Range)
			if err != nil || len(r) != 2 {
				return fmt.Errorf("bad range for joint %q", j.Name)
			}
			pj.limits = r1.Interval{Min: r[0], Max: r[1]}
			pj.limited = true
		}

		switch j.Type {
		case "hinge":
			pj.kind = revolute
			jd := box2d.MakeB2RevoluteJointDef()
			jd.BodyA = parentB2
			jd.BodyB = body.b2
			jd.LocalAnchorA = localAnchor
			jd.LocalAnchorB = box2d.MakeB2Vec2(0, 0)
			if pj.limited {
				jd.EnableLimit = true
				jd.LowerAngle = pj.limits.Min
				jd.UpperAngle = pj.limits.Max
			}
			pj.b2Revolute = p.world.CreateJoint(&jd).(*box2d.B2RevoluteJoint)
		case "slide":
			pj.kind = prismatic
			axis, err := jointAxis(j)
			if err != nil {
				return err
			}
			pj.axis = axis
			jd := box2d.MakeB2PrismaticJointDef()
			jd.BodyA = parentB2
			jd.BodyB = body.b2
			jd.LocalAnchorA = localAnchor
			jd.LocalAnchorB = box2d.MakeB2Vec2(0, 0)
			jd.LocalAxisA = axis
			if pj.limited {
				jd.EnableLimit = true
				jd.LowerTranslation = pj.limits.Min
				jd.UpperTranslation = pj.limits.Max
			}
			pj.b2Prismatic = p.world.CreateJoint(&jd).(*box2d.B2PrismaticJoint)
		default:
			return fmt.Errorf("unsupported joint type %q on joint %q",
				j.Type, j.Name)
		}
		p.addJoint(pj, body)
	}
	return nil
}

func (p *Planar) addJoint(j *planarJoint, body *planarBody) {
	idx := len(p.joints)
	p.joints = append(p.joints, j)
	p.jointIdx[j.name] = idx
	body.jointIdxs = append(body.jointIdxs, idx)
}

func (p *Planar) buildActuators(model *mjcf.Model) error {
	for _, m := range model.Actuators {
		jIdx, ok := p.jointIdx[m.Joint]
		if !ok {
			return fmt.Errorf("actuator %q drives unknown joint %q",
				m.Name, m.Joint)
		}
		bounds := r1.Interval{Min: math.Inf(-1), Max: math.Inf(1)}
		if m.CtrlRange != "" {
			r, err := mjcf.Vec(m.CtrlRange)
			if err != nil || len(r) != 2 {
				return fmt.Errorf("bad ctrlrange for actuator %q", m.Name)
			}
			bounds = r1.Interval{Min: r[0], Max: r[1]}
		}
		gear := 1.0
		if m.Gear != "" {
			g, err := mjcf.Vec(m.Gear)
			if err != nil || len(g) == 0 {
				return fmt.Errorf("bad gear for actuator %q", m.Name)
			}
			gear = g[0]
		}
		p.actuators = append(p.actuators, &planarActuator{
			name:     m.Name,
			jointIdx: jIdx,
			bounds:   bounds,
			gear:     gear,
		})
	}
	return nil
}

func isFreeBase(joints []mjcf.Joint) bool {
	if len(joints) != 3 {
		return false
	}
	return joints[0].Type == "slide" && joints[1].Type == "slide" &&
		joints[2].Type == "hinge"
}

func bodyPos(b *mjcf.Body) (box2d.B2Vec2, error) {
	if b.Pos == "" {
		return box2d.MakeB2Vec2(0, 0), nil
	}
	v, err := mjcf.Vec(b.Pos)
	if err != nil || len(v) < 2 {
		return box2d.B2Vec2{}, fmt.Errorf("bad pos for body %q", b.Name)
	}
	return box2d.MakeB2Vec2(v[0], v[1]), nil
}

func geomPos(g mjcf.Geom) (box2d.B2Vec2, error) {
	if g.Pos == "" {
		return box2d.MakeB2Vec2(0, 0), nil
	}
	v, err := mjcf.Vec(g.Pos)
	if err != nil || len(v) < 2 {
		return box2d.B2Vec2{}, fmt.Errorf("bad pos for geom %q", g.Name)
	}
	return box2d.MakeB2Vec2(v[0], v[1]), nil
}

func jointAxis(j mjcf.Joint) (box2d.B2Vec2, error) {
	if j.Axis == "" {
		return box2d.MakeB2Vec2(1, 0), nil
	}
	v, err := mjcf.Vec(j.Axis)
	if err != nil || len(v) < 2 {
		return box2d.B2Vec2{}, fmt.Errorf("bad axis for joint %q", j.Name)
	}
	return box2d.MakeB2Vec2(v[0], v[1]), nil
}

// Timestep returns the integration timestep in seconds
func (p *Planar) Timestep() float64 {
	return p.timestep
}

// ActuatorNames returns actuator names in control vector order
func (p *Planar) ActuatorNames() []string {
	names := make([]string, len(p.actuators))
	for i, a := range p.actuators {
		names[i] = a.name
	}
	return names
}

// ControlBounds returns the native control bounds in control vector
// order
func (p *Planar) ControlBounds() (low, high []float64) {
	low = make([]float64, len(p.actuators))
	high = make([]float64, len(p.actuators))
	for i, a := range p.actuators {
		low[i] = a.bounds.Min
		high[i] = a.bounds.Max
	}
	return low, high
}

// SetControl sets the control vector applied on subsequent steps
func (p *Planar) SetControl(u []float64) error {
	if len(u) != len(p.actuators) {
		return fmt.Errorf("setControl: invalid control dimensions \n\t"+
			"have(%v) \n\twant(%v)", len(u), len(p.actuators))
	}
	copy(p.control, u)
	return nil
}

// JointHandle resolves a joint name to a handle
func (p *Planar) JointHandle(name string) (int, error) {
	idx, ok := p.jointIdx[name]
	if !ok {
		return 0, fmt.Errorf("jointHandle: no joint named %q (have: %v)",
			name, strings.Join(p.jointNames(), ", "))
	}
	return idx, nil
}

func (p *Planar) jointNames() []string {
	names := make([]string, len(p.joints))
	for i, j := range p.joints {
		names[i] = j.name
	}
	return names
}

// JointPos returns the position of a joint
func (p *Planar) JointPos(handle int) float64 {
	return p.qpos[handle]
}

// SetJointPos writes a joint position
func (p *Planar) SetJointPos(handle int, value float64) {
	p.qpos[handle] = value
}

// JointVel returns the velocity of a joint
func (p *Planar) JointVel(handle int) float64 {
	return p.qvel[handle]
}

// SetJointVel writes a joint velocity
func (p *Planar) SetJointVel(handle int, value float64) {
	p.qvel[handle] = value
}

// JointLimits returns the position limits of a joint
func (p *Planar) JointLimits(handle int) (r1.Interval, bool) {
	j := p.joints[handle]
	return j.limits, j.limited
}

// SiteHandle resolves a site name to a handle
func (p *Planar) SiteHandle(name string) (int, error) {
	idx, ok := p.siteIdx[name]
	if !ok {
		return 0, fmt.Errorf("siteHandle: no site named %q", name)
	}
	return idx, nil
}

// SiteRot returns the 3x3 world rotation matrix of a site. Planar
// rotations are about the out-of-plane axis.
func (p *Planar) SiteRot(handle int) *mat.Dense {
	angle := p.bodies[p.sites[handle].bodyIdx].b2.GetAngle()
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// SetSiteRot writes the rotation of the site's owning body from a 3x3
// rotation matrix. The owning body must carry a rotational joint.
func (p *Planar) SetSiteRot(handle int, rot *mat.Dense) error {
	r, c := rot.Dims()
	if r != 3 || c != 3 {
		return fmt.Errorf("setSiteRot: rotation must be 3x3, got %vx%v",
			r, c)
	}
	angle := math.Atan2(rot.At(1, 0), rot.At(0, 0))

	bodyIdx := p.sites[handle].bodyIdx
	for _, jIdx := range p.bodies[bodyIdx].jointIdxs {
		j := p.joints[jIdx]
		if j.kind == freeRot || j.kind == revolute {
			parentAngle := 0.0
			if p.bodies[bodyIdx].parentIdx >= 0 {
				parentAngle =
					p.bodies[p.bodies[bodyIdx].parentIdx].b2.GetAngle()
			}
			p.qpos[jIdx] = angle - parentAngle
			return nil
		}
	}
	return fmt.Errorf("setSiteRot: body %q has no rotational joint",
		p.bodies[bodyIdx].name)
}

// Reset restores the simulation to its initial state
func (p *Planar) Reset() {
	copy(p.qpos, p.initQPos)
	copy(p.qvel, p.initQVel)
	for i := range p.control {
		p.control[i] = 0
	}
	p.contacts.clear()
	p.Forward()
}
