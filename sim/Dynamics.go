package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/ByteArena/box2d"

	"github.com/kiwi-sherbet/loco-mujoco/utils/floatutils"
)

// Forward pushes the owned joint state (qpos, qvel) into the Box2D
// body transforms and velocities without advancing time. Bodies are
// stored parents-first, so one pass suffices.
func (p *Planar) Forward() {
	for _, body := range p.bodies {
		var parentAngle, parentW float64
		parentPos := box2d.MakeB2Vec2(0, 0)
		parentVel := box2d.MakeB2Vec2(0, 0)
		parentRest := box2d.MakeB2Vec2(0, 0)
		if body.parentIdx >= 0 {
			parent := p.bodies[body.parentIdx].b2
			parentAngle = parent.GetAngle()
			parentW = parent.GetAngularVelocity()
			parentPos = parent.GetPosition()
			parentVel = parent.GetLinearVelocity()
			parentRest = p.bodies[body.parentIdx].restPos
		}

		pos := box2d.MakeB2Vec2(body.restPos.X, body.restPos.Y)
		angle := parentAngle
		vel := parentVel
		w := parentW

		if body.parentIdx >= 0 {
			// place the child at the joint anchor: rotate the rest
			// offset into the parent's current frame
			local := box2d.MakeB2Vec2(body.restPos.X-parentRest.X,
				body.restPos.Y-parentRest.Y)
			r := rotate(local, parentAngle)
			pos = box2d.MakeB2Vec2(parentPos.X+r.X, parentPos.Y+r.Y)

			// v_child = v_parent + w_parent x r
			vel = box2d.MakeB2Vec2(parentVel.X-parentW*r.Y,
				parentVel.Y+parentW*r.X)
		}

		for _, jIdx := range body.jointIdxs {
			j := p.joints[jIdx]
			switch j.kind {
			case freeX:
				pos.X = body.restPos.X + p.qpos[jIdx]
				vel.X = p.qvel[jIdx]
			case freeY:
				pos.Y = body.restPos.Y + p.qpos[jIdx]
				vel.Y = p.qvel[jIdx]
			case freeRot:
				angle = p.qpos[jIdx]
				w = p.qvel[jIdx]
			case revolute:
				angle += p.qpos[jIdx]
				w += p.qvel[jIdx]
			case prismatic:
				d := rotate(j.axis, parentAngle)
				pos.X += d.X * p.qpos[jIdx]
				pos.Y += d.Y * p.qpos[jIdx]
				vel.X += d.X * p.qvel[jIdx]
				vel.Y += d.Y * p.qvel[jIdx]
			}
		}

		b2 := body.b2
		b2.SetTransform(pos, angle)
		b2.SetLinearVelocity(vel)
		b2.SetAngularVelocity(w)
	}
}

// Step applies the current control vector as generalized forces,
// advances the world by one timestep, and reads the joint state back
// out of the integrated body transforms.
func (p *Planar) Step() {
	p.contacts.clear()

	for i, a := range p.actuators {
		u := floatutils.ClipInterval(p.control[i], a.bounds) * a.gear
		j := p.joints[a.jointIdx]
		body := p.bodies[j.bodyIdx]

		var parent *box2d.B2Body
		if body.parentIdx >= 0 {
			parent = p.bodies[body.parentIdx].b2
		} else {
			parent = p.ground
		}

		switch j.kind {
		case revolute, freeRot:
			body.b2.ApplyTorque(u, true)
			parent.ApplyTorque(-u, true)
		case prismatic, freeX, freeY:
			axis := j.axis
			if j.kind == freeX {
				axis = box2d.MakeB2Vec2(1, 0)
			} else if j.kind == freeY {
				axis = box2d.MakeB2Vec2(0, 1)
			}
			d := rotate(axis, parent.GetAngle())
			f := box2d.MakeB2Vec2(d.X*u, d.Y*u)
			body.b2.ApplyForceToCenter(f, true)
			parent.ApplyForceToCenter(box2d.MakeB2Vec2(-f.X, -f.Y), true)
		}
	}

	p.world.Step(p.timestep, velocityIterations, positionIterations)
	p.syncFromWorld()
}

// syncFromWorld reads qpos/qvel back from the integrated bodies
func (p *Planar) syncFromWorld() {
	for jIdx, j := range p.joints {
		body := p.bodies[j.bodyIdx]
		switch j.kind {
		case freeX:
			p.qpos[jIdx] = body.b2.GetPosition().X - body.restPos.X
			p.qvel[jIdx] = body.b2.GetLinearVelocity().X
		case freeY:
			p.qpos[jIdx] = body.b2.GetPosition().Y - body.restPos.Y
			p.qvel[jIdx] = body.b2.GetLinearVelocity().Y
		case freeRot:
			p.qpos[jIdx] = body.b2.GetAngle()
			p.qvel[jIdx] = body.b2.GetAngularVelocity()
		case revolute:
			p.qpos[jIdx] = j.b2Revolute.GetJointAngle()
			p.qvel[jIdx] = j.b2Revolute.GetJointSpeed()
		case prismatic:
			p.qpos[jIdx] = j.b2Prismatic.GetJointTranslation()
			p.qvel[jIdx] = j.b2Prismatic.GetJointSpeed()
		}
	}
}

// CollisionForce returns the contact force currently acting between
// two collision groups as a 6-vector; the first three entries are the
// Cartesian force components. Forces are derived from the constraint
// impulses of the most recent Step.
func (p *Planar) CollisionForce(groupA, groupB string) ([]float64, error) {
	geomsA, ok := p.groups[groupA]
	if !ok {
		return nil, fmt.Errorf("collisionForce: no collision group %q",
			groupA)
	}
	geomsB, ok := p.groups[groupB]
	if !ok {
		return nil, fmt.Errorf("collisionForce: no collision group %q",
			groupB)
	}

	force := make([]float64, 6)
	for _, a := range geomsA {
		for _, b := range geomsB {
			fx, fy := p.contacts.force(a, b)
			force[0] += fx
			force[1] += fy
		}
	}
	return force, nil
}

func rotate(v box2d.B2Vec2, angle float64) box2d.B2Vec2 {
	c, s := math.Cos(angle), math.Sin(angle)
	return box2d.MakeB2Vec2(c*v.X-s*v.Y, s*v.X+c*v.Y)
}

// contactAccumulator sums constraint impulses per geom pair during a
// world step so that CollisionForce can report contact forces
type contactAccumulator struct {
	sim      *Planar
	impulses map[geomPair][2]float64
}

type geomPair struct {
	a, b string
}

func makeGeomPair(a, b string) geomPair {
	s := []string{a, b}
	sort.Strings(s)
	return geomPair{s[0], s[1]}
}

func newContactAccumulator(p *Planar) *contactAccumulator {
	return &contactAccumulator{
		sim:      p,
		impulses: make(map[geomPair][2]float64),
	}
}

func (c *contactAccumulator) clear() {
	for k := range c.impulses {
		delete(c.impulses, k)
	}
}

// force returns the force between two geoms accumulated over the last
// step. The normal impulse is reported on the vertical axis and the
// tangent impulse on the horizontal axis, which is exact for flat
// ground contacts.
func (c *contactAccumulator) force(a, b string) (fx, fy float64) {
	imp, ok := c.impulses[makeGeomPair(a, b)]
	if !ok {
		return 0, 0
	}
	dt := c.sim.timestep
	return imp[0] / dt, imp[1] / dt
}

func (c *contactAccumulator) BeginContact(box2d.B2ContactInterface) {}
func (c *contactAccumulator) EndContact(box2d.B2ContactInterface)  {}
func (c *contactAccumulator) PreSolve(box2d.B2ContactInterface,
	box2d.B2Manifold) {
}

func (c *contactAccumulator) PostSolve(contact box2d.B2ContactInterface,
	impulse *box2d.B2ContactImpulse) {
	geomA, okA := c.sim.fixtureGeom[contact.GetFixtureA()]
	geomB, okB := c.sim.fixtureGeom[contact.GetFixtureB()]
	if !okA || !okB {
		return
	}

	var normal, tangent float64
	for i := 0; i < contact.GetManifold().PointCount; i++ {
		normal += impulse.NormalImpulses[i]
		tangent += impulse.TangentImpulses[i]
	}

	pair := makeGeomPair(geomA, geomB)
	acc := c.impulses[pair]
	acc[0] += tangent
	acc[1] += normal
	c.impulses[pair] = acc
}
