package physics

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

var _ Physics = (*Simulator)(nil)

type commandKind uint8

const (
	cmdSetTransform commandKind = iota
	cmdSetVelocity
	cmdRelease
)

type command struct {
	kind     commandKind
	handle   Handle
	position mgl32.Vec3
	rotation mgl32.Quat
	linear   mgl32.Vec3
	angular  mgl32.Vec3
}

type body struct {
	params   RigidBodyParams
	position mgl32.Vec3
	rotation mgl32.Quat
	linear   mgl32.Vec3
	angular  mgl32.Vec3
	stepped  bool
}

// Simulator integrates dynamic bodies under gravity with semi-implicit Euler.
// It has no collision detection; it exists so the scene round trip through a
// physics capability can run headless.
type Simulator struct {
	mu          sync.Mutex
	gravity     mgl32.Vec3
	next        Handle
	bodies      map[Handle]*body
	constraints map[Handle]ConstraintParams
	queue       []command
}

func NewSimulator(gravity mgl32.Vec3) *Simulator {
	return &Simulator{
		gravity:     gravity,
		bodies:      make(map[Handle]*body),
		constraints: make(map[Handle]ConstraintParams),
	}
}

func (s *Simulator) AddRigidBody(p RigidBodyParams) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	rot := p.Rotation
	if rot == (mgl32.Quat{}) {
		rot = mgl32.QuatIdent()
	}
	s.next++
	s.bodies[s.next] = &body{params: p, position: p.Position, rotation: rot}
	return s.next
}

func (s *Simulator) AddConstraint(p ConstraintParams) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.constraints[s.next] = p
	return s.next
}

func (s *Simulator) SetTransform(h Handle, position mgl32.Vec3, rotation mgl32.Quat) {
	s.enqueue(command{kind: cmdSetTransform, handle: h, position: position, rotation: rotation})
}

func (s *Simulator) SetVelocity(h Handle, linear, angular mgl32.Vec3) {
	s.enqueue(command{kind: cmdSetVelocity, handle: h, linear: linear, angular: angular})
}

func (s *Simulator) Release(h Handle) {
	s.enqueue(command{kind: cmdRelease, handle: h})
}

func (s *Simulator) enqueue(c command) {
	s.mu.Lock()
	s.queue = append(s.queue, c)
	s.mu.Unlock()
}

func (s *Simulator) Pose(h Handle) (mgl32.Mat4, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bodies[h]
	if !ok || !b.stepped {
		return mgl32.Ident4(), false
	}
	return mgl32.Translate3D(b.position[0], b.position[1], b.position[2]).Mul4(b.rotation.Mat4()), true
}

// Step drains the command queue and advances every dynamic body by dt.
func (s *Simulator) Step(dt float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.queue {
		s.apply(c)
	}
	s.queue = s.queue[:0]

	for _, b := range s.bodies {
		if b.params.Mass > 0 {
			b.linear = b.linear.Add(s.gravity.Mul(dt))
			b.position = b.position.Add(b.linear.Mul(dt))
			if b.angular.Len() > 0 {
				w := mgl32.Quat{W: 0, V: b.angular}
				spin := w.Mul(b.rotation).Scale(0.5 * dt)
				b.rotation = b.rotation.Add(spin).Normalize()
			}
		}
		b.stepped = true
	}
}

func (s *Simulator) apply(c command) {
	if c.kind == cmdRelease {
		delete(s.bodies, c.handle)
		delete(s.constraints, c.handle)
		return
	}
	b, ok := s.bodies[c.handle]
	if !ok {
		return
	}
	switch c.kind {
	case cmdSetTransform:
		b.position = c.position
		b.rotation = c.rotation
	case cmdSetVelocity:
		b.linear = c.linear
		b.angular = c.angular
	}
}

// Bodies returns the number of live rigid bodies.
func (s *Simulator) Bodies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

// Constraints returns the number of live constraints.
func (s *Simulator) Constraints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.constraints)
}

// Pending reports how many commands wait for the next Step.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
