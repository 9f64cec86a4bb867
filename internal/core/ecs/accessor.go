package ecs

// Accessor reads a column through its membership bit. Get fails loudly when
// the row does not carry the component.
type Accessor[T any] struct {
	scene *Scene
	col   *Column[T]
	bit   Component
}

func Require[T any](s *Scene, col *Column[T], bit Component) Accessor[T] {
	return Accessor[T]{scene: s, col: col, bit: bit}
}

func (a Accessor[T]) Get(e EntityID) *T {
	if !a.scene.Has(e, a.bit) {
		panic(&ComponentNotSetError{Entity: e, Component: a.bit, Column: a.col.name})
	}
	return &a.col.data[e]
}

func (a Accessor[T]) Lookup(e EntityID) (*T, bool) {
	if !a.scene.Has(e, a.bit) {
		return nil, false
	}
	return &a.col.data[e], true
}

// Typed accessors for the built-in component columns.

func (s *Scene) Light(e EntityID) *Light {
	return Require(s, s.Lights, CmpLight).Get(e)
}

func (s *Scene) Geometry(e EntityID) *Geometry {
	return Require(s, s.Geometries, CmpGeometry).Get(e)
}

func (s *Scene) Material(e EntityID) *Material {
	return Require(s, s.Materials, CmpMaterial).Get(e)
}

func (s *Scene) AnimController(e EntityID) *AnimController {
	return Require(s, s.AnimControllers, CmpAnimController).Get(e)
}
