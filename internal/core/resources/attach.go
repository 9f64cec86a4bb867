package resources

import (
	"github.com/zeusync/scenery/internal/core/ecs"
)

// AttachGeometry binds the mesh of file to e and records the file and mesh
// names in the scene string table.
func (l *Library) AttachGeometry(s *ecs.Scene, e ecs.EntityID, file string) error {
	g, err := l.Geometry(file)
	if err != nil {
		return err
	}
	s.Intern(g.File)
	s.Intern(g.Name)
	s.SetGeometry(e, g.Geometry, g.Min, g.Max)
	return nil
}

// AttachMaterial binds the material of file to e along with its samplers.
func (l *Library) AttachMaterial(s *ecs.Scene, e ecs.EntityID, file string) error {
	m, err := l.Material(file)
	if err != nil {
		return err
	}
	for _, str := range m.Strings {
		s.Intern(str)
	}
	s.SetMaterial(e, m.Material, m.Data)
	if m.Textures > 0 {
		s.Samplers.Set(e, m.Samplers)
		s.Add(e, ecs.CmpSamplers)
	}
	return nil
}

// PlayClip binds the clip of file to the controller e and returns the
// instance index.
func (l *Library) PlayClip(s *ecs.Scene, e ecs.EntityID, file string) (int, error) {
	c, err := l.Clip(file)
	if err != nil {
		return 0, err
	}
	s.Intern(file)
	return s.BindClip(e, c), nil
}
