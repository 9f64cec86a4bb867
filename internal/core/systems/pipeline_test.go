package systems

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenery/internal/core/anim"
	"github.com/zeusync/scenery/internal/core/ecs"
	"github.com/zeusync/scenery/internal/core/maths"
	"github.com/zeusync/scenery/internal/core/observability/log"
	"github.com/zeusync/scenery/internal/core/render"
	"github.com/zeusync/scenery/internal/core/systems/physics"
)

type fixture struct {
	scene    *ecs.Scene
	pipeline *Pipeline
	renderer *render.Recorder
	physics  *physics.Simulator
}

func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()
	r := render.NewRecorder()
	p := physics.NewSimulator(mgl32.Vec3{0, -10, 0})
	s := ecs.NewScene(ecs.DefaultConfig(), r, p, log.NewNop())
	return fixture{
		scene:    s,
		pipeline: NewPipeline(cfg, s, log.NewNop()),
		renderer: r,
		physics:  p,
	}
}

func translated(v mgl32.Vec3) maths.Transform {
	t := maths.IdentityTransform()
	t.Translation = v
	return t
}

func TestChildrenInheritParentTranslation(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	s.Allocate()
	a, b, c := s.Allocate(), s.Allocate(), s.Allocate()
	require.Equal(t, []ecs.EntityID{1, 2, 3}, []ecs.EntityID{a, b, c})
	s.Parents.Set(b, a)
	s.Parents.Set(c, a)
	s.SetTransform(a, translated(mgl32.Vec3{10, 0, 0}))

	f.pipeline.Update(1.0 / 60)

	assert.Equal(t, mgl32.Vec3{10, 0, 0}, maths.Translation(s.WorldMatrices.Get(b)))
	assert.Equal(t, mgl32.Vec3{10, 0, 0}, maths.Translation(s.WorldMatrices.Get(c)))
	assert.False(t, s.Has(a, ecs.CmpTransform))
}

func TestWorldMatrixIsParentTimesLocal(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	prev := s.Allocate()
	s.SetTransform(prev, translated(mgl32.Vec3{1, 2, 3}))
	for i := 0; i < 6; i++ {
		e := s.Allocate()
		s.Parents.Set(e, prev)
		tr := translated(mgl32.Vec3{float32(i), 1, 0})
		tr.Rotation = mgl32.QuatRotate(0.3*float32(i), mgl32.Vec3{0, 1, 0})
		tr.Scale = mgl32.Vec3{1.1, 1.1, 1.1}
		s.SetTransform(e, tr)
		prev = e
	}

	f.pipeline.Update(0)

	for i := 0; i < s.Len(); i++ {
		e := ecs.EntityID(i)
		if s.IsRoot(e) {
			assert.True(t, s.WorldMatrices.Get(e).ApproxEqual(s.LocalMatrices.Get(e)))
			continue
		}
		want := s.WorldMatrices.Get(s.Parents.Get(e)).Mul4(s.LocalMatrices.Get(e))
		assert.True(t, s.WorldMatrices.Get(e).ApproxEqualThreshold(want, 1e-4), "entity %d", e)
	}
}

func TestParentBoundsContainChildren(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	unit := ecs.Geometry{NumIndices: 36}
	lo, hi := mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}

	root := s.Allocate()
	s.SetGeometry(root, unit, lo, hi)
	left, right := s.Allocate(), s.Allocate()
	s.Parents.Set(left, root)
	s.Parents.Set(right, root)
	s.SetGeometry(left, unit, lo, hi)
	s.SetGeometry(right, unit, lo, hi)
	s.SetTransform(left, translated(mgl32.Vec3{-5, 0, 0}))
	s.SetTransform(right, translated(mgl32.Vec3{0, 7, 0}))
	leaf := s.Allocate()
	s.Parents.Set(leaf, right)
	s.SetGeometry(leaf, unit, lo, hi)
	s.SetTransform(leaf, translated(mgl32.Vec3{0, 0, 9}))

	stats := f.pipeline.Update(0)

	for _, e := range []ecs.EntityID{left, right, leaf} {
		child := s.Bounds.Get(e)
		parent := s.Bounds.Get(s.Parents.Get(e))
		assert.True(t, maths.Contains(parent.TransformedMin, parent.TransformedMax, child.TransformedMin, child.TransformedMax, 1e-5), "entity %d", e)
	}
	assert.Equal(t, 4, stats.Renderables)
	assert.Equal(t, mgl32.Vec3{-6, -1, -1}, stats.ExtentsMin)
	assert.Equal(t, mgl32.Vec3{1, 8, 10}, stats.ExtentsMax)
	assert.InDelta(t, mgl32.Vec3{2, 2, 2}.Len()/2, s.Bounds.Get(leaf).Radius, 1e-5)
}

func TestBonesCollapseToPoint(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	bone := s.Allocate()
	s.Add(bone, ecs.CmpBone)
	s.Bounds.At(bone).Min, s.Bounds.At(bone).Max = mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}
	s.SetTransform(bone, translated(mgl32.Vec3{3, 0, 0}))

	f.pipeline.Update(0)

	b := s.Bounds.Get(bone)
	assert.Equal(t, mgl32.Vec3{3, 0, 0}, b.TransformedMin)
	assert.Equal(t, b.TransformedMin, b.TransformedMax)
	assert.Zero(t, b.Radius)
}

func TestDrawDataUploaded(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	e := s.Allocate()
	s.SetGeometry(e, ecs.Geometry{NumIndices: 6, IndexBuffer: 42}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	s.SetTransform(e, translated(mgl32.Vec3{2, 0, 0}))

	f.pipeline.Update(0)

	dc := s.DrawCalls.Get(e)
	assert.Equal(t, uint32(e), dc.Entity)
	assert.Equal(t, s.WorldMatrices.Get(e), dc.World)
	buf, ok := f.renderer.Buffer(s.Cbuffers.Get(e))
	require.True(t, ok)
	assert.Len(t, buf.Data, 2*64+16)
	assert.Equal(t, 1, buf.Updates)

	assert.Equal(t, 1, f.pipeline.Render(f.renderer))
	s.State.Set(e, ecs.SfHidden)
	assert.Zero(t, f.pipeline.Render(f.renderer))
	draws := f.renderer.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, render.Handle(42), draws[0].Buffer)
	assert.Equal(t, uint32(6), draws[0].IndexCount)
}

func TestPhysicsPoseFeedsBack(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	e := s.Allocate()
	s.SetTransform(e, translated(mgl32.Vec3{0, 10, 0}))
	s.SetRigidBody(e, physics.RigidBodyParams{Shape: physics.ShapeSphere, Mass: 1})

	// first frame pushes the edit, the pose comes back one frame later
	f.pipeline.Update(0.1)
	assert.Equal(t, mgl32.Vec3{0, 10, 0}, s.Transforms.Get(e).Translation)

	f.pipeline.Update(0.1)
	got := s.Transforms.Get(e).Translation
	assert.InDelta(t, 9.9, got.Y(), 1e-5)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, s.Transforms.Get(e).Scale)
	assert.InDelta(t, 9.9, maths.Translation(s.WorldMatrices.Get(e)).Y(), 1e-5)
}

func TestPausedSceneSkipsPhysics(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	e := s.Allocate()
	s.SetRigidBody(e, physics.RigidBodyParams{Shape: physics.ShapeBox, Mass: 1})
	s.Paused = true

	f.pipeline.Update(0.1)
	f.pipeline.Update(0.1)

	assert.Equal(t, mgl32.Vec3{}, s.Transforms.Get(e).Translation)
}

func TestLightCapsAreSoft(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Lights.Point = 2
	f := newFixture(t, cfg)
	s := f.scene
	for i := 0; i < 3; i++ {
		e := s.Allocate()
		s.SetLight(e, ecs.Light{Kind: ecs.LightPoint, Radius: 4})
	}
	sun := s.Allocate()
	s.SetLight(sun, ecs.Light{Kind: ecs.LightDirectional, Direction: mgl32.Vec3{0, -2, 0}})

	stats := f.pipeline.Update(0)

	assert.Equal(t, 2, stats.Lights.Point)
	assert.Equal(t, 1, stats.Lights.Directional)
	assert.Equal(t, 1, stats.Lights.Dropped)
	assert.Len(t, f.pipeline.Lights().Point, 2)

	d := f.pipeline.Lights().Directional[0]
	assert.Equal(t, mgl32.Vec3{0, -1e6, 0}, d.Position)
	assert.Equal(t, maths.FltMax, s.Bounds.Get(sun).TransformedMax.X())

	// point volumes are scaled by radius
	assert.Equal(t, mgl32.Vec3{8, 8, 8}, s.Transforms.Get(0).Scale)
}

func TestSpotAndAreaLights(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	spot := s.Allocate()
	s.SetLight(spot, ecs.Light{Kind: ecs.LightSpot, Range: 10, Cutoff: 0.5})
	area := s.Allocate()
	s.SetLight(area, ecs.Light{Kind: ecs.LightArea, Width: 1, Height: 1})
	s.SetTransform(area, translated(mgl32.Vec3{0, 5, 0}))

	f.pipeline.Update(0)

	// cutoff 0.5 is a 60 degree half angle
	sc := s.Transforms.Get(spot).Scale
	assert.Equal(t, float32(10), sc.Y())
	assert.InDelta(t, 17.3205, sc.X(), 1e-3)
	assert.InDelta(t, 0, f.pipeline.Lights().Spot[0].Direction.Sub(mgl32.Vec3{0, -1, 0}).Len(), 1e-5)

	corners := f.pipeline.Lights().Area[0].Corners
	assert.Equal(t, mgl32.Vec3{-1, 5, -1}, corners[0])
	assert.Equal(t, mgl32.Vec3{1, 5, 1}, corners[2])
}

func TestShadowSlotsGrowOnly(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	var casters []ecs.EntityID
	for i := 0; i < 3; i++ {
		e := s.Allocate()
		s.SetLight(e, ecs.Light{Kind: ecs.LightSpot, Range: 5, Cutoff: 0.5, Flags: ecs.LightShadowMap})
		casters = append(casters, e)
	}

	f.pipeline.Update(0)
	assert.Equal(t, 4, f.pipeline.ShadowSlots())
	assert.Equal(t, int32(2), s.Lights.Get(casters[2]).ShadowID)
	assert.Equal(t, int32(2), f.pipeline.Lights().Spot[2].ShadowSlot)

	s.Release(casters[0])
	s.Release(casters[1])
	f.pipeline.Update(0)
	assert.Equal(t, 4, f.pipeline.ShadowSlots())
}

type recordingController struct {
	name  string
	calls *[]string
}

func (c recordingController) Name() string { return c.name }

func (c recordingController) Update(_ *ecs.Scene, _ float32) {
	*c.calls = append(*c.calls, c.name+".update")
}

func (c recordingController) PostUpdate(_ *ecs.Scene, _ float32) {
	*c.calls = append(*c.calls, c.name+".post")
}

func TestControllersRunInOrder(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	var calls []string
	f.scene.AddController(recordingController{name: "camera", calls: &calls})
	f.scene.AddController(recordingController{name: "editor", calls: &calls})

	f.pipeline.Update(0)

	assert.Equal(t, []string{"camera.update", "editor.update", "camera.post", "editor.post"}, calls)
}

// rig builds a controller with a trajectory joint and one bone, both animated
// linearly over one second.
func rig(t *testing.T, s *ecs.Scene) (ctrl, bone ecs.EntityID) {
	t.Helper()
	ctrl, traj, bone := s.Allocate(), s.Allocate(), s.Allocate()
	s.SetName(ctrl, "rig")
	s.SetName(traj, "rig:trajectory")
	s.SetName(bone, "rig:hip")
	s.Parents.Set(traj, ctrl)
	s.Parents.Set(bone, ctrl)
	s.Add(traj, ecs.CmpAnimTrajectory)
	s.Add(bone, ecs.CmpBone)
	require.NoError(t, s.AddAnimController(ctrl))

	clip, err := anim.NewClip("walk", []anim.Channel{
		{Joint: "trajectory", Target: anim.TargetTranslation, Times: []float32{0, 1}, Vectors: []mgl32.Vec3{{}, {0, 0, 2}}},
		{Joint: "hip", Target: anim.TargetTranslation, Times: []float32{0, 1}, Vectors: []mgl32.Vec3{{}, {1, 0, 0}}},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, s.BindClip(ctrl, clip))
	return ctrl, bone
}

func TestAnimationRootMotion(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	ctrl, bone := rig(t, s)

	f.pipeline.Update(0.5)
	assert.InDelta(t, 0.5, s.Transforms.Get(bone).Translation.X(), 1e-5)
	assert.Equal(t, mgl32.Vec3{}, s.Transforms.Get(ctrl).Translation)

	f.pipeline.Update(0.25)
	assert.InDelta(t, 0.5, s.Transforms.Get(ctrl).Translation.Z(), 1e-5)
	world := maths.Translation(s.WorldMatrices.Get(bone))
	assert.InDelta(t, 0.75, world.X(), 1e-5)
	assert.InDelta(t, 0.5, world.Z(), 1e-5)
}

func TestAnimationBlend(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	ctrl, bone := rig(t, s)

	still, err := anim.NewClip("idle", []anim.Channel{
		{Joint: "hip", Target: anim.TargetTranslation, Times: []float32{0, 1}, Vectors: []mgl32.Vec3{{}, {}}},
	}, false)
	require.NoError(t, err)
	c := s.AnimController(ctrl)
	c.BlendB = s.BindClip(ctrl, still)
	c.Ratio = 0.5

	f.pipeline.Update(0.5)
	assert.InDelta(t, 0.25, s.Transforms.Get(bone).Translation.X(), 1e-5)
}

func TestAnimationPausedController(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	ctrl, bone := rig(t, s)
	s.AnimController(ctrl).Paused = true

	f.pipeline.Update(0.5)
	assert.Equal(t, mgl32.Vec3{}, s.Transforms.Get(bone).Translation)
}

func TestAnimationIdleInstancesKeepTime(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	s := f.scene
	ctrl, bone := rig(t, s)

	idle, err := anim.NewClip("idle", []anim.Channel{
		{Joint: "hip", Target: anim.TargetTranslation, Times: []float32{0, 1}, Vectors: []mgl32.Vec3{{}, {}}},
	}, false)
	require.NoError(t, err)
	c := s.AnimController(ctrl)
	c.BlendB = s.BindClip(ctrl, idle)
	held := s.BindClip(ctrl, idle)
	c.Instances[held].Paused = true
	c.Ratio = 0

	f.pipeline.Update(0.25)
	f.pipeline.Update(0.25)
	assert.InDelta(t, 0.5, c.Instances[c.BlendB].Time, 1e-5)
	assert.Zero(t, c.Instances[held].Time)
	assert.InDelta(t, 0.5, s.Transforms.Get(bone).Translation.X(), 1e-5)
}
