package maths

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestTransformMatrixOrder(t *testing.T) {
	tr := Transform{
		Translation: mgl32.Vec3{1, 2, 3},
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}),
		Scale:       mgl32.Vec3{2, 2, 2},
	}
	p := mgl32.TransformCoordinate(mgl32.Vec3{1, 0, 0}, tr.Matrix())
	// scaled to 2, rotated onto -z, then translated
	assert.True(t, p.ApproxEqualThreshold(mgl32.Vec3{1, 2, 1}, 1e-5), p)
}

func TestTransformBoxRotated(t *testing.T) {
	m := mgl32.HomogRotate3DY(mgl32.DegToRad(45))
	lo, hi := TransformBox(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}, m)
	r := float32(1.41421356)
	assert.InDelta(t, -r, lo[0], 1e-4)
	assert.InDelta(t, r, hi[2], 1e-4)
	assert.InDelta(t, -1, lo[1], 1e-5)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains(mgl32.Vec3{-2, -2, -2}, mgl32.Vec3{2, 2, 2}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{1, 1, 1}, 0))
	assert.False(t, Contains(mgl32.Vec3{-2, -2, -2}, mgl32.Vec3{2, 2, 2}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{3, 1, 1}, 0))
}

func TestSlerpShortestArc(t *testing.T) {
	a := mgl32.QuatIdent()
	b := mgl32.QuatIdent().Scale(-1)
	got := Slerp(a, b, 0.5)
	assert.True(t, got.ApproxEqualThreshold(mgl32.QuatIdent(), 1e-5))
}

func TestDecomposeRoundTrip(t *testing.T) {
	in := Transform{
		Translation: mgl32.Vec3{4, -2, 1},
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{1, 0, 0}),
		Scale:       mgl32.Vec3{1, 2, 3},
	}
	out := Decompose(in.Matrix())
	assert.True(t, out.Translation.ApproxEqualThreshold(in.Translation, 1e-5))
	assert.True(t, out.Scale.ApproxEqualThreshold(in.Scale, 1e-5))
	assert.True(t, out.Matrix().ApproxEqualThreshold(in.Matrix(), 1e-4))
}
