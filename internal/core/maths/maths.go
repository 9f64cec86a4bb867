// Package maths holds the small set of vector, quaternion and box helpers the
// scene passes share on top of mgl32.
package maths

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// FltMax is the largest finite float32; boxes start inverted at ±FltMax.
const FltMax = float32(math.MaxFloat32)

// Transform is a decomposed translation, rotation, scale triple.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// IdentityTransform has unit scale and identity rotation.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Matrix bakes T·R·S.
func (t Transform) Matrix() mgl32.Mat4 {
	tr := mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2])
	rot := t.Rotation.Normalize().Mat4()
	sc := mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	return tr.Mul4(rot).Mul4(sc)
}

// Lerp3 interpolates a to b by t.
func Lerp3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Slerp is mgl32.QuatSlerp with a shortest-arc fixup.
func Slerp(a, b mgl32.Quat, t float32) mgl32.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, t).Normalize()
}

func Min3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
}

func Max3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
}

// Translation returns the translation column of m.
func Translation(m mgl32.Mat4) mgl32.Vec3 {
	return m.Col(3).Vec3()
}

// Corners returns the 8 corners of the box spanned by lo and hi.
func Corners(lo, hi mgl32.Vec3) [8]mgl32.Vec3 {
	size := hi.Sub(lo)
	var out [8]mgl32.Vec3
	for i := range out {
		c := mgl32.Vec3{float32(i & 1), float32((i >> 1) & 1), float32((i >> 2) & 1)}
		out[i] = lo.Add(mgl32.Vec3{size[0] * c[0], size[1] * c[1], size[2] * c[2]})
	}
	return out
}

// TransformBox transforms the box corners by m and returns the enclosing
// axis aligned box.
func TransformBox(lo, hi mgl32.Vec3, m mgl32.Mat4) (mgl32.Vec3, mgl32.Vec3) {
	tmin := mgl32.Vec3{FltMax, FltMax, FltMax}
	tmax := mgl32.Vec3{-FltMax, -FltMax, -FltMax}
	for _, c := range Corners(lo, hi) {
		p := mgl32.TransformCoordinate(c, m)
		tmin = Min3(tmin, p)
		tmax = Max3(tmax, p)
	}
	return tmin, tmax
}

// Contains reports whether box a encloses box b within eps.
func Contains(aMin, aMax, bMin, bMax mgl32.Vec3, eps float32) bool {
	for i := 0; i < 3; i++ {
		if bMin[i] < aMin[i]-eps || bMax[i] > aMax[i]+eps {
			return false
		}
	}
	return true
}

// Decompose splits an affine matrix without shear into translation, rotation
// and scale.
func Decompose(m mgl32.Mat4) Transform {
	x, y, z := m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()
	scale := mgl32.Vec3{x.Len(), y.Len(), z.Len()}
	for i := range scale {
		if scale[i] == 0 {
			scale[i] = 1
		}
	}
	rot := mgl32.Mat4FromCols(
		x.Mul(1/scale[0]).Vec4(0),
		y.Mul(1/scale[1]).Vec4(0),
		z.Mul(1/scale[2]).Vec4(0),
		mgl32.Vec4{0, 0, 0, 1},
	)
	return Transform{
		Translation: Translation(m),
		Rotation:    mgl32.Mat4ToQuat(rot).Normalize(),
		Scale:       scale,
	}
}
