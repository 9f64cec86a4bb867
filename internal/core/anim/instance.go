package anim

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/scenery/internal/core/maths"
)

// Unbound marks a sampler whose channel targets no joint of the rig.
const Unbound = -1

// Sampler caches the keyframe cursor of one channel.
type Sampler struct {
	Joint  int
	Cursor int
	Looped bool
}

type target struct {
	translation mgl32.Vec3
	rotation    mgl32.Quat
	scale       mgl32.Vec3
}

// Instance is one clip playing on one rig. Joints holds the sampled local
// transform of every rig joint after Evaluate.
type Instance struct {
	Clip     *Clip
	Time     float32
	Paused   bool
	Samplers []Sampler
	Joints   []maths.Transform

	RootTranslation mgl32.Vec3
	RootDelta       mgl32.Vec3

	targets []target
	looped  bool
	primed  bool
}

// Bind creates an instance of clip for a rig whose joints are named by
// joints, with rest transforms rest. Channels bind by exact joint name first,
// then by name suffix.
func Bind(clip *Clip, joints []string, rest []maths.Transform) *Instance {
	in := &Instance{
		Clip:     clip,
		Samplers: make([]Sampler, len(clip.Channels)),
		Joints:   make([]maths.Transform, len(joints)),
		targets:  make([]target, len(joints)),
	}
	for j := range joints {
		in.Joints[j] = rest[j]
		in.targets[j] = target{translation: rest[j].Translation, rotation: mgl32.QuatIdent(), scale: rest[j].Scale}
	}
	for c := range clip.Channels {
		in.Samplers[c].Joint = findJoint(joints, clip.Channels[c].Joint)
	}
	return in
}

func findJoint(joints []string, name string) int {
	for j, n := range joints {
		if n == name {
			return j
		}
	}
	for j, n := range joints {
		if strings.HasSuffix(n, name) || strings.HasSuffix(name, n) {
			return j
		}
	}
	return Unbound
}

// Bound returns how many channels found a joint.
func (in *Instance) Bound() int {
	n := 0
	for _, s := range in.Samplers {
		if s.Joint != Unbound {
			n++
		}
	}
	return n
}

// Advance moves playback time forward. Reaching the clip length wraps to the
// start and arms the loop marker for the next Evaluate.
func (in *Instance) Advance(dt float32) {
	if in.Paused {
		return
	}
	in.Time += dt
	if in.Time >= in.Clip.Length {
		in.Time = 0
		in.looped = true
	}
}

// Seek jumps to time t. Cursors fall back to frame 0 on the next sample when
// t lies before them.
func (in *Instance) Seek(t float32) {
	in.Time = min(max(t, 0), in.Clip.Length)
}

// Looped reports whether the last Evaluate consumed a loop.
func (in *Instance) Looped() bool {
	return len(in.Samplers) > 0 && in.Samplers[0].Looped
}

// Evaluate samples every bound channel at the current time and bakes the
// results into Joints, using rest rotations for non-baked clips. The
// trajectory joint (or -1) is not baked; its translation feeds root motion.
func (in *Instance) Evaluate(rest []maths.Transform, trajectory int) {
	looped := in.looped || !in.primed
	in.looped = false

	for j := range in.targets {
		in.targets[j].rotation = mgl32.QuatIdent()
	}

	for c := range in.Samplers {
		s := &in.Samplers[c]
		if s.Joint == Unbound {
			continue
		}
		ch := &in.Clip.Channels[c]

		s.Looped = false
		if looped {
			s.Cursor = 0
			s.Looped = true
		}
		cur, next, t := s.frame(ch.Times, in.Time)

		tg := &in.targets[s.Joint]
		switch ch.Target {
		case TargetRotation:
			q := maths.Slerp(ch.Rotations[cur], ch.Rotations[next], t)
			tg.rotation = q.Mul(tg.rotation)
		case TargetTranslation:
			tg.translation = maths.Lerp3(ch.Vectors[cur], ch.Vectors[next], t)
		case TargetScale:
			tg.scale = maths.Lerp3(ch.Vectors[cur], ch.Vectors[next], t)
		}
	}

	for j := range in.targets {
		if j == trajectory {
			continue
		}
		tg := in.targets[j]
		rot := tg.rotation
		if !in.Clip.BakedRotations {
			rot = rest[j].Rotation.Mul(tg.rotation)
		}
		in.Joints[j] = maths.Transform{Translation: tg.translation, Rotation: rot, Scale: tg.scale}
	}

	if trajectory >= 0 && trajectory < len(in.targets) {
		tt := in.targets[trajectory].translation
		if looped {
			in.RootTranslation = tt
		} else {
			in.RootDelta = tt.Sub(in.RootTranslation)
			in.RootTranslation = tt
		}
	}
	in.primed = true
}

// frame returns the surrounding keyframes of now and the clamped
// interpolation factor between them. The cursor only scans forward; a time
// before the cursor resets it to frame 0.
func (s *Sampler) frame(times []float32, now float32) (int, int, float32) {
	n := len(times)
	if s.Cursor >= n || now < times[s.Cursor] {
		s.Cursor = 0
	}
	for s.Cursor+1 < n && now >= times[s.Cursor+1] {
		s.Cursor++
	}
	next := min(s.Cursor+1, n-1)

	t0, t1 := times[s.Cursor], times[next]
	var t float32
	if t1 > t0 {
		t = (now - t0) / (t1 - t0)
	}
	return s.Cursor, next, min(max(t, 0), 1)
}

// Clone deep-copies the playback state. The clip is shared.
func (in *Instance) Clone() *Instance {
	if in == nil {
		return nil
	}
	out := *in
	out.Samplers = append([]Sampler(nil), in.Samplers...)
	out.Joints = append([]maths.Transform(nil), in.Joints...)
	out.targets = append([]target(nil), in.targets...)
	return &out
}
