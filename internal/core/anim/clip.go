// Package anim holds keyframe clips and the per-controller playback state that
// samples them.
package anim

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrEmptyChannel    = errors.New("anim: channel has no keyframes")
	ErrUnsortedFrames  = errors.New("anim: keyframe times are not ascending")
	ErrChannelMismatch = errors.New("anim: keyframe values do not match times")
)

type Target uint8

const (
	TargetTranslation Target = iota
	TargetRotation
	TargetScale
)

func (t Target) String() string {
	switch t {
	case TargetTranslation:
		return "translation"
	case TargetRotation:
		return "rotation"
	case TargetScale:
		return "scale"
	default:
		return fmt.Sprintf("target(%d)", uint8(t))
	}
}

// Channel animates one property of one joint. Vectors holds translation or
// scale keys, Rotations holds rotation keys; only the one matching Target is
// populated.
type Channel struct {
	Joint     string
	Target    Target
	Times     []float32
	Vectors   []mgl32.Vec3
	Rotations []mgl32.Quat
}

func (c *Channel) frames() int {
	if c.Target == TargetRotation {
		return len(c.Rotations)
	}
	return len(c.Vectors)
}

// Clip is an immutable set of channels shared by every instance playing it.
type Clip struct {
	Name     string
	Length   float32
	Channels []Channel
	// BakedRotations marks rotation keys as absolute joint rotations instead
	// of deltas applied on top of the joint's rest rotation.
	BakedRotations bool
}

// NewClip validates the channels and derives the clip length from the last key.
func NewClip(name string, channels []Channel, bakedRotations bool) (*Clip, error) {
	clip := &Clip{Name: name, Channels: channels, BakedRotations: bakedRotations}
	for i := range channels {
		ch := &channels[i]
		if len(ch.Times) == 0 {
			return nil, fmt.Errorf("%w: %s/%s", ErrEmptyChannel, ch.Joint, ch.Target)
		}
		if ch.frames() != len(ch.Times) {
			return nil, fmt.Errorf("%w: %s/%s", ErrChannelMismatch, ch.Joint, ch.Target)
		}
		for k := 1; k < len(ch.Times); k++ {
			if ch.Times[k] < ch.Times[k-1] {
				return nil, fmt.Errorf("%w: %s/%s", ErrUnsortedFrames, ch.Joint, ch.Target)
			}
		}
		clip.Length = max(clip.Length, ch.Times[len(ch.Times)-1])
	}
	return clip, nil
}
