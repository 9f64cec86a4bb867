package resources

import (
	"bytes"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/scenery/internal/core/anim"
)

// clipDoc is the authored form of an animation clip.
//
//	baked_rotations: false
//	channels:
//	  - joint: hip
//	    target: rotation
//	    times: [0, 1]
//	    values: [[0, 0, 0, 1], [0, 0.7071, 0, 0.7071]]
//
// Rotation values are x, y, z, w.
type clipDoc struct {
	BakedRotations bool         `yaml:"baked_rotations"`
	Channels       []channelDoc `yaml:"channels"`
}

type channelDoc struct {
	Joint  string      `yaml:"joint"`
	Target string      `yaml:"target"`
	Times  []float32   `yaml:"times"`
	Values [][]float32 `yaml:"values"`
}

type materialDoc struct {
	Shader    string       `yaml:"shader"`
	Technique string       `yaml:"technique"`
	Values    []float32    `yaml:"values"`
	Textures  []textureDoc `yaml:"textures"`
}

type textureDoc struct {
	Slot  uint32 `yaml:"slot"`
	File  string `yaml:"file"`
	State string `yaml:"state"`
}

func decodeYAML(file string, data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return eris.Wrapf(err, "decode %s", file)
	}
	return nil
}

func decodeClip(file string, data []byte) (*anim.Clip, error) {
	var doc clipDoc
	if err := decodeYAML(file, data, &doc); err != nil {
		return nil, err
	}

	channels := make([]anim.Channel, len(doc.Channels))
	for i, cd := range doc.Channels {
		ch := anim.Channel{Joint: cd.Joint, Times: cd.Times}
		switch cd.Target {
		case "translation":
			ch.Target = anim.TargetTranslation
		case "rotation":
			ch.Target = anim.TargetRotation
		case "scale":
			ch.Target = anim.TargetScale
		default:
			return nil, eris.Errorf("clip %s: channel %s has unknown target %q", file, cd.Joint, cd.Target)
		}
		for _, v := range cd.Values {
			if ch.Target == anim.TargetRotation {
				if len(v) != 4 {
					return nil, eris.Errorf("clip %s: channel %s rotation key needs 4 values", file, cd.Joint)
				}
				ch.Rotations = append(ch.Rotations, mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}.Normalize())
				continue
			}
			if len(v) != 3 {
				return nil, eris.Errorf("clip %s: channel %s %s key needs 3 values", file, cd.Joint, cd.Target)
			}
			ch.Vectors = append(ch.Vectors, mgl32.Vec3{v[0], v[1], v[2]})
		}
		channels[i] = ch
	}

	clip, err := anim.NewClip(file, channels, doc.BakedRotations)
	if err != nil {
		return nil, eris.Wrapf(err, "clip %s", file)
	}
	return clip, nil
}

func decodeMaterial(file string, data []byte) (*materialDoc, error) {
	var doc materialDoc
	if err := decodeYAML(file, data, &doc); err != nil {
		return nil, err
	}
	if doc.Shader == "" {
		return nil, eris.Errorf("material %s: shader is required", file)
	}
	if len(doc.Values) > 16 {
		return nil, eris.Errorf("material %s: %d values exceed the 16 float block", file, len(doc.Values))
	}
	return &doc, nil
}
