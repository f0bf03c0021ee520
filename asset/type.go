package asset

import "strings"

// Type identifies what a compiled asset contains.
//
// The numeric values are persisted by older registries and asset packs and
// must never be renumbered. New types go right before Count.
type Type uint16

const (
	Undefined Type = iota
	Shader
	Texture
	Material
	Mesh3d
	Scene
	AudioClip
	Animation
	GraphicsPipelineSet
	ComputePipelineSet
	Count
)

var typeNames = [...]string{
	Undefined:           "Undefined",
	Shader:              "Shader",
	Texture:             "Texture",
	Material:            "Material",
	Mesh3d:              "Mesh3d",
	Scene:               "Scene",
	AudioClip:           "AudioClip",
	Animation:           "Animation",
	GraphicsPipelineSet: "GraphicsPipelineSet",
	ComputePipelineSet:  "ComputePipelineSet",
}

func (t Type) String() string {
	if t >= Count {
		return typeNames[Undefined]
	}
	return typeNames[t]
}

// ParseType returns the type with the given name. Unknown names map to
// Undefined.
func ParseType(name string) Type {
	for i, n := range typeNames {
		if strings.EqualFold(n, name) {
			return Type(i)
		}
	}
	return Undefined
}

// Types returns every defined type, Undefined included, in numeric order.
func Types() []Type {
	out := make([]Type, 0, Count)
	for t := Undefined; t < Count; t++ {
		out = append(out, t)
	}
	return out
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	*t = ParseType(string(text))
	return nil
}
