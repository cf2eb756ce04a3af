package sequence

import "github.com/coreman2200/spiraltree/internal/command"

// Ease shapes the segment that starts at a keyframe.
type Ease string

const (
	EaseLinear Ease = "linear"
	EaseSmooth Ease = "smooth"
	EaseCubic  Ease = "cubic"
	EaseStep   Ease = "step" // hold the value until the next key
)

// Keyframe is a value at T seconds into its clip.
type Keyframe struct {
	T    float64 `json:"t" yaml:"t"`
	V    float64 `json:"v" yaml:"v"`
	Ease Ease    `json:"ease,omitempty" yaml:"ease,omitempty"`
}

// Envelope is a list of keyframes sorted by T. In YAML it is written either
// as a list of keyframes or as a bare number for a constant.
type Envelope struct {
	Keys []Keyframe `json:"keys"`
}

// Clip is one segment of a show. It picks an illuminator and preset, may
// crossfade into the clip after it, automates uniforms, and sends controller
// commands (RANDOM, ALL:r,g,b, BRIGHT:n ...) when it starts.
type Clip struct {
	Name        string              `json:"name" yaml:"name"`
	Illuminator string              `json:"illuminator" yaml:"illuminator"`
	Preset      string              `json:"preset,omitempty" yaml:"preset,omitempty"`
	DurationS   float64             `json:"durationS" yaml:"duration_s"`
	XFadeS      float64             `json:"xFadeS,omitempty" yaml:"xfade_s,omitempty"`
	Params      map[string]Envelope `json:"params,omitempty" yaml:"params,omitempty"`
	Bools       map[string]Envelope `json:"bools,omitempty" yaml:"bools,omitempty"` // thresholded at 0.5
	Commands    []string            `json:"commands,omitempty" yaml:"commands,omitempty"`
}

// Program is a full show.
type Program struct {
	Version string `json:"version" yaml:"version"` // "show.v1"
	Loop    bool   `json:"loop,omitempty" yaml:"loop,omitempty"`
	Clips   []Clip `json:"clips" yaml:"clips"`
}

type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
)

// Hooks connect the player to the render engine and the controller link.
// Any of them may be nil.
type Hooks struct {
	SetIlluminator func(name, preset string)
	ArmNext        func(name, preset string)
	SetCrossfade   func(alpha float64) // 1 promotes the armed illuminator
	SetParam       func(name string, v float64)
	SetBool        func(name string, b bool)
	Send           func(cmd command.Command)
}
