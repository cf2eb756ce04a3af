package settings

// Mode selects what the render loop illuminates each frame.
type Mode string

const (
	ModeDemo    Mode = "demo"    // procedural tree
	ModeAllOn   Mode = "all_on"  // every LED lit with a fixed color
	ModePalette Mode = "palette" // command-driven random/broadcast colors
	ModeTest    Mode = "test"    // hardware test pattern
)

// Percent holds the palette category weights. They are not required to sum to
// 100; whatever is left over after green and red lands on blue.
type Percent struct {
	Green int `yaml:"green" json:"green" mapstructure:"green"`
	Red   int `yaml:"red" json:"red" mapstructure:"red"`
	Blue  int `yaml:"blue" json:"blue" mapstructure:"blue"`
}

// RGB is an 8-bit color as carried by the ALL command.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// PaletteOp is the last palette action requested. Epoch increments on every
// request so the palette engine can tell a repeat RANDOM from a stale one.
type PaletteOp struct {
	Epoch     uint64 `json:"epoch"`
	Randomize bool   `json:"randomize"`
	Color     RGB    `json:"color"`
}

// Settings is an immutable snapshot read once per frame. Only Reduce builds
// new values.
type Settings struct {
	Speed        float64   `json:"speed"`
	Brightness   int       `json:"brightness"`    // preview emissive scale, 0..100
	HWBrightness int       `json:"hw_brightness"` // controller brightness, 0..255
	RPS          float64   `json:"rps"`
	Percent      Percent   `json:"percent"`
	Mode         Mode      `json:"mode"`
	ShowLEDs     bool      `json:"show_leds"`
	ShowArms     bool      `json:"show_arms"`
	ShowTrunk    bool      `json:"show_trunk"`
	ArmSpacing   float64   `json:"arm_spacing"`
	Palette      PaletteOp `json:"palette"`
	Test         string    `json:"test,omitempty"`
	ViewEpoch    uint64    `json:"view_epoch"`
}

// Defaults match the stock display and controller firmware.
func Defaults() Settings {
	return Settings{
		Speed:        1.0,
		Brightness:   100,
		HWBrightness: 20,
		RPS:          1.0,
		Percent:      Percent{Green: 80, Red: 15, Blue: 5},
		Mode:         ModeDemo,
		ShowLEDs:     true,
		ShowArms:     true,
		ShowTrunk:    true,
		ArmSpacing:   16,
	}
}

func (s Settings) Demo() bool { return s.Mode == ModeDemo }

// Samples is the angular anti-alias sample count for the current speed.
func (s Settings) Samples() int {
	n := int(s.Speed / 10)
	if n < 1 {
		return 1
	}
	return n
}
