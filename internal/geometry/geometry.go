package geometry

import (
	"errors"
	"fmt"
	"math"
)

// HardwareSpec describes the physical tree. All lengths are in millimetres.
type HardwareSpec struct {
	ArmCount        int     `yaml:"arm_count" mapstructure:"arm_count"`
	ArmLengthMM     float64 `yaml:"arm_length_mm" mapstructure:"arm_length_mm"`
	ArmSpacingMM    float64 `yaml:"arm_spacing_mm" mapstructure:"arm_spacing_mm"`
	LEDPitchMM      float64 `yaml:"led_pitch_mm" mapstructure:"led_pitch_mm"`
	TrunkDiameterMM float64 `yaml:"trunk_diameter_mm" mapstructure:"trunk_diameter_mm"`
	TotalHeightMM   float64 `yaml:"total_height_mm" mapstructure:"total_height_mm"`
}

// DefaultSpec is the 80-arm display: 280 mm arms on a 1" trunk, 60 LED/m strip.
func DefaultSpec() HardwareSpec {
	return HardwareSpec{
		ArmCount:        80,
		ArmLengthMM:     280,
		ArmSpacingMM:    16,
		LEDPitchMM:      12.4,
		TrunkDiameterMM: 25.4,
		TotalHeightMM:   1330,
	}
}

func (s HardwareSpec) Validate() error {
	switch {
	case s.ArmCount <= 0:
		return fmt.Errorf("invalid arm count: %d", s.ArmCount)
	case s.ArmLengthMM <= 0:
		return errors.New("arm length must be positive")
	case s.LEDPitchMM <= 0:
		return errors.New("led pitch must be positive")
	case s.ArmSpacingMM < 0 || s.TrunkDiameterMM < 0 || s.TotalHeightMM <= 0:
		return errors.New("spacing, trunk and height must not be negative")
	}
	return nil
}

func (s HardwareSpec) TrunkRadius() float64 { return s.TrunkDiameterMM / 2 }

// LEDsPerArm counts both ends of the arm.
func (s HardwareSpec) LEDsPerArm() int {
	return int(math.Floor(s.ArmLengthMM/s.LEDPitchMM)) + 1
}

func (s HardwareSpec) LEDCount() int { return s.ArmCount * s.LEDsPerArm() }

// Arm is one radial branch. Every 4th arm shares the same base angle.
type Arm struct {
	Index     int
	Height    float64
	BaseAngle float64
}

// LED sits at a fixed radius along its parent arm.
type LED struct {
	Arm    int
	Index  int
	Radius float64
}

// Model is the static layout; LEDs are arm-major.
type Model struct {
	Spec    HardwareSpec
	Arms    []Arm
	LEDs    [][]LED
	perArm  int
	spacing float64
}

// BaseAngle returns (i mod 4) quarter turns in radians.
func BaseAngle(i int) float64 {
	return float64(i%4) * math.Pi / 2
}

// Build lays out arms and LEDs from the spec.
func Build(spec HardwareSpec) *Model {
	perArm := spec.LEDsPerArm()
	m := &Model{
		Spec:    spec,
		Arms:    make([]Arm, spec.ArmCount),
		LEDs:    make([][]LED, spec.ArmCount),
		perArm:  perArm,
		spacing: spec.ArmSpacingMM,
	}
	r0 := spec.TrunkRadius()
	for i := 0; i < spec.ArmCount; i++ {
		m.Arms[i] = Arm{
			Index:     i,
			Height:    float64(i) * spec.ArmSpacingMM,
			BaseAngle: BaseAngle(i),
		}
		row := make([]LED, perArm)
		for j := range row {
			row[j] = LED{Arm: i, Index: j, Radius: r0 + float64(j)*spec.LEDPitchMM}
		}
		m.LEDs[i] = row
	}
	return m
}

func (m *Model) ArmCount() int   { return len(m.Arms) }
func (m *Model) LEDsPerArm() int { return m.perArm }
func (m *Model) Count() int      { return len(m.Arms) * m.perArm }

// Index maps (arm, led) -> linear arena index.
func (m *Model) Index(arm, led int) int {
	return arm*m.perArm + led
}

// Spacing is the current vertical distance between neighbouring arms.
func (m *Model) Spacing() float64 { return m.spacing }

// Respace moves every arm to i*spacing. Negative spacing is ignored.
func (m *Model) Respace(spacing float64) {
	if spacing < 0 || spacing == m.spacing {
		return
	}
	m.spacing = spacing
	for i := range m.Arms {
		m.Arms[i].Height = float64(i) * spacing
	}
}

// StackHeight is the height of the top arm above the bottom one.
func (m *Model) StackHeight() float64 {
	if len(m.Arms) == 0 {
		return 0
	}
	return float64(len(m.Arms)-1) * m.spacing
}
