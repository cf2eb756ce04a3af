package settings

import (
	"math"
	"strconv"
	"strings"

	"github.com/coreman2200/spiraltree/internal/command"
)

// EventKind names a user or automation action.
type EventKind string

const (
	SetSpeed        EventKind = "setSpeed"
	SetBrightness   EventKind = "setBrightness"
	SetArmSpacing   EventKind = "setArmSpacing"
	SetRPS          EventKind = "setRPS"
	SetHWBrightness EventKind = "setHWBrightness"
	SetPercent      EventKind = "setPercent"
	ToggleDemo      EventKind = "toggleDemo"
	ShowLEDs        EventKind = "showLEDs"
	ShowArms        EventKind = "showArms"
	ShowTrunk       EventKind = "showTrunk"
	Randomize       EventKind = "randomize"
	AllOff          EventKind = "allOff"
	AllGreen        EventKind = "allGreen"
	AllRed          EventKind = "allRed"
	AllColor        EventKind = "allColor"
	RequestInfo     EventKind = "info"
	ResetView       EventKind = "resetView"
	RunTest         EventKind = "runTest"
	StopTest        EventKind = "stopTest"
)

// Event carries raw field text the way a form control reports it. Values is
// used by multi-field controls (percent, color).
type Event struct {
	Kind   EventKind `json:"type"`
	Value  string    `json:"value,omitempty"`
	Values []string  `json:"values,omitempty"`
}

// Reduce maps (prior state, event) to the next state plus the commands to
// forward to the controller. It has no side effects.
//
// Malformed numeric input never fails: speed falls back to 0, every other
// field keeps its prior value.
func Reduce(prev Settings, ev Event) (Settings, []command.Command) {
	next := prev
	switch ev.Kind {
	case SetSpeed:
		v, ok := parseFloat(ev.Value)
		if !ok {
			v = 0
		}
		next.Speed = v

	case SetBrightness:
		if v, ok := parseInt(ev.Value); ok {
			next.Brightness = clamp(v, 0, 100)
		}

	case SetArmSpacing:
		if v, ok := parseFloat(ev.Value); ok && v > 0 {
			next.ArmSpacing = v
		}

	case SetRPS:
		v, ok := parseFloat(ev.Value)
		if !ok {
			return prev, nil
		}
		next.RPS = v
		return next, []command.Command{command.RPS(v)}

	case SetHWBrightness:
		v, ok := parseInt(ev.Value)
		if !ok {
			return prev, nil
		}
		next.HWBrightness = clamp(v, 0, 255)
		return next, []command.Command{command.Bright(next.HWBrightness)}

	case SetPercent:
		p := prev.Percent
		fields := []*int{&p.Green, &p.Red, &p.Blue}
		for i, f := range fields {
			if i >= len(ev.Values) {
				break
			}
			if v, ok := parseInt(ev.Values[i]); ok {
				*f = clamp(v, 0, 100)
			}
		}
		next.Percent = p
		return next, []command.Command{command.Percent(p.Green, p.Red, p.Blue)}

	case ToggleDemo:
		if prev.Mode == ModeDemo {
			next.Mode = ModeAllOn
		} else {
			next.Mode = ModeDemo
			next.Speed = 2
		}

	case ShowLEDs:
		next.ShowLEDs = parseBool(ev.Value, prev.ShowLEDs)
	case ShowArms:
		next.ShowArms = parseBool(ev.Value, prev.ShowArms)
	case ShowTrunk:
		next.ShowTrunk = parseBool(ev.Value, prev.ShowTrunk)

	case Randomize:
		next.Mode = ModePalette
		next.Palette = PaletteOp{Epoch: prev.Palette.Epoch + 1, Randomize: true}
		return next, []command.Command{command.Random()}

	case AllOff:
		return broadcast(prev, RGB{}), []command.Command{command.Off()}

	case AllGreen:
		return broadcast(prev, RGB{G: 255}), []command.Command{command.All(0, 255, 0)}

	case AllRed:
		return broadcast(prev, RGB{R: 255}), []command.Command{command.All(255, 0, 0)}

	case AllColor:
		c := prev.Palette.Color
		chans := []*uint8{&c.R, &c.G, &c.B}
		for i, ch := range chans {
			if i >= len(ev.Values) {
				break
			}
			if v, ok := parseInt(ev.Values[i]); ok {
				*ch = uint8(clamp(v, 0, 255))
			}
		}
		return broadcast(prev, c), []command.Command{command.All(int(c.R), int(c.G), int(c.B))}

	case RequestInfo:
		return prev, []command.Command{command.Info()}

	case ResetView:
		next.ViewEpoch++

	case RunTest:
		name := strings.TrimSpace(ev.Value)
		if name == "" {
			return prev, nil
		}
		next.Mode = ModeTest
		next.Test = name

	case StopTest:
		if prev.Mode != ModeTest {
			return prev, nil
		}
		next.Mode = ModeDemo
		next.Test = ""
	}
	return next, nil
}

func broadcast(prev Settings, c RGB) Settings {
	next := prev
	next.Mode = ModePalette
	next.Palette = PaletteOp{Epoch: prev.Palette.Epoch + 1, Color: c}
	return next
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseInt accepts "128" and "128.7" (truncated), like a slider's text value.
func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, ok := parseFloat(s)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func parseBool(s string, prev bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return prev
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
