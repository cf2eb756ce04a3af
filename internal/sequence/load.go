package sequence

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/spiraltree/internal/command"
)

// UnmarshalYAML accepts a keyframe list (sorted here) or a bare number.
func (e *Envelope) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var v float64
		if err := n.Decode(&v); err != nil {
			return err
		}
		e.Keys = []Keyframe{{V: v}}
		return nil
	}
	var keys []Keyframe
	if err := n.Decode(&keys); err != nil {
		return err
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].T < keys[j].T })
	e.Keys = keys
	return nil
}

func (e Envelope) MarshalYAML() (interface{}, error) { return e.Keys, nil }

// Validate checks durations, crossfades, easings and controller commands.
// has, when not nil, must know every clip's illuminator.
func (p Program) Validate(has func(name string) bool) error {
	if len(p.Clips) == 0 {
		return errors.New("program has no clips")
	}
	for i, c := range p.Clips {
		if c.DurationS <= 0 {
			return fmt.Errorf("clip %d (%s): duration must be positive", i, c.Name)
		}
		if c.XFadeS < 0 || c.XFadeS > c.DurationS {
			return fmt.Errorf("clip %d (%s): crossfade must be within the clip", i, c.Name)
		}
		if has != nil && !has(c.Illuminator) {
			return fmt.Errorf("clip %d (%s): unknown illuminator %q", i, c.Name, c.Illuminator)
		}
		for name, env := range mergeEnvelopes(c.Params, c.Bools) {
			for _, k := range env.Keys {
				if !k.Ease.Known() {
					return fmt.Errorf("clip %d (%s): %s: unknown ease %q", i, c.Name, name, k.Ease)
				}
			}
		}
		if _, err := parseCommands(c.Commands); err != nil {
			return fmt.Errorf("clip %d (%s): %w", i, c.Name, err)
		}
	}
	return nil
}

func mergeEnvelopes(a, b map[string]Envelope) map[string]Envelope {
	out := make(map[string]Envelope, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func parseCommands(lines []string) ([]command.Command, error) {
	cmds := make([]command.Command, 0, len(lines))
	for _, l := range lines {
		cmd, err := command.Parse(l)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Parse decodes a YAML show program.
func Parse(b []byte) (Program, error) {
	var p Program
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Program{}, fmt.Errorf("show: %w", err)
	}
	if p.Version == "" {
		p.Version = "show.v1"
	}
	return p, nil
}

// LoadFile reads and decodes a show program from path.
func LoadFile(path string) (Program, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Program{}, err
	}
	return Parse(b)
}
