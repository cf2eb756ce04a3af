package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the command keyword sent to the controller.
type Kind string

const (
	KindInfo    Kind = "INFO"
	KindBright  Kind = "BRIGHT"
	KindRPS     Kind = "RPS"
	KindPercent Kind = "PERCENT"
	KindRandom  Kind = "RANDOM"
	KindOff     Kind = "OFF"
	KindAll     Kind = "ALL"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMalformed      = errors.New("malformed command")
)

// Command is one line of the controller protocol: KEYWORD[:a,b,c].
type Command struct {
	Kind Kind
	Args []string
}

func Info() Command   { return Command{Kind: KindInfo} }
func Random() Command { return Command{Kind: KindRandom} }
func Off() Command    { return Command{Kind: KindOff} }

// Bright clamps into 0..255.
func Bright(v int) Command {
	return Command{Kind: KindBright, Args: []string{strconv.Itoa(clampByte(v))}}
}

func RPS(v float64) Command {
	return Command{Kind: KindRPS, Args: []string{strconv.FormatFloat(v, 'f', -1, 64)}}
}

func Percent(g, r, b int) Command {
	return Command{Kind: KindPercent, Args: []string{strconv.Itoa(g), strconv.Itoa(r), strconv.Itoa(b)}}
}

func All(r, g, b int) Command {
	return Command{Kind: KindAll, Args: []string{
		strconv.Itoa(clampByte(r)), strconv.Itoa(clampByte(g)), strconv.Itoa(clampByte(b)),
	}}
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return string(c.Kind)
	}
	return string(c.Kind) + ":" + strings.Join(c.Args, ",")
}

// Line is the newline-terminated wire form.
func (c Command) Line() string { return c.String() + "\n" }

// arity per keyword; -1 means no payload.
var arity = map[Kind]int{
	KindInfo:    -1,
	KindBright:  1,
	KindRPS:     1,
	KindPercent: 3,
	KindRandom:  -1,
	KindOff:     -1,
	KindAll:     3,
}

// Parse reads one line (trailing CR/LF tolerated).
func Parse(line string) (Command, error) {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrMalformed
	}
	key, payload, hasPayload := strings.Cut(line, ":")
	k := Kind(strings.ToUpper(key))
	n, ok := arity[k]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, key)
	}
	if n < 0 {
		if hasPayload {
			return Command{}, fmt.Errorf("%w: %s takes no payload", ErrMalformed, k)
		}
		return Command{Kind: k}, nil
	}
	if !hasPayload {
		return Command{}, fmt.Errorf("%w: %s needs %d value(s)", ErrMalformed, k, n)
	}
	args := strings.Split(payload, ",")
	if len(args) != n {
		return Command{}, fmt.Errorf("%w: %s needs %d value(s), got %d", ErrMalformed, k, n, len(args))
	}
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
		if k == KindRPS {
			if _, err := strconv.ParseFloat(args[i], 64); err != nil {
				return Command{}, fmt.Errorf("%w: %s: %v", ErrMalformed, k, err)
			}
			continue
		}
		if _, err := strconv.Atoi(args[i]); err != nil {
			return Command{}, fmt.Errorf("%w: %s: %v", ErrMalformed, k, err)
		}
	}
	return Command{Kind: k, Args: args}, nil
}

// Int returns argument i as an int; 0 when missing or not numeric.
func (c Command) Int(i int) int {
	if i >= len(c.Args) {
		return 0
	}
	v, _ := strconv.Atoi(c.Args[i])
	return v
}

// Float returns argument i as a float64; 0 when missing or not numeric.
func (c Command) Float(i int) float64 {
	if i >= len(c.Args) {
		return 0
	}
	v, _ := strconv.ParseFloat(c.Args[i], 64)
	return v
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
