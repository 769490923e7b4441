package remix

import (
	"fmt"
	"strings"
)

// Verb identifies the action of the command.
type Verb int

// Command vocabulary.
const (
	Play Verb = iota + 1
	Stop
	SetSource
	AddReverb
	ReduceReverb
	AddDelay
	RemoveDelay
	PitchUp
	PitchDown
	GainUp
	GainDown
	AddFilter
	RemoveFilter
	Download
)

// Command is a request to change the engine state. Param is optional
// numeric argument, Ref is used by SetSource.
type Command struct {
	Verb  Verb
	Param *float64
	Ref   string
}

var verbNames = map[Verb]string{
	Play:         "play",
	Stop:         "stop",
	SetSource:    "set-source",
	AddReverb:    "add-reverb",
	ReduceReverb: "reduce-reverb",
	AddDelay:     "add-delay",
	RemoveDelay:  "remove-delay",
	PitchUp:      "pitch-up",
	PitchDown:    "pitch-down",
	GainUp:       "gain-up",
	GainDown:     "gain-down",
	AddFilter:    "add-filter",
	RemoveFilter: "remove-filter",
	Download:     "download",
}

// aliases are action names used by button controls.
var aliases = map[string]Verb{
	"reverb":        AddReverb,
	"delay":         AddDelay,
	"filter":        AddFilter,
	"source":        SetSource,
	"increase-gain": GainUp,
	"decrease-gain": GainDown,
}

// ParseVerb returns verb for its name. Both canonical names and control
// aliases are accepted, case-insensitive.
func ParseVerb(name string) (Verb, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for v, n := range verbNames {
		if n == name {
			return v, nil
		}
	}
	if v, ok := aliases[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown verb: %q", name)
}

func (v Verb) String() string {
	if n, ok := verbNames[v]; ok {
		return n
	}
	return "unknown"
}

// Cmd returns command for the verb without arguments.
func (v Verb) Cmd() Command {
	return Command{Verb: v}
}

// WithParam returns copy of the command with numeric param.
func (c Command) WithParam(v float64) Command {
	c.Param = &v
	return c
}

// ParamOr returns command param or provided default value if it's not set.
func (c Command) ParamOr(def float64) float64 {
	if c.Param == nil {
		return def
	}
	return *c.Param
}

func (c Command) String() string {
	switch {
	case c.Ref != "":
		return fmt.Sprintf("%v %v", c.Verb, c.Ref)
	case c.Param != nil:
		return fmt.Sprintf("%v %v", c.Verb, *c.Param)
	}
	return c.Verb.String()
}
