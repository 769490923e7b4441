// Package intent classifies free text into engine commands.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dudk/remix"
)

// Effect is the class of the text.
type Effect string

// Known effects.
const (
	Reverb       Effect = "reverb"
	ReduceReverb Effect = "reduce-reverb"
	Delay        Effect = "delay"
	Gain         Effect = "gain"
	PitchShift   Effect = "pitch-shift"
	Filter       Effect = "filter"
	Unknown      Effect = "unknown"
)

// Intent is the result of classification. Semitones is only set for
// pitch shift, it's negative when pitch is shifted down.
type Intent struct {
	Effect    Effect
	Semitones *int
	// Down is true when text asks to lower the gain.
	Down bool
}

var numberWords = []struct {
	re    *regexp.Regexp
	digit string
}{
	{regexp.MustCompile(`\bzero\b`), "0"},
	{regexp.MustCompile(`\bone\b`), "1"},
	{regexp.MustCompile(`\btwo\b`), "2"},
	{regexp.MustCompile(`\bthree\b`), "3"},
	{regexp.MustCompile(`\bfour\b`), "4"},
	{regexp.MustCompile(`\bfive\b`), "5"},
	{regexp.MustCompile(`\bsix\b`), "6"},
	{regexp.MustCompile(`\bseven\b`), "7"},
	{regexp.MustCompile(`\beight\b`), "8"},
	{regexp.MustCompile(`\bnine\b`), "9"},
	{regexp.MustCompile(`\bten\b`), "10"},
}

var (
	reduceReverb = regexp.MustCompile(`\b(reduce|remove|less|no|lower|cut|off)\b.*reverb|reverb\b.*\boff\b`)
	pitch        = regexp.MustCompile(`pitch shift (up|down) (\d+)`)
	down         = regexp.MustCompile(`\b(down|decrease|lower|reduce|quieter)\b`)
)

// Normalize lower-cases the text and replaces number words with digits.
func Normalize(text string) string {
	text = strings.ToLower(text)
	for _, w := range numberWords {
		text = w.re.ReplaceAllString(text, w.digit)
	}
	return text
}

// Parse classifies the text. Checks are made in order: reduce reverb,
// reverb, delay, pitch shift, filter and gain.
func Parse(text string) Intent {
	text = Normalize(text)
	switch {
	case reduceReverb.MatchString(text):
		return Intent{Effect: ReduceReverb}
	case strings.Contains(text, "reverb"):
		return Intent{Effect: Reverb}
	case strings.Contains(text, "delay"):
		return Intent{Effect: Delay}
	}
	if m := pitch.FindStringSubmatch(text); m != nil {
		semitones, err := strconv.Atoi(m[2])
		if err == nil {
			if m[1] == "down" {
				semitones = -semitones
			}
			return Intent{Effect: PitchShift, Semitones: &semitones}
		}
	}
	switch {
	case strings.Contains(text, "filter"):
		return Intent{Effect: Filter}
	case strings.Contains(text, "gain") || strings.Contains(text, "volume"):
		return Intent{Effect: Gain, Down: down.MatchString(text)}
	}
	return Intent{Effect: Unknown}
}

// Command maps intent to engine command. False is returned for unknown
// intent.
func (i Intent) Command() (remix.Command, bool) {
	switch i.Effect {
	case Reverb:
		return remix.AddReverb.Cmd(), true
	case ReduceReverb:
		return remix.ReduceReverb.Cmd(), true
	case Delay:
		return remix.AddDelay.Cmd(), true
	case Filter:
		return remix.AddFilter.Cmd(), true
	case Gain:
		if i.Down {
			return remix.GainDown.Cmd(), true
		}
		return remix.GainUp.Cmd(), true
	case PitchShift:
		if i.Semitones == nil {
			return remix.Command{}, false
		}
		s := *i.Semitones
		if s < 0 {
			return remix.PitchDown.Cmd().WithParam(float64(-s)), true
		}
		return remix.PitchUp.Cmd().WithParam(float64(s)), true
	}
	return remix.Command{}, false
}
