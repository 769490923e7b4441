package remix

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/resample"
)

// maxDenominator limits rate ratio approximation. Playback rates like
// 2^(2/12) are irrational, so the polyphase filter size is bounded.
const maxDenominator = 1024

// Resample converts buffer so it sounds at provided rate multiplier when
// played at target sample rate. Rate 1 with equal sample rates returns a
// copy. Both pitch and duration change together.
func Resample(sb SampleBuffer, rate float64, targetRate int) (SampleBuffer, error) {
	if rate <= 0 || targetRate <= 0 || sb.SampleRate <= 0 {
		return SampleBuffer{}, fmt.Errorf("invalid resample: rate %v from %d Hz to %d Hz", rate, sb.SampleRate, targetRate)
	}
	inRate := float64(sb.SampleRate) * rate
	if inRate == float64(targetRate) {
		return copyOf(sb, targetRate), nil
	}

	r, err := resample.NewForRates(inRate, float64(targetRate), resample.WithMaxDenominator(maxDenominator))
	if err != nil {
		return SampleBuffer{}, fmt.Errorf("resampler %v Hz to %d Hz: %w", inRate, targetRate, err)
	}
	result := SampleBuffer{
		SampleRate: targetRate,
		Samples:    make([][]float32, len(sb.Samples)),
	}
	in := make([]float64, sb.Frames())
	for c := range sb.Samples {
		r.Reset()
		for i, v := range sb.Samples[c] {
			in[i] = float64(v)
		}
		out := r.Process(in)
		result.Samples[c] = make([]float32, len(out))
		for i, v := range out {
			result.Samples[c][i] = float32(v)
		}
	}
	return result, nil
}

// MapChannels returns buffer with provided number of channels. Mono is
// copied into every channel, down-mix to mono averages all channels. In
// other cases missing channels are silent and extra channels are dropped.
func MapChannels(sb SampleBuffer, numChannels int) SampleBuffer {
	if sb.NumChannels() == numChannels || sb.NumChannels() == 0 {
		return sb
	}
	frames := sb.Frames()
	result := NewSampleBuffer(sb.SampleRate, numChannels, frames)
	switch {
	case sb.NumChannels() == 1:
		for c := range result.Samples {
			copy(result.Samples[c], sb.Samples[0])
		}
	case numChannels == 1:
		scale := 1 / float32(sb.NumChannels())
		for c := range sb.Samples {
			for i, v := range sb.Samples[c] {
				result.Samples[0][i] += v * scale
			}
		}
	default:
		for c := 0; c < numChannels && c < sb.NumChannels(); c++ {
			copy(result.Samples[c], sb.Samples[c])
		}
	}
	return result
}

// Fit returns buffer with exact number of frames. Shorter buffer is padded
// with silence, longer is truncated.
func Fit(sb SampleBuffer, frames int) SampleBuffer {
	result := NewSampleBuffer(sb.SampleRate, sb.NumChannels(), frames)
	for c := range sb.Samples {
		copy(result.Samples[c], sb.Samples[c])
	}
	return result
}

func copyOf(sb SampleBuffer, sampleRate int) SampleBuffer {
	result := NewSampleBuffer(sampleRate, sb.NumChannels(), sb.Frames())
	for c := range sb.Samples {
		copy(result.Samples[c], sb.Samples[c])
	}
	return result
}
