package remix

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Buffer is a block of samples in two-dimensional slice where first
// dimension is for channels. It's the unit transported by pipes.
type Buffer [][]float64

// SampleBuffer is a decoded or rendered piece of audio. Every channel has
// the same number of frames. Values are not clamped, so intermediate
// results might exceed [-1, 1].
type SampleBuffer struct {
	SampleRate int
	Samples    [][]float32
}

// UID is a string unique identifier.
type UID string

// ErrSingleUseReused is returned when object designed for single-use is being reused.
var ErrSingleUseReused = errors.New("single-use object is reused")

// ErrChannelLength is returned when channels of the buffer have different length.
var ErrChannelLength = errors.New("channels have different length")

// NewUID returns new UID value.
func NewUID() UID {
	return UID(xid.New().String())
}

// ID returns string value of unique identifier. Should be used to satisfy
// components interfaces.
func (id UID) ID() string {
	return string(id)
}

// SingleUse is designed to be used in runner-return functions to define a
// single-use pipe components.
func SingleUse(once *sync.Once) (err error) {
	err = ErrSingleUseReused
	once.Do(func() {
		err = nil
	})
	return
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// EmptyBuffer returns an empty buffer of specified dimensions.
func EmptyBuffer(numChannels int, size int) Buffer {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, size)
	}
	return result
}

// NumChannels returns number of channels in this buffer.
func (b Buffer) NumChannels() int {
	return len(b)
}

// Size returns number of samples in single channel of this buffer.
func (b Buffer) Size() int {
	if b.NumChannels() == 0 {
		return 0
	}
	return len(b[0])
}

// Append buffer to existing one. New buffer is returned if b is nil.
func (b Buffer) Append(source Buffer) Buffer {
	if b == nil {
		b = make([][]float64, source.NumChannels())
		for i := range b {
			b[i] = make([]float64, 0, source.Size())
		}
	}
	for i := range source {
		b[i] = append(b[i], source[i]...)
	}
	return b
}

// Slice creates a new copy of buffer from start position with defined length.
// If buffer doesn't have enough samples, shorten block is returned.
//
// if start >= buffer size, nil is returned
// if start + len >= buffer size, len is decreased till the end of slice
// if start < 0, nil is returned
func (b Buffer) Slice(start int, len int) Buffer {
	if b == nil || start >= b.Size() || start < 0 {
		return nil
	}
	end := start + len
	if end > b.Size() {
		end = b.Size()
	}
	result := make([][]float64, b.NumChannels())
	for i := range b {
		result[i] = append(result[i], b[i][start:end]...)
	}
	return result
}

// NumChannels returns number of channels.
func (sb SampleBuffer) NumChannels() int {
	return len(sb.Samples)
}

// Frames returns number of frames, the length of each channel.
func (sb SampleBuffer) Frames() int {
	if len(sb.Samples) == 0 {
		return 0
	}
	return len(sb.Samples[0])
}

// Duration of the buffer for its sample rate.
func (sb SampleBuffer) Duration() time.Duration {
	if sb.SampleRate <= 0 {
		return 0
	}
	return DurationOf(sb.SampleRate, int64(sb.Frames()))
}

// Validate checks that all channels have identical length.
func (sb SampleBuffer) Validate() error {
	frames := sb.Frames()
	for i := range sb.Samples {
		if len(sb.Samples[i]) != frames {
			return ErrChannelLength
		}
	}
	return nil
}

// Buffer converts samples into pipe buffer. Samples are copied.
func (sb SampleBuffer) Buffer() Buffer {
	result := make([][]float64, len(sb.Samples))
	for i := range sb.Samples {
		result[i] = make([]float64, len(sb.Samples[i]))
		for j, v := range sb.Samples[i] {
			result[i][j] = float64(v)
		}
	}
	return result
}

// NewSampleBuffer returns silent buffer of provided dimensions.
func NewSampleBuffer(sampleRate, numChannels, frames int) SampleBuffer {
	samples := make([][]float32, numChannels)
	for i := range samples {
		samples[i] = make([]float32, frames)
	}
	return SampleBuffer{
		SampleRate: sampleRate,
		Samples:    samples,
	}
}

// SampleBufferOf converts pipe buffer into samples. Values are copied.
func SampleBufferOf(sampleRate int, b Buffer) SampleBuffer {
	samples := make([][]float32, len(b))
	for i := range b {
		samples[i] = make([]float32, len(b[i]))
		for j, v := range b[i] {
			samples[i][j] = float32(v)
		}
	}
	return SampleBuffer{
		SampleRate: sampleRate,
		Samples:    samples,
	}
}
