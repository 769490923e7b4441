// Package mock provides mocks for pipeline components and engine
// collaborators and allows to execute integration tests.
package mock

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/dudk/remix"
)

// Pump mocks a pipe.Pump interface.
type Pump struct {
	counter
	Interval    time.Duration
	Limit       int
	Value       float64
	NumChannels int
	SampleRate  int
	ErrorOnCall error
	Hooks
}

// ID of the mock is its address.
func (m *Pump) ID() string {
	return fmt.Sprintf("pump %p", m)
}

// Pump returns new buffer for pipe.
func (m *Pump) Pump(sourceID string, bufferSize int) (func() (remix.Buffer, error), int, int, error) {
	return func() (remix.Buffer, error) {
		if m.ErrorOnCall != nil {
			return nil, m.ErrorOnCall
		}
		if m.samples >= m.Limit {
			return nil, io.EOF
		}
		time.Sleep(m.Interval)

		// check if we need a shorter.
		bs := bufferSize
		if left := m.Limit - m.samples; left < bs {
			bs = left
		}
		b := remix.EmptyBuffer(m.NumChannels, bs)
		for i := range b {
			for j := range b[i] {
				b[i][j] = m.Value
			}
		}
		m.advance(bs)
		return b, nil
	}, m.SampleRate, m.NumChannels, nil
}

// Reset implements pipe.Resetter.
func (m *Pump) Reset(string) error {
	m.Resetted = true
	if m.ErrorOnReset != nil {
		return m.ErrorOnReset
	}
	m.reset()
	return nil
}

// Interrupt implements pipe.Interrupter.
func (m *Pump) Interrupt(string) error {
	m.Interrupted = true
	return m.ErrorOnInterrupt
}

// Flush implements pipe.Flusher.
func (m *Pump) Flush(string) error {
	m.Flushed = true
	return m.ErrorOnFlush
}

// Processor mocks a pipe.Processor interface.
type Processor struct {
	counter
	ErrorOnCall error
	Hooks
}

// ID of the mock is its address.
func (m *Processor) ID() string {
	return fmt.Sprintf("processor %p", m)
}

// Process implementation for runner.
func (m *Processor) Process(pipeID string, sampleRate, numChannels int) (func(remix.Buffer) (remix.Buffer, error), error) {
	return func(b remix.Buffer) (remix.Buffer, error) {
		if m.ErrorOnCall != nil {
			return nil, m.ErrorOnCall
		}
		m.advance(b.Size())
		return b, nil
	}, nil
}

// Reset implements pipe.Resetter.
func (m *Processor) Reset(string) error {
	m.Resetted = true
	if m.ErrorOnReset != nil {
		return m.ErrorOnReset
	}
	m.reset()
	return nil
}

// Interrupt implements pipe.Interrupter.
func (m *Processor) Interrupt(string) error {
	m.Interrupted = true
	return m.ErrorOnInterrupt
}

// Flush implements pipe.Flusher.
func (m *Processor) Flush(string) error {
	m.Flushed = true
	return m.ErrorOnFlush
}

// Sink mocks up a pipe.Sink interface.
// Buffer is not thread-safe, so should not be checked while pipe is running.
type Sink struct {
	counter
	buffer      remix.Buffer
	Discard     bool
	ErrorOnCall error
	Hooks
}

// ID of the mock is its address.
func (m *Sink) ID() string {
	return fmt.Sprintf("sink %p", m)
}

// Sink implementation for runner.
func (m *Sink) Sink(pipeID string, sampleRate, numChannels int) (func(remix.Buffer) error, error) {
	return func(b remix.Buffer) error {
		if m.ErrorOnCall != nil {
			return m.ErrorOnCall
		}
		if !m.Discard {
			m.buffer = m.buffer.Append(b)
		}
		m.advance(b.Size())
		return nil
	}, nil
}

// Reset implements pipe.Resetter.
func (m *Sink) Reset(string) error {
	m.Resetted = true
	m.buffer = nil
	m.reset()
	return m.ErrorOnReset
}

// Interrupt implements pipe.Interrupter.
func (m *Sink) Interrupt(string) error {
	m.Interrupted = true
	return m.ErrorOnInterrupt
}

// Flush implements pipe.Flusher.
func (m *Sink) Flush(string) error {
	m.Flushed = true
	return m.ErrorOnFlush
}

// Buffer returns sink's buffer.
func (m *Sink) Buffer() remix.Buffer {
	return m.buffer
}

// Hooks allows to mock components hooks.
type Hooks struct {
	Resetted    bool
	Flushed     bool
	Interrupted bool

	ErrorOnReset     error
	ErrorOnFlush     error
	ErrorOnInterrupt error
}

// counter counts messages and samples.
type counter struct {
	messages int
	samples  int
}

// Reset resets counter's metrics.
func (c *counter) reset() {
	c.messages, c.samples = 0, 0
}

// Advance counter's metrics.
func (c *counter) advance(size int) {
	c.messages++
	c.samples = c.samples + size
}

// Count returns messages and samples metrics.
func (c *counter) Count() (int, int) {
	return c.messages, c.samples
}

// Loader mocks source loader. Buffers are returned by reference, missing
// references result in FetchError.
type Loader struct {
	m       sync.Mutex
	Buffers map[string]remix.SampleBuffer
	Delay   time.Duration
	Err     error
	calls   []string
}

// Load returns buffer for the reference.
func (l *Loader) Load(ctx context.Context, ref string) (remix.SampleBuffer, error) {
	l.m.Lock()
	l.calls = append(l.calls, ref)
	l.m.Unlock()

	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return remix.SampleBuffer{}, ctx.Err()
		}
	}
	if l.Err != nil {
		return remix.SampleBuffer{}, l.Err
	}
	sb, ok := l.Buffers[ref]
	if !ok {
		return remix.SampleBuffer{}, &remix.FetchError{Ref: ref, Err: fmt.Errorf("not found")}
	}
	return sb, nil
}

// Calls returns all references passed to Load.
func (l *Loader) Calls() []string {
	l.m.Lock()
	defer l.m.Unlock()
	result := make([]string, len(l.calls))
	copy(result, l.calls)
	return result
}

// Sine returns buffer with sine wave of provided frequency in every channel.
func Sine(sampleRate, numChannels, frames int, freq float64) remix.SampleBuffer {
	sb := remix.NewSampleBuffer(sampleRate, numChannels, frames)
	for c := range sb.Samples {
		for i := range sb.Samples[c] {
			sb.Samples[c][i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		}
	}
	return sb
}
