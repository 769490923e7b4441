// Package asset provides in-memory pipe components: a sink that collects
// the signal and a pump that plays a decoded buffer.
package asset

import (
	"io"
	"sync"

	"github.com/dudk/remix"
)

// Asset is a sink which uses a regular buffer as underlying storage.
type Asset struct {
	remix.UID
	SampleRate int
	remix.Buffer

	once sync.Once
}

// New creates new asset.
func New() *Asset {
	return &Asset{UID: remix.NewUID()}
}

// Sink appends buffers to asset. Asset can be sinked only once.
func (a *Asset) Sink(sourceID string, sampleRate, numChannels int) (func(remix.Buffer) error, error) {
	if err := remix.SingleUse(&a.once); err != nil {
		return nil, err
	}
	a.SampleRate = sampleRate
	a.Buffer = remix.EmptyBuffer(numChannels, 0)
	return func(b remix.Buffer) error {
		a.Buffer = a.Buffer.Append(b)
		return nil
	}, nil
}

// SampleBuffer returns collected samples. It should not be called while
// pipe is running.
func (a *Asset) SampleBuffer() remix.SampleBuffer {
	return remix.SampleBufferOf(a.SampleRate, a.Buffer)
}

// Pump plays samples buffer.
type Pump struct {
	remix.UID
	buffer remix.Buffer
	rate   int
	pos    int
}

// NewPump creates pump for samples buffer. Samples are converted once.
func NewPump(sb remix.SampleBuffer) *Pump {
	return &Pump{
		UID:    remix.NewUID(),
		buffer: sb.Buffer(),
		rate:   sb.SampleRate,
	}
}

// Pump returns closure which slices the buffer into blocks of buffer size.
func (p *Pump) Pump(sourceID string, bufferSize int) (func() (remix.Buffer, error), int, int, error) {
	return func() (remix.Buffer, error) {
		b := p.buffer.Slice(p.pos, bufferSize)
		if b == nil {
			return nil, io.EOF
		}
		p.pos += b.Size()
		return b, nil
	}, p.rate, p.buffer.NumChannels(), nil
}

// Reset implements pipe.Resetter. Pump starts from the beginning.
func (p *Pump) Reset(string) error {
	p.pos = 0
	return nil
}
