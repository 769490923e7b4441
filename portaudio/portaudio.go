// Package portaudio plays the signal on the default output device.
package portaudio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/dudk/remix"
)

// Sink represets portaudio sink which allows to play audio using default device.
type Sink struct {
	remix.UID
	buf         []float32
	stream      *portaudio.Stream
	bufferSize  int
	numChannels int
}

// NewSink returns new sink. Buffer size must match the buffer size of the
// pipe.
func NewSink(bufferSize int) *Sink {
	return &Sink{
		UID:        remix.NewUID(),
		bufferSize: bufferSize,
	}
}

// Sink writes the buffer of data to portaudio stream.
// It aslo initilizes a portaudio api with default stream.
func (s *Sink) Sink(sourceID string, sampleRate, numChannels int) (func(remix.Buffer) error, error) {
	s.numChannels = numChannels
	s.buf = make([]float32, s.bufferSize*numChannels)
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	var err error
	s.stream, err = portaudio.OpenDefaultStream(0, numChannels, float64(sampleRate), s.bufferSize, &s.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	if err = s.stream.Start(); err != nil {
		_ = s.stream.Close()
		_ = portaudio.Terminate()
		return nil, err
	}
	return func(b remix.Buffer) error {
		if b.Size() > s.bufferSize {
			return fmt.Errorf("buffer of %d frames exceeds stream buffer of %d frames", b.Size(), s.bufferSize)
		}
		// shorter buffers are padded with silence.
		for i := range s.buf {
			s.buf[i] = 0
		}
		for i := 0; i < b.Size(); i++ {
			for j := range b {
				s.buf[i*s.numChannels+j] = float32(b[j][i])
			}
		}
		return s.stream.Write()
	}, nil
}

// Flush terminates portaudio structures.
func (s *Sink) Flush(string) error {
	return s.close()
}

// Interrupt terminates portaudio structures when pipe is stopped.
func (s *Sink) Interrupt(string) error {
	return s.close()
}

func (s *Sink) close() error {
	if s.stream == nil {
		return nil
	}
	defer func() { s.stream = nil }()
	if err := s.stream.Stop(); err != nil {
		return err
	}
	if err := s.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
