// Package otoaudio plays the signal with oto library.
package otoaudio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"github.com/dudk/remix"
)

// oto allows single context per process.
var (
	once       sync.Once
	otoContext *oto.Context
	contextErr error
	sampleRate int
	channels   int
)

func newContext(sr, numChannels int) (*oto.Context, error) {
	once.Do(func() {
		var ready chan struct{}
		otoContext, ready, contextErr = oto.NewContext(sr, numChannels, oto.FormatFloat32LE)
		if contextErr == nil {
			<-ready
			sampleRate, channels = sr, numChannels
		}
	})
	if contextErr != nil {
		return nil, contextErr
	}
	if sr != sampleRate || numChannels != channels {
		return nil, fmt.Errorf("oto context is %d Hz with %d channels, requested %d Hz with %d channels", sampleRate, channels, sr, numChannels)
	}
	return otoContext, nil
}

// Sink plays the signal on default device. Samples are passed to oto
// player through a pipe, so writes block until player consumes them.
type Sink struct {
	remix.UID
	player oto.Player
	w      *io.PipeWriter
	buf    []byte
}

// NewSink returns new oto sink.
func NewSink() *Sink {
	return &Sink{UID: remix.NewUID()}
}

// Sink starts the player.
func (s *Sink) Sink(sourceID string, sampleRate, numChannels int) (func(remix.Buffer) error, error) {
	ctx, err := newContext(sampleRate, numChannels)
	if err != nil {
		return nil, err
	}
	r, w := io.Pipe()
	s.w = w
	s.player = ctx.NewPlayer(r)
	s.player.Play()
	return func(b remix.Buffer) error {
		size := b.Size() * b.NumChannels() * 4
		if cap(s.buf) < size {
			s.buf = make([]byte, size)
		}
		s.buf = s.buf[:size]
		pos := 0
		for i := 0; i < b.Size(); i++ {
			for c := range b {
				binary.LittleEndian.PutUint32(s.buf[pos:], math.Float32bits(float32(b[c][i])))
				pos += 4
			}
		}
		_, err := s.w.Write(s.buf)
		return err
	}, nil
}

// Flush stops the player.
func (s *Sink) Flush(string) error {
	return s.close()
}

// Interrupt stops the player.
func (s *Sink) Interrupt(string) error {
	return s.close()
}

func (s *Sink) close() error {
	if s.player == nil {
		return nil
	}
	_ = s.w.Close()
	err := s.player.Close()
	s.player, s.w = nil, nil
	return err
}
