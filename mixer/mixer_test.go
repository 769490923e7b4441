package mixer_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/remix"
	"github.com/dudk/remix/mixer"
	"github.com/dudk/remix/pipe"
)

func constant(numChannels, size int, value float64) remix.Buffer {
	b := remix.EmptyBuffer(numChannels, size)
	for c := range b {
		for i := range b[c] {
			b[c][i] = value
		}
	}
	return b
}

func TestMix(t *testing.T) {
	tests := []struct {
		description string
		bufferSize  int
		voices      []remix.Buffer
		expected    [][]float64
	}{
		{
			description: "silence without voices",
			bufferSize:  2,
			expected:    [][]float64{{0, 0}, {0, 0}},
		},
		{
			description: "single voice",
			bufferSize:  2,
			voices:      []remix.Buffer{constant(1, 3, 0.5)},
			expected:    [][]float64{{0.5, 0.5}, {0.5, 0}, {0, 0}},
		},
		{
			description: "voices are summed",
			bufferSize:  2,
			voices:      []remix.Buffer{constant(1, 4, 0.5), constant(1, 2, 0.25)},
			expected:    [][]float64{{0.75, 0.75}, {0.5, 0.5}, {0, 0}},
		},
	}
	for _, test := range tests {
		m := mixer.New(44100, 1)
		var done int32
		for i, v := range test.voices {
			err := m.Add(string(rune('a'+i)), v, func() { atomic.AddInt32(&done, 1) })
			require.NoError(t, err, test.description)
		}
		fn, sampleRate, numChannels, err := m.Pump("test", test.bufferSize)
		require.NoError(t, err, test.description)
		assert.Equal(t, 44100, sampleRate, test.description)
		assert.Equal(t, 1, numChannels, test.description)

		for _, expected := range test.expected {
			b, err := fn()
			require.NoError(t, err, test.description)
			assert.Equal(t, expected, b[0], test.description)
		}
		assert.Equal(t, int32(len(test.voices)), atomic.LoadInt32(&done), test.description)
		assert.Equal(t, 0, m.Voices(), test.description)
	}
}

func TestAddRemove(t *testing.T) {
	m := mixer.New(44100, 2)
	called := false
	onDone := func() { called = true }

	assert.Error(t, m.Add("mono", constant(1, 10, 0.1), onDone))
	require.NoError(t, m.Add("stereo", constant(2, 10, 0.1), onDone))
	assert.Error(t, m.Add("stereo", constant(2, 10, 0.1), onDone))
	assert.Equal(t, 1, m.Voices())

	require.NoError(t, m.Remove("stereo"))
	assert.True(t, errors.Is(m.Remove("stereo"), mixer.ErrVoiceNotFound))
	assert.Equal(t, 0, m.Voices())

	fn, _, _, err := m.Pump("test", 10)
	require.NoError(t, err)
	b, err := fn()
	require.NoError(t, err)
	assert.Equal(t, constant(2, 10, 0), b)
	assert.False(t, called)
}

// voicedSink counts non-silent samples. Safe to read while pipe runs.
type voicedSink struct {
	voiced atomic.Int64
}

func (s *voicedSink) ID() string {
	return "voiced"
}

func (s *voicedSink) Sink(string, int, int) (pipe.SinkFunc, error) {
	return func(b remix.Buffer) error {
		var n int64
		for i := range b[0] {
			if b[0][i] != 0 {
				n++
			}
		}
		s.voiced.Add(n)
		return nil
	}, nil
}

func TestLivePipe(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := mixer.New(44100, 1)
	sink := &voicedSink{}
	p, err := pipe.New(64, pipe.WithPump(m), pipe.WithSinks(sink))
	require.NoError(t, err)
	r, err := p.Run(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	require.NoError(t, m.Add("voice", constant(1, 1000, 0.3), func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("voice is not done")
	}
	// done means pumped, the tail can still be on the way to the sink.
	assert.Eventually(t, func() bool {
		return sink.voiced.Load() == 1000
	}, time.Second, time.Millisecond)
	assert.NoError(t, r.Stop())
	assert.Equal(t, int64(1000), sink.voiced.Load())
}
