package player_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/remix"
	"github.com/dudk/remix/graph"
	"github.com/dudk/remix/mock"
	"github.com/dudk/remix/player"
)

const (
	sampleRate  = 8000
	numChannels = 2
)

func newPlayer(t *testing.T, loader player.Loader, options ...player.Option) *player.Player {
	t.Helper()
	g, err := graph.New(sampleRate, numChannels)
	require.NoError(t, err)
	p := player.New(sampleRate, numChannels, loader, g, player.NewDiscard(), options...)
	require.NoError(t, p.Start(context.Background()))
	return p
}

func loader() *mock.Loader {
	return &mock.Loader{
		Buffers: map[string]remix.SampleBuffer{
			"long.wav":  mock.Sine(sampleRate, 1, sampleRate*10, 440),
			"short.wav": mock.Sine(sampleRate, 2, 100, 440),
		},
	}
}

func TestStopIdle(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := newPlayer(t, loader())
	p.Stop()
	p.Stop()
	assert.Equal(t, player.Idle, p.State())
	assert.Nil(t, p.Session())
	assert.NoError(t, p.Close())
}

func TestPlayErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	g, err := graph.New(sampleRate, numChannels)
	require.NoError(t, err)

	notStarted := player.New(sampleRate, numChannels, loader(), g, player.NewDiscard(), player.WithSource("long.wav"))
	assert.Equal(t, remix.ErrEngineNotReady, notStarted.Play(context.Background()))

	p := newPlayer(t, loader())
	defer p.Close()
	assert.Equal(t, player.ErrNoSource, p.Play(context.Background()))

	p.SetSource("missing.wav")
	err = p.Play(context.Background())
	var fetchErr *remix.FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, player.Idle, p.State())
}

func TestPlayStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := newPlayer(t, loader(), player.WithSource("long.wav"))
	defer p.Close()

	require.NoError(t, p.Play(context.Background()))
	assert.Equal(t, player.Playing, p.State())
	s := p.Session()
	require.NotNil(t, s)
	assert.Equal(t, 1.0, s.Rate)
	assert.Equal(t, numChannels, s.Buffer.NumChannels())
	assert.Equal(t, sampleRate*10, s.Buffer.Frames())

	p.Stop()
	assert.Equal(t, player.Idle, p.State())
	assert.Nil(t, p.Session())
	select {
	case <-s.Done():
	default:
		t.Fatal("session is not done after stop")
	}
}

func TestSupersededSession(t *testing.T) {
	tests := []struct {
		description string
		options     []player.Option
		firstDone   bool
	}{
		{
			description: "previous session is stopped",
			firstDone:   true,
		},
		{
			description: "overlap",
			options:     []player.Option{player.WithOverlap()},
			firstDone:   false,
		},
	}
	for _, test := range tests {
		p := newPlayer(t, loader(), append(test.options, player.WithSource("long.wav"))...)
		require.NoError(t, p.Play(context.Background()), test.description)
		first := p.Session()
		require.NoError(t, p.Play(context.Background()), test.description)
		second := p.Session()
		assert.NotEqual(t, first.ID(), second.ID(), test.description)

		select {
		case <-first.Done():
			assert.True(t, test.firstDone, test.description)
		default:
			assert.False(t, test.firstDone, test.description)
		}

		// only tracked session is stopped.
		p.Stop()
		<-second.Done()
		assert.Equal(t, player.Idle, p.State(), test.description)
		assert.NoError(t, p.Close(), test.description)
	}
}

func TestSessionEnds(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := newPlayer(t, loader(), player.WithSource("short.wav"))
	defer p.Close()

	require.NoError(t, p.Play(context.Background()))
	s := p.Session()
	require.NotNil(t, s)
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session is not finished")
	}
	assert.Eventually(t, func() bool {
		return p.State() == player.Idle
	}, time.Second, 5*time.Millisecond)
}

func TestPitchShift(t *testing.T) {
	defer goleak.VerifyNone(t)
	tests := []struct {
		description string
		semitones   int
	}{
		{
			description: "up",
			semitones:   player.DefaultSemitones,
		},
		{
			description: "down",
			semitones:   -player.DefaultSemitones,
		},
	}
	p := newPlayer(t, loader(), player.WithSource("long.wav"))
	defer p.Close()
	for _, test := range tests {
		require.NoError(t, p.PitchShift(context.Background(), test.semitones), test.description)
		s := p.Session()
		require.NotNil(t, s, test.description)
		rate := math.Pow(2, float64(test.semitones)/12)
		assert.InDelta(t, rate, s.Rate, 1e-9, test.description)
		expected := float64(sampleRate*10) / rate
		assert.InDelta(t, expected, float64(s.Buffer.Frames()), expected*0.01, test.description)
	}
}

func TestClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := newPlayer(t, loader(), player.WithSource("long.wav"))
	require.NoError(t, p.Play(context.Background()))
	s := p.Session()
	require.NoError(t, p.Close())
	<-s.Done()
	assert.Equal(t, player.Idle, p.State())
	assert.Equal(t, remix.ErrEngineNotReady, p.Play(context.Background()))
	assert.NoError(t, p.Close())
}
