package render_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/remix"
	"github.com/dudk/remix/graph"
	"github.com/dudk/remix/mock"
	"github.com/dudk/remix/render"
)

func loader() *mock.Loader {
	return &mock.Loader{
		Buffers: map[string]remix.SampleBuffer{
			"short.wav": mock.Sine(44100, 1, 44100, 440),
			"long.wav":  mock.Sine(8000, 2, 8000*5, 440),
			"low.wav":   mock.Sine(22050, 2, 22050, 440),
		},
	}
}

func TestFixedDuration(t *testing.T) {
	r := render.New(loader())
	sb, err := r.Render(context.Background(), "short.wav")
	require.NoError(t, err)
	assert.Equal(t, 44100*40, sb.Frames())
	assert.Equal(t, 44100, sb.SampleRate)
	assert.Equal(t, 2, sb.NumChannels())
	assert.NoError(t, sb.Validate())

	src := mock.Sine(44100, 1, 44100, 440)
	for c := range sb.Samples {
		assert.Equal(t, src.Samples[0], sb.Samples[c][:44100])
		for _, v := range sb.Samples[c][44100:] {
			if v != 0 {
				t.Fatal("padding is not silent")
			}
		}
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		description string
		ref         string
		options     []render.Option
		frames      int
		numChannels int
	}{
		{
			description: "truncated",
			ref:         "long.wav",
			options:     []render.Option{render.WithDuration(2 * time.Second), render.WithSampleRate(8000)},
			frames:      16000,
			numChannels: 2,
		},
		{
			description: "resampled mono",
			ref:         "low.wav",
			options: []render.Option{
				render.WithDuration(3 * time.Second),
				render.WithSampleRate(44100),
				render.WithChannels(1),
			},
			frames:      3 * 44100,
			numChannels: 1,
		},
		{
			description: "empty",
			ref:         "low.wav",
			options:     []render.Option{render.WithDuration(0)},
			frames:      0,
			numChannels: 2,
		},
	}
	r := render.New(loader())
	for _, test := range tests {
		sb, err := r.Render(context.Background(), test.ref, test.options...)
		require.NoError(t, err, test.description)
		assert.Equal(t, test.frames, sb.Frames(), test.description)
		assert.Equal(t, test.numChannels, sb.NumChannels(), test.description)
	}
}

func TestRenderErrors(t *testing.T) {
	var timeoutErr *remix.RenderTimeoutError

	r := render.New(loader())
	_, err := r.Render(context.Background(), "short.wav", render.WithMaxFrames(44100))
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, 44100*40, timeoutErr.Frames)
	assert.Equal(t, 44100, timeoutErr.Capacity)

	_, err = r.Render(context.Background(), "short.wav", render.WithDuration(11*time.Minute))
	assert.True(t, errors.As(err, &timeoutErr))

	_, err = r.Render(context.Background(), "missing.wav")
	var fetchErr *remix.FetchError
	assert.True(t, errors.As(err, &fetchErr))

	_, err = r.Render(context.Background(), "short.wav", render.WithSampleRate(0))
	assert.Error(t, err)

	slow := loader()
	slow.Delay = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = render.New(slow).Render(ctx, "short.wav")
	require.True(t, errors.As(err, &timeoutErr))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGraphState(t *testing.T) {
	r := render.New(loader())
	options := []render.Option{render.WithDuration(time.Second), render.WithSampleRate(8000)}
	dry, err := r.Render(context.Background(), "long.wav", options...)
	require.NoError(t, err)

	g, err := graph.New(8000, 2)
	require.NoError(t, err)
	require.NoError(t, g.SetGain(0.5))
	s, err := g.Snapshot()
	require.NoError(t, err)

	wet, err := r.Render(context.Background(), "long.wav", append(options, render.WithGraphState(s))...)
	require.NoError(t, err)
	require.Equal(t, dry.Frames(), wet.Frames())
	for c := range dry.Samples {
		for i := range dry.Samples[c] {
			assert.InDelta(t, dry.Samples[c][i]*0.5, wet.Samples[c][i], 1e-6)
		}
	}

	// live graph is not affected.
	v, err := g.Gain()
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
}
