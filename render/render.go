// Package render produces fixed-duration buffers of the source offline.
// Every render runs its own pipe:
//
//	asset.Pump -> graph.Graph -> asset.Asset
//
// Graph of the render is private. By default it's a pass-through gain, so
// live effects don't affect the result.
package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dudk/remix"
	"github.com/dudk/remix/asset"
	"github.com/dudk/remix/graph"
	"github.com/dudk/remix/log"
	"github.com/dudk/remix/metric"
	"github.com/dudk/remix/pipe"
)

// Defaults of the render.
const (
	DefaultDuration   = 40 * time.Second
	DefaultSampleRate = 44100
	DefaultChannels   = 2
	// DefaultCapacity limits the duration of the render.
	DefaultCapacity = 10 * time.Minute

	bufferSize = 4096
)

// Loader loads the source.
type Loader interface {
	Load(context.Context, string) (remix.SampleBuffer, error)
}

// Renderer renders sources offline.
type Renderer struct {
	loader Loader
	log    log.Logger
}

// New returns new renderer.
func New(l Loader) *Renderer {
	return &Renderer{
		loader: l,
		log:    log.GetLogger(),
	}
}

type options struct {
	duration    time.Duration
	sampleRate  int
	numChannels int
	maxFrames   int
	state       *graph.State
}

// Option configures single render.
type Option func(*options)

// WithDuration sets duration of the result.
func WithDuration(d time.Duration) Option {
	return func(o *options) {
		o.duration = d
	}
}

// WithSampleRate sets sample rate of the result.
func WithSampleRate(sampleRate int) Option {
	return func(o *options) {
		o.sampleRate = sampleRate
	}
}

// WithChannels sets number of channels of the result.
func WithChannels(n int) Option {
	return func(o *options) {
		o.numChannels = n
	}
}

// WithMaxFrames limits number of frames the render can produce.
func WithMaxFrames(n int) Option {
	return func(o *options) {
		o.maxFrames = n
	}
}

// WithGraphState applies effects state to the render.
func WithGraphState(s graph.State) Option {
	return func(o *options) {
		o.state = &s
	}
}

// Frames returns number of frames for duration at sample rate.
func Frames(d time.Duration, sampleRate int) int {
	return int(math.Round(d.Seconds() * float64(sampleRate)))
}

// Render decodes the source and returns buffer of exactly duration *
// sample rate frames. Shorter source is padded with silence, longer is
// truncated.
func (r *Renderer) Render(ctx context.Context, ref string, opts ...Option) (remix.SampleBuffer, error) {
	o := options{
		duration:    DefaultDuration,
		sampleRate:  DefaultSampleRate,
		numChannels: DefaultChannels,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sampleRate <= 0 || o.numChannels <= 0 || o.duration < 0 {
		return remix.SampleBuffer{}, fmt.Errorf("invalid render: %v at %d Hz with %d channels", o.duration, o.sampleRate, o.numChannels)
	}
	if o.maxFrames <= 0 {
		o.maxFrames = Frames(DefaultCapacity, o.sampleRate)
	}
	frames := Frames(o.duration, o.sampleRate)
	if frames > o.maxFrames {
		return remix.SampleBuffer{}, &remix.RenderTimeoutError{Frames: frames, Capacity: o.maxFrames}
	}

	start := time.Now()
	sb, err := r.loader.Load(ctx, ref)
	if err != nil {
		return remix.SampleBuffer{}, timeout(ctx, frames, err)
	}
	sb, err = remix.Resample(sb, 1, o.sampleRate)
	if err != nil {
		return remix.SampleBuffer{}, fmt.Errorf("resample %v: %w", ref, err)
	}
	sb = remix.Fit(remix.MapChannels(sb, o.numChannels), frames)
	if err := ctx.Err(); err != nil {
		return remix.SampleBuffer{}, timeout(ctx, frames, err)
	}

	result, err := r.run(ctx, sb, o)
	if err != nil {
		return remix.SampleBuffer{}, timeout(ctx, frames, err)
	}
	metric.Render(time.Since(start))
	r.log.Debugf("rendered %v: %d frames in %v", ref, result.Frames(), time.Since(start))
	return result, nil
}

// run processes buffer with the graph.
func (r *Renderer) run(ctx context.Context, sb remix.SampleBuffer, o options) (remix.SampleBuffer, error) {
	var (
		g   *graph.Graph
		err error
	)
	if o.state != nil {
		g, err = graph.FromState(ctx, o.sampleRate, o.numChannels, *o.state)
	} else {
		g, err = graph.New(o.sampleRate, o.numChannels)
	}
	if err != nil {
		return remix.SampleBuffer{}, err
	}
	defer g.Close()

	sink := asset.New()
	p, err := pipe.New(
		bufferSize,
		pipe.WithName("render"),
		pipe.WithMetric(metric.New("render")),
		pipe.WithPump(asset.NewPump(sb)),
		pipe.WithProcessors(g),
		pipe.WithSinks(sink),
	)
	if err != nil {
		return remix.SampleBuffer{}, err
	}
	runner, err := p.Run(ctx)
	if err != nil {
		return remix.SampleBuffer{}, err
	}
	if err := runner.Wait(); err != nil {
		return remix.SampleBuffer{}, err
	}
	// canceled pipe is not an error of the runner.
	if err := ctx.Err(); err != nil {
		return remix.SampleBuffer{}, err
	}
	return sink.SampleBuffer(), nil
}

// timeout converts deadline errors into RenderTimeoutError.
func timeout(ctx context.Context, frames int, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &remix.RenderTimeoutError{Frames: frames, Err: err}
	}
	return err
}
