package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dudk/remix/config"
	"github.com/dudk/remix/dispatch"
	"github.com/dudk/remix/graph"
	"github.com/dudk/remix/log"
	"github.com/dudk/remix/metric"
	"github.com/dudk/remix/otoaudio"
	"github.com/dudk/remix/pipe"
	"github.com/dudk/remix/player"
	"github.com/dudk/remix/portaudio"
	"github.com/dudk/remix/render"
	"github.com/dudk/remix/source"
)

// loadConfig returns defaults if path is empty.
func loadConfig(path string) (*config.Config, error) {
	c := config.Default()
	if path != "" {
		var err error
		if c, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := log.SetLevel(c.Logging.Level); err != nil {
		return nil, err
	}
	return c, nil
}

func renderOptions(c *config.Config) []render.Option {
	return []render.Option{
		render.WithDuration(c.Export.Duration()),
		render.WithSampleRate(c.Export.SampleRate),
		render.WithChannels(c.Export.Channels),
	}
}

// device returns the output of the live pipe.
func device(c *config.Config) pipe.Sink {
	switch c.Playback.Device {
	case config.DeviceOto:
		return otoaudio.NewSink()
	case config.DeviceDiscard:
		return player.NewDiscard()
	}
	return portaudio.NewSink(c.Audio.BufferSize)
}

// engine is the set of components wired by configuration.
type engine struct {
	log        log.Logger
	graph      *graph.Graph
	player     *player.Player
	dispatcher *dispatch.Dispatcher
	metrics    *http.Server
}

func newEngine(ctx context.Context, c *config.Config, reporter dispatch.Reporter) (*engine, error) {
	l := log.GetLogger()
	loader := source.New(source.WithLogger(l))
	g, err := graph.New(
		c.Audio.SampleRate,
		c.Audio.Channels,
		graph.WithDelay(c.Effects.DelaySeconds),
		graph.WithFilter(c.Effects.Filter()),
		graph.WithLogger(l),
	)
	if err != nil {
		return nil, err
	}
	if c.Source.Impulse != "" {
		go func(errc <-chan error) {
			if err := <-errc; err != nil {
				l.Errorf("convolver is silent: %v", err)
			}
		}(g.LoadImpulse(ctx, loader, c.Source.Impulse))
	}

	playerOptions := []player.Option{
		player.WithBufferSize(c.Audio.BufferSize),
		player.WithSource(c.Source.Default),
		player.WithLogger(l),
		player.WithMetric(metric.New("live")),
	}
	if c.Playback.Overlap {
		playerOptions = append(playerOptions, player.WithOverlap())
	}
	p := player.New(c.Audio.SampleRate, c.Audio.Channels, loader, g, device(c), playerOptions...)
	if err := p.Start(ctx); err != nil {
		g.Close()
		return nil, fmt.Errorf("start playback: %w", err)
	}

	dispatchOptions := []dispatch.Option{
		dispatch.WithLogger(l),
		dispatch.WithReporter(reporter),
		dispatch.WithGain(c.Effects.GainUp, c.Effects.GainDown),
		dispatch.WithSemitones(c.Effects.PitchSemitones),
		dispatch.WithExport(c.Export.Dir, c.Export.Filename),
		dispatch.WithRenderOptions(renderOptions(c)...),
	}
	if c.Effects.RelativeGain {
		dispatchOptions = append(dispatchOptions, dispatch.WithRelativeGain())
	}
	if c.Export.ApplyEffects {
		dispatchOptions = append(dispatchOptions, dispatch.WithEffects())
	}
	d := dispatch.New(p, g, render.New(loader), dispatchOptions...)
	if err := d.Start(ctx); err != nil {
		p.Close()
		g.Close()
		return nil, err
	}

	e := &engine{
		log:        l,
		graph:      g,
		player:     p,
		dispatcher: d,
	}
	if c.Metrics.Address != "" {
		e.serveMetrics(c.Metrics.Address)
	}
	return e, nil
}

func (e *engine) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metric.Handler())
	e.metrics = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := e.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Errorf("metrics server: %v", err)
		}
	}()
	e.log.Infof("metrics are served at %s/metrics", addr)
}

func (e *engine) close() error {
	e.dispatcher.Close()
	if e.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := e.metrics.Shutdown(ctx); err != nil {
			e.log.Warnf("metrics server shutdown: %v", err)
		}
	}
	err := e.player.Close()
	if gerr := e.graph.Close(); err == nil {
		err = gerr
	}
	return err
}
