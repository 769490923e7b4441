// Package dispatch applies commands to the engine. Commands are executed
// one at a time by a single goroutine, so any number of command sources
// can call Dispatch concurrently.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/dudk/remix"
	"github.com/dudk/remix/graph"
	"github.com/dudk/remix/intent"
	"github.com/dudk/remix/log"
	"github.com/dudk/remix/metric"
	"github.com/dudk/remix/player"
	"github.com/dudk/remix/render"
	"github.com/dudk/remix/wav"
)

const (
	// DefaultGainUp is the gain set by GainUp command.
	DefaultGainUp = 2.0
	// DefaultGainDown is the gain set by GainDown command.
	DefaultGainDown = 0.5
	// DefaultFilename is the name of downloaded file.
	DefaultFilename = "modified_audio.wav"
)

// UnknownAction is the status of command with unknown verb.
const UnknownAction = "Unknown action."

var statusLines = map[remix.Verb]string{
	remix.Play:         "Playing audio.",
	remix.Stop:         "Stopped audio.",
	remix.AddReverb:    "Reverb added.",
	remix.ReduceReverb: "Reverb removed.",
	remix.AddDelay:     "Delay added.",
	remix.RemoveDelay:  "Delay removed.",
	remix.PitchUp:      "Pitch shifted up.",
	remix.PitchDown:    "Pitch shifted down.",
	remix.GainUp:       "Gain increased.",
	remix.GainDown:     "Gain decreased.",
	remix.AddFilter:    "Filter added.",
	remix.RemoveFilter: "Filter removed.",
}

// ErrEmptyRef is returned when SetSource command has no reference.
var ErrEmptyRef = errors.New("empty source reference")

// Status is the outcome of single command.
type Status struct {
	Verb remix.Verb
	Text string
	// Err is *remix.EffectApplicationError if command failed.
	Err error
}

func (s Status) String() string {
	return s.Text
}

// Reporter receives every status line.
type Reporter func(Status)

type request struct {
	ctx    context.Context
	cmd    remix.Command
	result chan Status
}

// Dispatcher maps commands to the player, graph and renderer calls.
type Dispatcher struct {
	log      log.Logger
	player   *player.Player
	graph    *graph.Graph
	renderer *render.Renderer
	reporter Reporter

	relative     bool
	gainUp       float64
	gainDown     float64
	semitones    int
	dir          string
	filename     string
	applyEffects bool
	renderOpts   []render.Option

	requests chan request
	done     chan struct{}
	stopped  chan struct{}
	m        sync.Mutex
	started  bool
	closed   bool
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithReporter sets the callback for status lines.
func WithReporter(r Reporter) Option {
	return func(d *Dispatcher) {
		d.reporter = r
	}
}

// WithRelativeGain makes gain commands multiply the current gain instead
// of setting it.
func WithRelativeGain() Option {
	return func(d *Dispatcher) {
		d.relative = true
	}
}

// WithGain sets gain values of GainUp and GainDown commands.
func WithGain(up, down float64) Option {
	return func(d *Dispatcher) {
		d.gainUp, d.gainDown = up, down
	}
}

// WithSemitones sets pitch shift of PitchUp and PitchDown commands.
func WithSemitones(n int) Option {
	return func(d *Dispatcher) {
		d.semitones = n
	}
}

// WithExport sets the directory and file name of downloads.
func WithExport(dir, filename string) Option {
	return func(d *Dispatcher) {
		d.dir, d.filename = dir, filename
	}
}

// WithRenderOptions sets options of the download render.
func WithRenderOptions(opts ...render.Option) Option {
	return func(d *Dispatcher) {
		d.renderOpts = append(d.renderOpts, opts...)
	}
}

// WithEffects applies live effects to downloads.
func WithEffects() Option {
	return func(d *Dispatcher) {
		d.applyEffects = true
	}
}

// WithLogger sets logger of the dispatcher.
func WithLogger(l log.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// New returns new dispatcher. Start must be called before commands are
// dispatched.
func New(p *player.Player, g *graph.Graph, r *render.Renderer, options ...Option) *Dispatcher {
	d := &Dispatcher{
		log:       log.GetLogger(),
		player:    p,
		graph:     g,
		renderer:  r,
		gainUp:    DefaultGainUp,
		gainDown:  DefaultGainDown,
		semitones: player.DefaultSemitones,
		dir:       ".",
		filename:  DefaultFilename,
		requests:  make(chan request),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Start runs the command queue. Queue is stopped when context is done or
// Close is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.m.Lock()
	defer d.m.Unlock()
	switch {
	case d.closed:
		return remix.ErrEngineNotReady
	case d.started:
		return errors.New("dispatcher is already started")
	}
	d.started = true
	go d.run(ctx)
	return nil
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.stopped)
	for {
		select {
		case r := <-d.requests:
			r.result <- d.apply(r.ctx, r.cmd)
		case <-d.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the command queue. Commands dispatched after Close fail with
// remix.ErrEngineNotReady.
func (d *Dispatcher) Close() {
	d.m.Lock()
	if d.closed {
		d.m.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	if !d.started {
		close(d.stopped)
	}
	d.m.Unlock()
	<-d.stopped
}

// Dispatch applies the command and returns its status. It blocks until
// the command is executed. ErrEngineNotReady is returned if dispatcher
// is not started or already closed.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd remix.Command) Status {
	d.m.Lock()
	started := d.started
	d.m.Unlock()
	if !started {
		return d.failed(cmd, remix.ErrEngineNotReady)
	}
	result := make(chan Status, 1)
	select {
	case d.requests <- request{ctx: ctx, cmd: cmd, result: result}:
		return <-result
	case <-d.stopped:
		return d.failed(cmd, remix.ErrEngineNotReady)
	case <-ctx.Done():
		return d.failed(cmd, ctx.Err())
	}
}

// DispatchText classifies the text and dispatches mapped command. Text of
// unknown intent results in unknown action status.
func (d *Dispatcher) DispatchText(ctx context.Context, text string) Status {
	cmd, ok := intent.Parse(text).Command()
	if !ok {
		d.log.Debugf("unknown intent: %q", text)
		return d.report(Status{Text: UnknownAction})
	}
	return d.Dispatch(ctx, cmd)
}

// apply executes the command, panics are converted to errors.
func (d *Dispatcher) apply(ctx context.Context, cmd remix.Command) (s Status) {
	defer func() {
		if r := recover(); r != nil {
			s = d.failed(cmd, fmt.Errorf("panic: %v", r))
		}
	}()
	text, err := d.handle(ctx, cmd)
	if err != nil {
		return d.failed(cmd, err)
	}
	d.log.Debugf("command %v applied", cmd)
	metric.Command(cmd.Verb, nil)
	return d.report(Status{Verb: cmd.Verb, Text: text})
}

func (d *Dispatcher) failed(cmd remix.Command, err error) Status {
	err = &remix.EffectApplicationError{Verb: cmd.Verb, Err: err}
	d.log.Errorf("command %v failed: %v", cmd, err)
	metric.Command(cmd.Verb, err)
	return d.report(Status{Verb: cmd.Verb, Text: fmt.Sprintf("Error: %v", err), Err: err})
}

func (d *Dispatcher) report(s Status) Status {
	if d.reporter != nil {
		d.reporter(s)
	}
	return s
}

// handle maps the command to exactly one engine call.
func (d *Dispatcher) handle(ctx context.Context, cmd remix.Command) (string, error) {
	var err error
	switch cmd.Verb {
	case remix.Play:
		err = d.player.Play(ctx)
	case remix.Stop:
		d.player.Stop()
	case remix.SetSource:
		if cmd.Ref == "" {
			return "", ErrEmptyRef
		}
		d.player.SetSource(cmd.Ref)
		return fmt.Sprintf("Loaded source: %s.", cmd.Ref), nil
	case remix.AddReverb:
		err = d.graph.SetInsert(remix.ConvolverInsert)
	case remix.ReduceReverb:
		err = d.graph.SetInsert(remix.None)
	case remix.AddDelay:
		if cmd.Param != nil {
			if err := d.graph.SetDelay(*cmd.Param); err != nil {
				return "", err
			}
		}
		err = d.graph.SetInsert(remix.DelayInsert)
	case remix.RemoveDelay:
		err = d.graph.SetInsert(remix.None)
	case remix.PitchUp:
		err = d.player.PitchShift(ctx, d.shift(cmd))
	case remix.PitchDown:
		err = d.player.PitchShift(ctx, -d.shift(cmd))
	case remix.GainUp:
		err = d.setGain(cmd, d.gainUp)
	case remix.GainDown:
		err = d.setGain(cmd, d.gainDown)
	case remix.AddFilter:
		err = d.addFilter(cmd)
	case remix.RemoveFilter:
		err = d.graph.SetInsert(remix.None)
	case remix.Download:
		path, err := d.download(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Download saved to %s.", path), nil
	default:
		return UnknownAction, nil
	}
	if err != nil {
		return "", err
	}
	return statusLines[cmd.Verb], nil
}

func (d *Dispatcher) shift(cmd remix.Command) int {
	return int(math.Abs(math.Round(cmd.ParamOr(float64(d.semitones)))))
}

func (d *Dispatcher) setGain(cmd remix.Command, v float64) error {
	if cmd.Param != nil {
		return d.graph.SetGain(*cmd.Param)
	}
	if d.relative {
		current, err := d.graph.Gain()
		if err != nil {
			return err
		}
		v = current * v
	}
	return d.graph.SetGain(v)
}

// addFilter connects the filter. Param changes the cutoff frequency.
func (d *Dispatcher) addFilter(cmd remix.Command) error {
	if cmd.Param != nil {
		s, err := d.graph.Snapshot()
		if err != nil {
			return err
		}
		s.Filter.Frequency = *cmd.Param
		if err := d.graph.SetFilter(s.Filter); err != nil {
			return err
		}
	}
	return d.graph.SetInsert(remix.FilterInsert)
}

// download renders the source and writes it into the export directory.
func (d *Dispatcher) download(ctx context.Context) (string, error) {
	ref := d.player.Source()
	if ref == "" {
		return "", player.ErrNoSource
	}
	opts := d.renderOpts
	if d.applyEffects {
		s, err := d.graph.Snapshot()
		if err != nil {
			return "", err
		}
		opts = append(opts[:len(opts):len(opts)], render.WithGraphState(s))
	}
	sb, err := d.renderer.Render(ctx, ref, opts...)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(d.dir, d.filename)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := wav.Write(f, sb); err != nil {
		f.Close()
		return "", fmt.Errorf("write %v: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	d.log.Infof("%v rendered to %v", ref, path)
	return path, nil
}
