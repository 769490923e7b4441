// Package player auditions the source through the effect graph. Live pipe
// of the player is started once and runs until player is closed:
//
//	mixer.Mixer -> graph.Graph -> device
//
// Every Play or PitchShift call decodes the source again and adds new
// session into the mixer.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dudk/remix"
	"github.com/dudk/remix/graph"
	"github.com/dudk/remix/log"
	"github.com/dudk/remix/metric"
	"github.com/dudk/remix/mixer"
	"github.com/dudk/remix/pipe"
)

// State of the player.
type State int

// Player states.
const (
	Idle State = iota
	Loading
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	}
	return "unknown"
}

const (
	// DefaultBufferSize is the size of blocks in the live pipe.
	DefaultBufferSize = 512
	// DefaultSemitones is pitch shift of PitchUp and PitchDown commands.
	DefaultSemitones = 2
)

// ErrNoSource is returned when source is not set.
var ErrNoSource = errors.New("source is not set")

// Loader loads the source.
type Loader interface {
	Load(context.Context, string) (remix.SampleBuffer, error)
}

// Session is a single playback of the source.
type Session struct {
	remix.UID
	Buffer    remix.SampleBuffer
	Rate      float64
	StartedAt time.Time

	once sync.Once
	done chan struct{}
}

func newSession(sb remix.SampleBuffer, rate float64) *Session {
	return &Session{
		UID:       remix.NewUID(),
		Buffer:    sb,
		Rate:      rate,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Done returns channel that's closed when session is over.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) end() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Player is the playback controller.
type Player struct {
	log         log.Logger
	loader      Loader
	graph       *graph.Graph
	device      pipe.Sink
	metric      *metric.Metric
	sampleRate  int
	numChannels int
	bufferSize  int
	overlap     bool

	m       sync.Mutex
	state   State
	ref     string
	session *Session
	mixer   *mixer.Mixer
	runner  *pipe.Runner
}

// Option configures the player.
type Option func(*Player)

// WithOverlap keeps previous session sounding when new one is started.
// Previous session cannot be stopped after that.
func WithOverlap() Option {
	return func(p *Player) {
		p.overlap = true
	}
}

// WithBufferSize sets buffer size of the live pipe.
func WithBufferSize(n int) Option {
	return func(p *Player) {
		p.bufferSize = n
	}
}

// WithSource sets initial source reference.
func WithSource(ref string) Option {
	return func(p *Player) {
		p.ref = ref
	}
}

// WithLogger sets logger of the player.
func WithLogger(l log.Logger) Option {
	return func(p *Player) {
		p.log = l
	}
}

// WithMetric enables metrics of the live pipe.
func WithMetric(m *metric.Metric) Option {
	return func(p *Player) {
		p.metric = m
	}
}

// New returns new player. Signal of the live pipe is defined by the
// sample rate and number of channels, graph must be created for the same
// signal.
func New(sampleRate, numChannels int, l Loader, g *graph.Graph, device pipe.Sink, options ...Option) *Player {
	p := &Player{
		log:         log.GetLogger(),
		loader:      l,
		graph:       g,
		device:      device,
		sampleRate:  sampleRate,
		numChannels: numChannels,
		bufferSize:  DefaultBufferSize,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Start runs the live pipe.
func (p *Player) Start(ctx context.Context) error {
	p.m.Lock()
	defer p.m.Unlock()
	if p.runner != nil {
		return errors.New("player is already started")
	}
	m := mixer.New(p.sampleRate, p.numChannels)
	live, err := pipe.New(
		p.bufferSize,
		pipe.WithName("live"),
		pipe.WithMetric(p.metric),
		pipe.WithPump(m),
		pipe.WithProcessors(p.graph),
		pipe.WithSinks(p.device),
	)
	if err != nil {
		return err
	}
	r, err := live.Run(ctx)
	if err != nil {
		return err
	}
	p.mixer, p.runner = m, r
	go p.watch(r)
	return nil
}

// watch ends all sessions when live pipe is done.
func (p *Player) watch(r *pipe.Runner) {
	if err := r.Wait(); err != nil {
		p.log.Errorf("live pipe failed: %v", err)
	}
	p.m.Lock()
	defer p.m.Unlock()
	if p.runner != r {
		return
	}
	p.runner, p.mixer = nil, nil
	p.endSession()
}

// Close stops the live pipe.
func (p *Player) Close() error {
	p.m.Lock()
	r := p.runner
	p.runner, p.mixer = nil, nil
	p.endSession()
	p.m.Unlock()
	if r == nil {
		return nil
	}
	return r.Stop()
}

// SetSource rebinds the reference for subsequent plays. Running session
// is not affected.
func (p *Player) SetSource(ref string) {
	p.m.Lock()
	defer p.m.Unlock()
	p.ref = ref
}

// Source returns current source reference.
func (p *Player) Source() string {
	p.m.Lock()
	defer p.m.Unlock()
	return p.ref
}

// State returns current state of the player.
func (p *Player) State() State {
	p.m.Lock()
	defer p.m.Unlock()
	return p.state
}

// Session returns tracked session. Nil is returned if player is idle.
func (p *Player) Session() *Session {
	p.m.Lock()
	defer p.m.Unlock()
	return p.session
}

// Play loads the source and starts new session at original rate.
func (p *Player) Play(ctx context.Context) error {
	return p.play(ctx, 1)
}

// PitchShift loads the source and starts new session with rate changed by
// provided number of semitones. Both pitch and duration are changed.
// Shift is not cumulative, it's always applied to the source.
func (p *Player) PitchShift(ctx context.Context, semitones int) error {
	return p.play(ctx, math.Pow(2, float64(semitones)/12))
}

func (p *Player) play(ctx context.Context, rate float64) error {
	p.m.Lock()
	ref := p.ref
	if ref == "" {
		p.m.Unlock()
		return ErrNoSource
	}
	if p.runner == nil {
		p.m.Unlock()
		return remix.ErrEngineNotReady
	}
	p.state = Loading
	p.m.Unlock()

	b, err := p.load(ctx, ref, rate)

	p.m.Lock()
	defer p.m.Unlock()
	if err == nil && p.mixer == nil {
		err = remix.ErrEngineNotReady
	}
	if err != nil {
		p.state = p.current()
		return err
	}
	if !p.overlap {
		p.stop()
	}
	s := newSession(b, rate)
	if err := p.mixer.Add(s.ID(), b.Buffer(), func() { p.finished(s) }); err != nil {
		p.state = p.current()
		return err
	}
	p.session = s
	p.state = Playing
	p.log.Debugf("session %v started: %v at rate %.4f", s.ID(), ref, rate)
	return nil
}

// load decodes the source and converts it to the live signal.
func (p *Player) load(ctx context.Context, ref string, rate float64) (remix.SampleBuffer, error) {
	sb, err := p.loader.Load(ctx, ref)
	if err != nil {
		return remix.SampleBuffer{}, err
	}
	sb, err = remix.Resample(sb, rate, p.sampleRate)
	if err != nil {
		return remix.SampleBuffer{}, fmt.Errorf("resample %v: %w", ref, err)
	}
	return remix.MapChannels(sb, p.numChannels), ctx.Err()
}

// Stop halts tracked session. Stop of idle player is no-op.
func (p *Player) Stop() {
	p.m.Lock()
	defer p.m.Unlock()
	p.stop()
	p.state = p.current()
}

// stop removes tracked session from the mix, must be called under lock.
func (p *Player) stop() {
	if p.session == nil {
		return
	}
	if p.mixer != nil {
		if err := p.mixer.Remove(p.session.ID()); err != nil {
			p.log.Debugf("stop session %v: %v", p.session.ID(), err)
		}
	}
	p.endSession()
}

// endSession ends tracked session, must be called under lock.
func (p *Player) endSession() {
	if p.session != nil {
		p.session.end()
		p.log.Debugf("session %v stopped", p.session.ID())
	}
	p.session = nil
	if p.state != Loading {
		p.state = Idle
	}
}

// finished is called by mixer when session's buffer is exhausted. The
// last blocks are pumped but may still be in flight to the device.
func (p *Player) finished(s *Session) {
	s.end()
	p.m.Lock()
	defer p.m.Unlock()
	if p.session != s {
		return
	}
	p.session = nil
	if p.state == Playing {
		p.state = Idle
	}
	p.log.Debugf("session %v finished", s.ID())
}

// current returns state defined by tracked session.
func (p *Player) current() State {
	if p.session != nil {
		return Playing
	}
	return Idle
}
