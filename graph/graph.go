// Package graph provides the effect graph of the engine. Signal is routed
// through the gain stage and at most one insert effect:
//
//	Source -> Gain -> [Delay | Filter | Convolver] -> Output
//
// Graph is a pipe processor. Mutations and processing share the same lock,
// so a routing change is applied between two blocks.
package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/effects"
	"github.com/cwbudde/algo-dsp/dsp/effects/reverb"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"github.com/dudk/remix"
	"github.com/dudk/remix/log"
)

const (
	// DefaultDelay is the delay time in seconds.
	DefaultDelay = 0.3
	// DefaultFrequency is the cutoff of the filter in Hz.
	DefaultFrequency = 1000
	// DefaultQ is the quality factor of the filter.
	DefaultQ = 0.7071

	// convolution latency is 2^minBlockOrder samples.
	minBlockOrder = 7

	// normalization constants of Web Audio convolver.
	gainCalibration           = 0.00125
	gainCalibrationSampleRate = 44100
	minPower                  = 0.000125
)

// FilterType is the response of the filter node.
type FilterType string

// Supported filter types.
const (
	Highpass FilterType = "highpass"
	Lowpass  FilterType = "lowpass"
	Bandpass FilterType = "bandpass"
	Notch    FilterType = "notch"
)

// ParseFilterType returns filter type for its name.
func ParseFilterType(s string) (FilterType, error) {
	switch t := FilterType(strings.ToLower(s)); t {
	case Highpass, Lowpass, Bandpass, Notch:
		return t, nil
	}
	return "", fmt.Errorf("unknown filter type: %q", s)
}

// Filter defines the filter node.
type Filter struct {
	Type      FilterType
	Frequency float64
	Q         float64
}

func (f Filter) coefficients(sampleRate float64) (biquad.Coefficients, error) {
	if f.Frequency <= 0 || f.Frequency >= sampleRate/2 || f.Q <= 0 {
		return biquad.Coefficients{}, fmt.Errorf("invalid filter: %v Hz, Q %v at %v Hz", f.Frequency, f.Q, sampleRate)
	}
	switch f.Type {
	case Highpass:
		return design.Highpass(f.Frequency, f.Q, sampleRate), nil
	case Lowpass:
		return design.Lowpass(f.Frequency, f.Q, sampleRate), nil
	case Bandpass:
		return design.Bandpass(f.Frequency, f.Q, sampleRate), nil
	case Notch:
		return design.Notch(f.Frequency, f.Q, sampleRate), nil
	}
	return biquad.Coefficients{}, fmt.Errorf("unknown filter type: %q", f.Type)
}

// State is a snapshot of graph routing and node parameters. Impulse is
// the response installed into convolver, it's empty if convolver is not
// configured.
type State struct {
	Gain    float64
	Insert  remix.Insert
	Delay   float64
	Filter  Filter
	Impulse remix.SampleBuffer
}

// Path returns the routing path of the state.
func (s State) Path() []remix.Kind {
	path := []remix.Kind{remix.Gain}
	if k, ok := s.Insert.Kind(); ok {
		path = append(path, k)
	}
	return path
}

// Graph is the effect graph. Zero value is not initialized and all
// operations return remix.ErrEngineNotReady.
type Graph struct {
	remix.UID
	log log.Logger

	m           sync.Mutex
	ready       bool
	sampleRate  int
	numChannels int

	gain      float64
	insert    remix.Insert
	delayTime float64
	delay     []*effects.Delay
	filter    Filter
	sections  []*biquad.Section
	impulse   remix.SampleBuffer
	convolver []*reverb.ConvolutionReverb
}

// Option configures the graph.
type Option func(*Graph) error

// WithDelay sets delay time in seconds.
func WithDelay(seconds float64) Option {
	return func(g *Graph) error {
		return g.setDelay(seconds)
	}
}

// WithFilter sets filter node parameters.
func WithFilter(f Filter) Option {
	return func(g *Graph) error {
		return g.setFilter(f)
	}
}

// WithLogger sets logger of the graph.
func WithLogger(l log.Logger) Option {
	return func(g *Graph) error {
		g.log = l
		return nil
	}
}

// New creates all nodes of the graph. Initial path is Gain -> Output with
// unity gain.
func New(sampleRate, numChannels int, options ...Option) (*Graph, error) {
	if sampleRate <= 0 || numChannels <= 0 {
		return nil, fmt.Errorf("invalid graph signal: %d Hz with %d channels", sampleRate, numChannels)
	}
	g := Graph{
		UID:         remix.NewUID(),
		log:         log.GetLogger(),
		sampleRate:  sampleRate,
		numChannels: numChannels,
		gain:        1,
		delay:       make([]*effects.Delay, numChannels),
		sections:    make([]*biquad.Section, numChannels),
	}
	for i := range g.delay {
		d, err := effects.NewDelay(float64(sampleRate))
		if err != nil {
			return nil, err
		}
		// pure delay line
		if err := d.SetFeedback(0); err != nil {
			return nil, err
		}
		if err := d.SetMix(1); err != nil {
			return nil, err
		}
		g.delay[i] = d
	}
	if err := g.setDelay(DefaultDelay); err != nil {
		return nil, err
	}
	if err := g.setFilter(Filter{Type: Highpass, Frequency: DefaultFrequency, Q: DefaultQ}); err != nil {
		return nil, err
	}
	for _, option := range options {
		if err := option(&g); err != nil {
			return nil, err
		}
	}
	g.ready = true
	return &g, nil
}

// FromState creates new graph and restores provided state.
func FromState(ctx context.Context, sampleRate, numChannels int, s State) (*Graph, error) {
	g, err := New(sampleRate, numChannels)
	if err != nil {
		return nil, err
	}
	if err := g.Restore(ctx, s); err != nil {
		return nil, err
	}
	return g, nil
}

// lock acquires the graph lock if graph is initialized.
func (g *Graph) lock() error {
	if g == nil {
		return remix.ErrEngineNotReady
	}
	g.m.Lock()
	if !g.ready {
		g.m.Unlock()
		return remix.ErrEngineNotReady
	}
	return nil
}

// SetInsert places the effect between gain and output. Previous insert
// is disconnected. State of the new insert is cleared.
func (g *Graph) SetInsert(i remix.Insert) error {
	if i < remix.None || i > remix.ConvolverInsert {
		return fmt.Errorf("unknown insert: %d", i)
	}
	if err := g.lock(); err != nil {
		return err
	}
	defer g.m.Unlock()
	if g.insert == i {
		return nil
	}
	g.insert = i
	g.resetInsert()
	g.log.Debugf("graph %v: path %v", g.ID(), g.path())
	return nil
}

// SetGain sets absolute gain value.
func (g *Graph) SetGain(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid gain: %v", v)
	}
	if err := g.lock(); err != nil {
		return err
	}
	defer g.m.Unlock()
	g.gain = v
	return nil
}

// SetDelay sets time of delay node in seconds.
func (g *Graph) SetDelay(seconds float64) error {
	if err := g.lock(); err != nil {
		return err
	}
	defer g.m.Unlock()
	return g.setDelay(seconds)
}

func (g *Graph) setDelay(seconds float64) error {
	for i := range g.delay {
		if err := g.delay[i].SetTime(seconds); err != nil {
			return err
		}
	}
	g.delayTime = seconds
	return nil
}

// SetFilter sets filter node parameters.
func (g *Graph) SetFilter(f Filter) error {
	if err := g.lock(); err != nil {
		return err
	}
	defer g.m.Unlock()
	return g.setFilter(f)
}

func (g *Graph) setFilter(f Filter) error {
	c, err := f.coefficients(float64(g.sampleRate))
	if err != nil {
		return err
	}
	for i := range g.sections {
		g.sections[i] = biquad.NewSection(c)
	}
	g.filter = f
	return nil
}

// ConfigureConvolver installs impulse response into convolver. Response
// is resampled to the graph rate and normalized.
func (g *Graph) ConfigureConvolver(ctx context.Context, ir remix.SampleBuffer) error {
	if err := g.lock(); err != nil {
		return err
	}
	sampleRate, numChannels := g.sampleRate, g.numChannels
	g.m.Unlock()

	if ir.Frames() == 0 || ir.NumChannels() == 0 {
		return errors.New("empty impulse response")
	}
	if err := ir.Validate(); err != nil {
		return err
	}
	resampled, err := remix.Resample(ir, 1, sampleRate)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	scale := normalization(resampled, sampleRate)
	convolver := make([]*reverb.ConvolutionReverb, numChannels)
	for c := range convolver {
		// extra channels use the last channel of response.
		src := resampled.Samples[min(c, resampled.NumChannels()-1)]
		kernel := make([]float64, len(src))
		for i, v := range src {
			kernel[i] = float64(v)
		}
		r, err := reverb.NewConvolutionReverb(kernel, minBlockOrder)
		if err != nil {
			return err
		}
		r.SetWetDry(scale, 0)
		convolver[c] = r
	}

	if err := g.lock(); err != nil {
		return err
	}
	defer g.m.Unlock()
	g.convolver = convolver
	g.impulse = ir
	g.log.Debugf("graph %v: convolver configured with %v impulse", g.ID(), ir.Duration())
	return nil
}

// normalization returns scale of the impulse response.
func normalization(ir remix.SampleBuffer, sampleRate int) float64 {
	var power float64
	for c := range ir.Samples {
		for _, v := range ir.Samples[c] {
			power += float64(v) * float64(v)
		}
	}
	power = math.Sqrt(power / float64(ir.NumChannels()*ir.Frames()))
	if math.IsNaN(power) || math.IsInf(power, 0) || power < minPower {
		power = minPower
	}
	return 1 / power * gainCalibration * gainCalibrationSampleRate / float64(sampleRate)
}

// Loader loads the impulse response.
type Loader interface {
	Load(context.Context, string) (remix.SampleBuffer, error)
}

// LoadImpulse loads impulse response in the background and installs it
// into convolver. Returned channel receives the result and is closed.
func (g *Graph) LoadImpulse(ctx context.Context, l Loader, ref string) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		ir, err := l.Load(ctx, ref)
		if err == nil {
			err = g.ConfigureConvolver(ctx, ir)
		}
		if err != nil {
			errc <- fmt.Errorf("impulse %v: %w", ref, err)
		}
	}()
	return errc
}

// Path returns the current routing path.
func (g *Graph) Path() ([]remix.Kind, error) {
	if err := g.lock(); err != nil {
		return nil, err
	}
	defer g.m.Unlock()
	return g.path(), nil
}

func (g *Graph) path() []remix.Kind {
	return State{Insert: g.insert}.Path()
}

// Insert returns current insert.
func (g *Graph) Insert() (remix.Insert, error) {
	if err := g.lock(); err != nil {
		return remix.None, err
	}
	defer g.m.Unlock()
	return g.insert, nil
}

// Gain returns current gain value.
func (g *Graph) Gain() (float64, error) {
	if err := g.lock(); err != nil {
		return 0, err
	}
	defer g.m.Unlock()
	return g.gain, nil
}

// Snapshot returns current state of the graph.
func (g *Graph) Snapshot() (State, error) {
	if err := g.lock(); err != nil {
		return State{}, err
	}
	defer g.m.Unlock()
	return State{
		Gain:    g.gain,
		Insert:  g.insert,
		Delay:   g.delayTime,
		Filter:  g.filter,
		Impulse: g.impulse,
	}, nil
}

// Restore applies the state to the graph.
func (g *Graph) Restore(ctx context.Context, s State) error {
	if s.Impulse.Frames() > 0 {
		if err := g.ConfigureConvolver(ctx, s.Impulse); err != nil {
			return err
		}
	}
	if err := g.SetDelay(s.Delay); err != nil {
		return err
	}
	if err := g.SetFilter(s.Filter); err != nil {
		return err
	}
	if err := g.SetGain(s.Gain); err != nil {
		return err
	}
	return g.SetInsert(s.Insert)
}

// Close releases the graph. All consequent calls return
// remix.ErrEngineNotReady.
func (g *Graph) Close() error {
	if err := g.lock(); err != nil {
		return err
	}
	defer g.m.Unlock()
	g.ready = false
	g.convolver = nil
	return nil
}

// Reset clears state of all nodes. It's called when pipe is started.
func (g *Graph) Reset(string) error {
	if err := g.lock(); err != nil {
		return err
	}
	defer g.m.Unlock()
	for i := range g.delay {
		g.delay[i].Reset()
		g.sections[i].Reset()
	}
	for i := range g.convolver {
		g.convolver[i].Reset()
	}
	return nil
}

// resetInsert clears state of the current insert, must be called under lock.
func (g *Graph) resetInsert() {
	switch g.insert {
	case remix.DelayInsert:
		for i := range g.delay {
			g.delay[i].Reset()
		}
	case remix.FilterInsert:
		for i := range g.sections {
			g.sections[i].Reset()
		}
	case remix.ConvolverInsert:
		for i := range g.convolver {
			g.convolver[i].Reset()
		}
	}
}

// Process returns closure that routes buffers through the graph. Signal
// must match graph sample rate and number of channels.
func (g *Graph) Process(sourceID string, sampleRate, numChannels int) (func(remix.Buffer) (remix.Buffer, error), error) {
	if err := g.lock(); err != nil {
		return nil, err
	}
	defer g.m.Unlock()
	if sampleRate != g.sampleRate || numChannels != g.numChannels {
		return nil, fmt.Errorf("graph expects %d Hz with %d channels, got %d Hz with %d channels", g.sampleRate, g.numChannels, sampleRate, numChannels)
	}
	return g.process, nil
}

// process applies the graph to buffer in place.
func (g *Graph) process(b remix.Buffer) (remix.Buffer, error) {
	if err := g.lock(); err != nil {
		return nil, err
	}
	defer g.m.Unlock()
	if b.NumChannels() != g.numChannels {
		return nil, fmt.Errorf("buffer has %d channels, graph expects %d", b.NumChannels(), g.numChannels)
	}
	for c := range b {
		if g.gain != 1 {
			for i := range b[c] {
				b[c][i] *= g.gain
			}
		}
		switch g.insert {
		case remix.DelayInsert:
			g.delay[c].ProcessInPlace(b[c])
		case remix.FilterInsert:
			g.sections[c].ProcessBlock(b[c])
		case remix.ConvolverInsert:
			if g.convolver == nil {
				// silence until impulse response is configured.
				for i := range b[c] {
					b[c][i] = 0
				}
				continue
			}
			if err := g.convolver[c].ProcessInPlace(b[c]); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}
