// Package pipe runs signal processing sequences. Every component of the pipe
// is executed in its own goroutine and buffers are passed between them over
// channels:
//
//	 1      pump
//	 0..n   processors
//	 1..n   sinks
//
// Pump defines sample rate and number of channels for the rest of the pipe.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dudk/remix"
	"github.com/dudk/remix/log"
	"github.com/dudk/remix/metric"
)

type (
	// Pump is a source of samples. Pump returns closure, sample rate and
	// number of channels of the signal. Closure must return io.EOF when
	// signal is over.
	Pump interface {
		ID() string
		Pump(sourceID string, bufferSize int) (PumpFunc, int, int, error)
	}

	// Processor defines interface for pipe processors. Processor can modify
	// input buffer and return it.
	Processor interface {
		ID() string
		Process(sourceID string, sampleRate, numChannels int) (ProcessFunc, error)
	}

	// Sink is an interface for final stage in audio pipeline. Buffers are
	// shared between sinks, so they must not be modified.
	Sink interface {
		ID() string
		Sink(sourceID string, sampleRate, numChannels int) (SinkFunc, error)
	}

	// PumpFunc returns new buffer of samples.
	PumpFunc = func() (remix.Buffer, error)

	// ProcessFunc processes buffer of samples.
	ProcessFunc = func(remix.Buffer) (remix.Buffer, error)

	// SinkFunc consumes buffer of samples.
	SinkFunc = func(remix.Buffer) error
)

// Pipe is a pipeline with fully defined sound processing sequence.
type Pipe struct {
	remix.UID
	name       string
	bufferSize int

	pump       Pump
	processors []Processor
	sinks      []Sink

	metric *metric.Metric
	log    log.Logger
}

// Option provides a way to set parameters to pipe.
type Option func(p *Pipe) error

var (
	// ErrComponentNoID is used to cause a panic when new component without ID is added to pipe.
	ErrComponentNoID = errors.New("component have no ID value")

	// ErrNoPump is returned when pipe is created without pump.
	ErrNoPump = errors.New("pump is not defined")

	// ErrNoSinks is returned when pipe is created without sinks.
	ErrNoSinks = errors.New("sinks are not defined")

	// ErrInvalidBufferSize is returned when buffer size is not positive.
	ErrInvalidBufferSize = errors.New("buffer size must be positive")
)

// New creates a new pipe and applies provided options.
func New(bufferSize int, options ...Option) (*Pipe, error) {
	if bufferSize <= 0 {
		return nil, ErrInvalidBufferSize
	}
	p := &Pipe{
		UID:        remix.NewUID(),
		bufferSize: bufferSize,
		log:        log.GetLogger(),
		processors: make([]Processor, 0),
		sinks:      make([]Sink, 0),
	}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}
	if p.pump == nil {
		return nil, ErrNoPump
	}
	if len(p.sinks) == 0 {
		return nil, ErrNoSinks
	}
	return p, nil
}

// WithName sets name to Pipe.
func WithName(n string) Option {
	return func(p *Pipe) error {
		p.name = n
		return nil
	}
}

// WithMetric adds meterics for this pipe and all components.
func WithMetric(m *metric.Metric) Option {
	return func(p *Pipe) error {
		p.metric = m
		return nil
	}
}

// WithLogger sets logger to Pipe.
func WithLogger(l log.Logger) Option {
	return func(p *Pipe) error {
		p.log = l
		return nil
	}
}

// WithPump sets pump to Pipe.
func WithPump(pump Pump) Option {
	if pump.ID() == "" {
		panic(ErrComponentNoID)
	}
	return func(p *Pipe) error {
		p.pump = pump
		return nil
	}
}

// WithProcessors sets processors to Pipe.
func WithProcessors(processors ...Processor) Option {
	for i := range processors {
		if processors[i].ID() == "" {
			panic(ErrComponentNoID)
		}
	}
	return func(p *Pipe) error {
		p.processors = append(p.processors, processors...)
		return nil
	}
}

// WithSinks sets sinks to Pipe.
func WithSinks(sinks ...Sink) Option {
	for i := range sinks {
		if sinks[i].ID() == "" {
			panic(ErrComponentNoID)
		}
	}
	return func(p *Pipe) error {
		p.sinks = append(p.sinks, sinks...)
		return nil
	}
}

// Runner is a handle of running pipe.
type Runner struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Run starts the execution of pipe. Closures of all components are
// allocated before any goroutine is started, so allocation errors are
// returned right away. Pipe can be run multiple times, but not
// concurrently.
func (p *Pipe) Run(ctx context.Context) (*Runner, error) {
	pump, err := newPumpRunner(p.ID(), p.bufferSize, p.pump)
	if err != nil {
		return nil, fmt.Errorf("pump %v: %w", p.pump.ID(), err)
	}
	processors := make([]*processRunner, 0, len(p.processors))
	for _, proc := range p.processors {
		r, err := newProcessRunner(p.ID(), pump.sampleRate, pump.numChannels, proc)
		if err != nil {
			return nil, fmt.Errorf("processor %v: %w", proc.ID(), err)
		}
		processors = append(processors, r)
	}
	sinks := make([]*sinkRunner, 0, len(p.sinks))
	for _, sink := range p.sinks {
		r, err := newSinkRunner(p.ID(), pump.sampleRate, pump.numChannels, sink)
		if err != nil {
			return nil, fmt.Errorf("sink %v: %w", sink.ID(), err)
		}
		sinks = append(sinks, r)
	}

	ctx, cancel := context.WithCancel(ctx)
	m := errorMerger{errorChan: make(chan error, 1)}

	// start pump
	pump.meter = p.metric.Meter(pump.ID(), "pump", pump.sampleRate)
	out, errc := pump.run(ctx, p.ID())
	m.add(errc)

	// start chained processing
	for _, proc := range processors {
		proc.meter = p.metric.Meter(proc.ID(), "processor", pump.sampleRate)
		out, errc = proc.run(ctx, p.ID(), out)
		m.add(errc)
	}

	for _, sink := range sinks {
		sink.meter = p.metric.Meter(sink.ID(), "sink", pump.sampleRate)
	}
	m.add(broadcastToSinks(ctx, p.ID(), out, sinks)...)
	go m.wait()
	p.log.Debugf("%v started", p)

	r := Runner{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		defer cancel()
		if err, ok := <-m.errorChan; ok {
			r.err = err
			cancel()
			m.drain()
			p.log.Debugf("%v failed: %v", p, err)
			return
		}
		p.log.Debugf("%v done", p)
	}()
	return &r, nil
}

// Wait blocks until pipe is done and returns the first error occurred.
// It's safe to call Wait multiple times.
func (r *Runner) Wait() error {
	<-r.done
	return r.err
}

// Stop cancels pipe execution and waits for all components to be done.
func (r *Runner) Stop() error {
	r.cancel()
	return r.Wait()
}

// Done returns a channel that's closed when pipe is done.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// broadcastToSinks passes messages to all sinks.
func broadcastToSinks(ctx context.Context, sourceID string, in <-chan remix.Buffer, sinks []*sinkRunner) []<-chan error {
	//init errcList for sinks error channels
	errcList := make([]<-chan error, 0, len(sinks))
	//list of channels for broadcast
	broadcasts := make([]chan remix.Buffer, len(sinks))
	for i := range broadcasts {
		broadcasts[i] = make(chan remix.Buffer)
	}

	//start broadcast
	for i, s := range sinks {
		errc := s.run(ctx, sourceID, broadcasts[i])
		errcList = append(errcList, errc)
	}

	go func() {
		//close broadcasts on return
		defer func() {
			for i := range broadcasts {
				close(broadcasts[i])
			}
		}()
		for b := range in {
			for i := range broadcasts {
				select {
				case broadcasts[i] <- b:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return errcList
}

// errorMerger allows to listen to multiple error channels.
type errorMerger struct {
	wg        sync.WaitGroup
	errorChan chan error
}

// add error channels from all components into one.
func (m *errorMerger) add(errcList ...<-chan error) {
	m.wg.Add(len(errcList))
	for _, ec := range errcList {
		go m.listen(ec)
	}
}

// listen blocks until channel is closed. Only the first error of all
// channels is kept.
func (m *errorMerger) listen(ec <-chan error) {
	for err := range ec {
		select {
		case m.errorChan <- err:
		default:
		}
	}
	m.wg.Done()
}

// wait waits for all underlying error channels to be closed and then
// closes the output error channel.
func (m *errorMerger) wait() {
	m.wg.Wait()
	close(m.errorChan)
}

// drain blocks until all components are done.
func (m *errorMerger) drain() {
	for range m.errorChan {
	}
}

// Convert pipe to string. If name is included if has value.
func (p *Pipe) String() string {
	if p.name == "" {
		return p.ID()
	}
	return fmt.Sprintf("%v %v", p.name, p.ID())
}
