package pipe

import (
	"context"
	"fmt"
	"io"

	"github.com/dudk/remix"
	"github.com/dudk/remix/metric"
)

// pumpRunner is pump's runner.
type pumpRunner struct {
	Pump
	meter       *metric.Meter
	fn          PumpFunc
	sampleRate  int
	numChannels int
	hooks
}

// processRunner represents processor's runner.
type processRunner struct {
	Processor
	meter *metric.Meter
	fn    ProcessFunc
	hooks
}

// sinkRunner represents sink's runner.
type sinkRunner struct {
	Sink
	meter *metric.Meter
	fn    SinkFunc
	hooks
}

// Flusher defines component that must flushed in the end of execution.
type Flusher interface {
	Flush(string) error
}

// Interrupter defines component that has custom interruption logic.
type Interrupter interface {
	Interrupt(string) error
}

// Resetter defines component that must be resetted before consequent use.
type Resetter interface {
	Reset(string) error
}

// hook represents optional functions for components lyfecycle.
type hook func(string) error

// set of hooks for runners.
type hooks struct {
	flush     hook
	interrupt hook
	reset     hook
}

// bindHooks of component.
func bindHooks(v interface{}) hooks {
	return hooks{
		flush:     flusher(v),
		interrupt: interrupter(v),
		reset:     resetter(v),
	}
}

// flusher checks if interface implements Flusher and if so, return it.
func flusher(i interface{}) hook {
	if v, ok := i.(Flusher); ok {
		return v.Flush
	}
	return nil
}

// interrupter checks if interface implements Interrupter and if so, return it.
func interrupter(i interface{}) hook {
	if v, ok := i.(Interrupter); ok {
		return v.Interrupt
	}
	return nil
}

// resetter checks if interface implements Resetter and if so, return it.
func resetter(i interface{}) hook {
	if v, ok := i.(Resetter); ok {
		return v.Reset
	}
	return nil
}

// newPumpRunner creates the closure. it's separated from run to have pre-run
// logic executed in correct order for all components.
func newPumpRunner(sourceID string, bufferSize int, p Pump) (*pumpRunner, error) {
	fn, sampleRate, numChannels, err := p.Pump(sourceID, bufferSize)
	if err != nil {
		return nil, err
	}
	if sampleRate <= 0 || numChannels <= 0 {
		return nil, fmt.Errorf("invalid signal: %d Hz with %d channels", sampleRate, numChannels)
	}
	r := pumpRunner{
		fn:          fn,
		Pump:        p,
		sampleRate:  sampleRate,
		numChannels: numChannels,
		hooks:       bindHooks(p),
	}
	return &r, nil
}

// run the Pump runner.
func (r *pumpRunner) run(ctx context.Context, sourceID string) (<-chan remix.Buffer, <-chan error) {
	out := make(chan remix.Buffer)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		if !call(r.reset, sourceID, errc) { // reset hook
			return
		}
		for {
			select {
			case <-ctx.Done():
				call(r.interrupt, sourceID, errc) // interrupt hook
				return
			default:
			}

			b, err := r.fn() // pump new buffer
			if err != nil {
				if err == io.EOF {
					call(r.flush, sourceID, errc) // flush hook
				} else {
					errc <- fmt.Errorf("pump %v: %w", r.ID(), err)
				}
				return
			}
			r.meter.Message().Sample(int64(b.Size()))

			// push buffer further
			select {
			case out <- b:
			case <-ctx.Done():
				call(r.interrupt, sourceID, errc) // interrupt hook
				return
			}
		}
	}()
	return out, errc
}

// newProcessRunner creates the closure. it's separated from run to have pre-run
// logic executed in correct order for all components.
func newProcessRunner(sourceID string, sampleRate, numChannels int, p Processor) (*processRunner, error) {
	fn, err := p.Process(sourceID, sampleRate, numChannels)
	if err != nil {
		return nil, err
	}
	r := processRunner{
		fn:        fn,
		Processor: p,
		hooks:     bindHooks(p),
	}
	return &r, nil
}

// run the Processor runner.
func (r *processRunner) run(ctx context.Context, sourceID string, in <-chan remix.Buffer) (<-chan remix.Buffer, <-chan error) {
	out := make(chan remix.Buffer)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		if !call(r.reset, sourceID, errc) { // reset hook
			return
		}
		var (
			b   remix.Buffer
			ok  bool
			err error
		)
		for {
			// retrieve new buffer
			select {
			case b, ok = <-in:
				if !ok {
					call(r.flush, sourceID, errc) // flush hook
					return
				}
			case <-ctx.Done():
				call(r.interrupt, sourceID, errc) // interrupt hook
				return
			}

			if b, err = r.fn(b); err != nil { // process new buffer
				errc <- fmt.Errorf("processor %v: %w", r.ID(), err)
				return
			}
			r.meter.Message().Sample(int64(b.Size()))

			// send buffer further
			select {
			case out <- b:
			case <-ctx.Done():
				call(r.interrupt, sourceID, errc) // interrupt hook
				return
			}
		}
	}()
	return out, errc
}

// newSinkRunner creates the closure. it's separated from run to have pre-run
// logic executed in correct order for all components.
func newSinkRunner(sourceID string, sampleRate, numChannels int, s Sink) (*sinkRunner, error) {
	fn, err := s.Sink(sourceID, sampleRate, numChannels)
	if err != nil {
		return nil, err
	}
	r := sinkRunner{
		fn:    fn,
		Sink:  s,
		hooks: bindHooks(s),
	}
	return &r, nil
}

// run the sink runner.
func (r *sinkRunner) run(ctx context.Context, sourceID string, in <-chan remix.Buffer) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		if !call(r.reset, sourceID, errc) { // reset hook
			return
		}
		var (
			b  remix.Buffer
			ok bool
		)
		for {
			// receive new buffer
			select {
			case b, ok = <-in:
				if !ok {
					call(r.flush, sourceID, errc) // flush hook
					return
				}
			case <-ctx.Done():
				call(r.interrupt, sourceID, errc) // interrupt hook
				return
			}

			if err := r.fn(b); err != nil { // sink a buffer
				errc <- fmt.Errorf("sink %v: %w", r.ID(), err)
				return
			}
			r.meter.Message().Sample(int64(b.Size()))
		}
	}()
	return errc
}

// call optional function with sourceID argument. if error happens, it will
// be send to errc and false is returned.
func call(fn hook, sourceID string, errc chan error) bool {
	if fn == nil {
		return true
	}
	if err := fn(sourceID); err != nil {
		errc <- err
		return false
	}
	return true
}
