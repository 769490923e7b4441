package pipe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/remix/metric"
	"github.com/dudk/remix/mock"
	"github.com/dudk/remix/pipe"
)

const bufferSize = 10

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPipe(t *testing.T) {
	tests := []struct {
		description string
		limit       int
		numChannels int
		value       float64
		messages    int
		samples     int
	}{
		{
			description: "mono",
			limit:       100,
			numChannels: 1,
			value:       0.5,
			messages:    10,
			samples:     100,
		},
		{
			description: "stereo with shorter last buffer",
			limit:       95,
			numChannels: 2,
			value:       0.7,
			messages:    10,
			samples:     95,
		},
		{
			description: "empty",
			limit:       0,
			numChannels: 2,
			messages:    0,
			samples:     0,
		},
	}
	for _, test := range tests {
		pump := &mock.Pump{
			SampleRate:  44100,
			Limit:       test.limit,
			NumChannels: test.numChannels,
			Value:       test.value,
		}
		proc := &mock.Processor{}
		sink1 := &mock.Sink{}
		sink2 := &mock.Sink{}
		p, err := pipe.New(
			bufferSize,
			pipe.WithName("test"),
			pipe.WithPump(pump),
			pipe.WithProcessors(proc),
			pipe.WithSinks(sink1, sink2),
		)
		require.NoError(t, err, test.description)

		r, err := p.Run(context.Background())
		require.NoError(t, err, test.description)
		assert.NoError(t, r.Wait(), test.description)

		for _, c := range []interface{ Count() (int, int) }{pump, proc, sink1, sink2} {
			messages, samples := c.Count()
			assert.Equal(t, test.messages, messages, test.description)
			assert.Equal(t, test.samples, samples, test.description)
		}
		assert.True(t, pump.Flushed, test.description)
		assert.True(t, proc.Flushed, test.description)
		assert.True(t, sink1.Flushed, test.description)
		if test.samples > 0 {
			assert.Equal(t, test.numChannels, sink2.Buffer().NumChannels(), test.description)
			assert.Equal(t, test.samples, sink2.Buffer().Size(), test.description)
			assert.Equal(t, test.value, sink2.Buffer()[0][0], test.description)
		}
	}
}

func TestPipeErrors(t *testing.T) {
	errTest := errors.New("test error")
	tests := []struct {
		description string
		pump        *mock.Pump
		processor   *mock.Processor
		sink        *mock.Sink
	}{
		{
			description: "pump call",
			pump:        &mock.Pump{ErrorOnCall: errTest},
			processor:   &mock.Processor{},
			sink:        &mock.Sink{},
		},
		{
			description: "processor call",
			pump:        &mock.Pump{},
			processor:   &mock.Processor{ErrorOnCall: errTest},
			sink:        &mock.Sink{},
		},
		{
			description: "sink call",
			pump:        &mock.Pump{},
			processor:   &mock.Processor{},
			sink:        &mock.Sink{ErrorOnCall: errTest},
		},
		{
			description: "sink reset",
			pump:        &mock.Pump{},
			processor:   &mock.Processor{},
			sink:        &mock.Sink{Hooks: mock.Hooks{ErrorOnReset: errTest}},
		},
		{
			description: "processor flush",
			pump:        &mock.Pump{},
			processor:   &mock.Processor{Hooks: mock.Hooks{ErrorOnFlush: errTest}},
			sink:        &mock.Sink{},
		},
	}
	for _, test := range tests {
		test.pump.SampleRate = 44100
		test.pump.NumChannels = 1
		test.pump.Limit = 1000
		p, err := pipe.New(
			bufferSize,
			pipe.WithPump(test.pump),
			pipe.WithProcessors(test.processor),
			pipe.WithSinks(test.sink),
		)
		require.NoError(t, err, test.description)
		r, err := p.Run(context.Background())
		require.NoError(t, err, test.description)
		err = r.Wait()
		assert.True(t, errors.Is(err, errTest), test.description)
	}
}

func TestPipeStop(t *testing.T) {
	pump := &mock.Pump{
		SampleRate:  44100,
		NumChannels: 1,
		Limit:       1 << 30,
		Interval:    time.Millisecond,
	}
	sink := &mock.Sink{Discard: true}
	m := metric.New("stop")
	p, err := pipe.New(
		bufferSize,
		pipe.WithMetric(m),
		pipe.WithPump(pump),
		pipe.WithSinks(sink),
	)
	require.NoError(t, err)

	r, err := p.Run(context.Background())
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, r.Stop())
	assert.NoError(t, r.Wait())
	assert.True(t, pump.Interrupted || sink.Interrupted)

	messages, _ := sink.Count()
	assert.True(t, messages > 0)
	measure := m.Measure()
	assert.Contains(t, measure, sink.ID())
	assert.Equal(t, int64(messages), measure[sink.ID()][metric.MessageCounter])
}

func TestPipeContextCancel(t *testing.T) {
	pump := &mock.Pump{
		SampleRate:  44100,
		NumChannels: 1,
		Limit:       1 << 30,
		Interval:    time.Millisecond,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	p, err := pipe.New(bufferSize, pipe.WithPump(pump), pipe.WithSinks(&mock.Sink{Discard: true}))
	require.NoError(t, err)
	r, err := p.Run(ctx)
	require.NoError(t, err)

	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("pipe is not done after context cancel")
	}
	assert.NoError(t, r.Wait())
}

func TestNew(t *testing.T) {
	_, err := pipe.New(0, pipe.WithPump(&mock.Pump{}), pipe.WithSinks(&mock.Sink{}))
	assert.Equal(t, pipe.ErrInvalidBufferSize, err)

	_, err = pipe.New(bufferSize, pipe.WithSinks(&mock.Sink{}))
	assert.Equal(t, pipe.ErrNoPump, err)

	_, err = pipe.New(bufferSize, pipe.WithPump(&mock.Pump{}))
	assert.Equal(t, pipe.ErrNoSinks, err)

	// pump defines invalid signal
	p, err := pipe.New(bufferSize, pipe.WithPump(&mock.Pump{}), pipe.WithSinks(&mock.Sink{}))
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	assert.Error(t, err)
}
