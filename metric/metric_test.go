package metric_test

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/remix"
	"github.com/dudk/remix/metric"
)

func TestMeter(t *testing.T) {
	var tests = []struct {
		description string
		*metric.Metric
		routines int
		messages int
		samples  int64
		expected int64
	}{
		{
			description: "two meters",
			Metric:      metric.New("two"),
			routines:    2,
			messages:    10,
			samples:     100,
			expected:    10 * 100,
		},
		{
			description: "ten meters",
			Metric:      metric.New("ten"),
			routines:    10,
			messages:    5,
			samples:     100,
			expected:    5 * 100,
		},
		{
			description: "nil metric",
			routines:    100,
			messages:    5,
			samples:     100,
			expected:    0,
		},
	}

	// function to test meter.
	testFn := func(c *metric.Meter, wg *sync.WaitGroup, messages int, samples int64) {
		for i := 0; i < messages; i++ {
			c.Message().Sample(samples)
		}
		wg.Done()
	}

	for _, c := range tests {
		m := c.Metric
		wg := &sync.WaitGroup{}
		wg.Add(c.routines)
		for i := 0; i < c.routines; i++ {
			meterName := fmt.Sprintf("test %d", i)
			meter := m.Meter(meterName, "sink", 44100)
			go testFn(meter, wg, c.messages, c.samples)
		}
		// check if no data race.
		_ = m.Measure()
		wg.Wait()
		measure := m.Measure()
		if m != nil {
			assert.Equal(t, c.routines, len(measure), c.description)
		}
		for _, meters := range measure {
			assert.Equal(t, c.expected, meters[metric.SampleCounter], c.description)
			assert.Equal(t, int64(c.messages), meters[metric.MessageCounter], c.description)
			assert.Equal(t, remix.DurationOf(44100, c.expected), meters[metric.DurationCounter], c.description)
			assert.IsType(t, time.Time{}, meters[metric.StartCounter], c.description)
		}
	}
}

func TestHandler(t *testing.T) {
	metric.Command(remix.Play, nil)
	metric.Command(remix.Download, errors.New("test"))
	metric.Render(time.Second)

	rec := httptest.NewRecorder()
	metric.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.True(t, strings.Contains(body, `remix_commands_total{outcome="ok",verb="play"}`))
	assert.True(t, strings.Contains(body, `remix_commands_total{outcome="error",verb="download"}`))
	assert.True(t, strings.Contains(body, "remix_render_seconds_count"))
}
