// Package mixer provides the live pump of the engine. Every playback
// session is a voice of the mixer. Voices are summed up and silence is
// pumped when there are no voices, so the pipe keeps running between
// sessions.
package mixer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dudk/remix"
	"github.com/dudk/remix/log"
)

// ErrVoiceNotFound is returned when removed voice is not mixed.
var ErrVoiceNotFound = errors.New("voice not found")

// Mixer sums up voices into a single signal.
type Mixer struct {
	remix.UID
	log.Logger
	sampleRate  int
	numChannels int

	m      sync.Mutex
	voices map[string]*voice
	order  []string
}

// voice is a buffer being played.
type voice struct {
	remix.Buffer
	pos    int
	onDone func()
}

// New returns new mixer.
func New(sampleRate, numChannels int) *Mixer {
	return &Mixer{
		UID:         remix.NewUID(),
		Logger:      log.GetLogger(),
		sampleRate:  sampleRate,
		numChannels: numChannels,
		voices:      make(map[string]*voice),
	}
}

// Add new voice to the mix. OnDone is called when all samples of the
// voice are pumped. At that point the last blocks may still be processed
// by the pipe and not yet played by the sink. It's not called if voice
// is removed.
func (m *Mixer) Add(id string, b remix.Buffer, onDone func()) error {
	if b.NumChannels() != m.numChannels {
		return fmt.Errorf("voice %v has %d channels, mixer expects %d", id, b.NumChannels(), m.numChannels)
	}
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.voices[id]; ok {
		return fmt.Errorf("voice %v already added", id)
	}
	m.voices[id] = &voice{Buffer: b, onDone: onDone}
	m.order = append(m.order, id)
	m.Debugf("mixer %v: voice %v added", m.ID(), id)
	return nil
}

// Remove voice from the mix.
func (m *Mixer) Remove(id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.voices[id]; !ok {
		return fmt.Errorf("%w: %v", ErrVoiceNotFound, id)
	}
	m.remove(id)
	m.Debugf("mixer %v: voice %v removed", m.ID(), id)
	return nil
}

// Voices returns number of voices in the mix.
func (m *Mixer) Voices() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.voices)
}

// Pump returns a pump function which mixes next block of all voices.
// Pump never returns io.EOF, pipe has to be stopped.
func (m *Mixer) Pump(sourceID string, bufferSize int) (func() (remix.Buffer, error), int, int, error) {
	return func() (remix.Buffer, error) {
		b, done := m.mix(bufferSize)
		for _, fn := range done {
			fn()
		}
		return b, nil
	}, m.sampleRate, m.numChannels, nil
}

// mix returns block of summed voices and callbacks of finished ones.
func (m *Mixer) mix(bufferSize int) (remix.Buffer, []func()) {
	result := remix.EmptyBuffer(m.numChannels, bufferSize)
	var done []func()

	m.m.Lock()
	defer m.m.Unlock()
	ids := append([]string(nil), m.order...)
	for _, id := range ids {
		v := m.voices[id]
		n := v.Size() - v.pos
		if n > bufferSize {
			n = bufferSize
		}
		for c := range result {
			for i, s := range v.Buffer[c][v.pos : v.pos+n] {
				result[c][i] += s
			}
		}
		v.pos += n
		if v.pos >= v.Size() {
			m.remove(id)
			if v.onDone != nil {
				done = append(done, v.onDone)
			}
		}
	}
	return result, done
}

// remove voice, must be called under lock.
func (m *Mixer) remove(id string) {
	delete(m.voices, id)
	for i := range m.order {
		if m.order[i] == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
