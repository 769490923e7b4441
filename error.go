package remix

import (
	"errors"
	"fmt"
)

// ErrEngineNotReady is returned when effect graph is used before it was
// initialized or after it was closed.
var ErrEngineNotReady = errors.New("engine is not ready")

// FetchError is returned when source of audio is unreachable.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.Ref, e.Err)
}

// Unwrap returns underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when fetched bytes cannot be parsed as audio.
type DecodeError struct {
	Ref string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Ref, e.Err)
}

// Unwrap returns underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RenderTimeoutError is returned when render cannot be completed: either
// requested number of frames exceeds the capacity or the deadline was
// reached while rendering.
type RenderTimeoutError struct {
	Frames   int
	Capacity int
	Err      error
}

func (e *RenderTimeoutError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("render of %d frames timed out: %v", e.Frames, e.Err)
	case e.Capacity > 0:
		return fmt.Sprintf("render of %d frames exceeds capacity of %d frames", e.Frames, e.Capacity)
	}
	return fmt.Sprintf("render of %d frames timed out", e.Frames)
}

// Unwrap returns underlying error.
func (e *RenderTimeoutError) Unwrap() error {
	return e.Err
}

// EffectApplicationError wraps any error that happened while command was
// applied.
type EffectApplicationError struct {
	Verb Verb
	Err  error
}

func (e *EffectApplicationError) Error() string {
	return fmt.Sprintf("%v: %v", e.Verb, e.Err)
}

// Unwrap returns underlying error.
func (e *EffectApplicationError) Unwrap() error {
	return e.Err
}
