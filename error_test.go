package remix_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/remix"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		description string
		err         error
		cause       error
		message     string
	}{
		{
			description: "fetch",
			err:         &remix.FetchError{Ref: "song.mp3", Err: io.ErrUnexpectedEOF},
			cause:       io.ErrUnexpectedEOF,
			message:     `fetch "song.mp3": unexpected EOF`,
		},
		{
			description: "decode",
			err:         &remix.DecodeError{Ref: "song.mp3", Err: io.EOF},
			cause:       io.EOF,
			message:     `decode "song.mp3": EOF`,
		},
		{
			description: "render deadline",
			err:         &remix.RenderTimeoutError{Frames: 100, Err: context.DeadlineExceeded},
			cause:       context.DeadlineExceeded,
			message:     "render of 100 frames timed out: context deadline exceeded",
		},
		{
			description: "render capacity",
			err:         &remix.RenderTimeoutError{Frames: 100, Capacity: 10},
			message:     "render of 100 frames exceeds capacity of 10 frames",
		},
		{
			description: "application",
			err:         &remix.EffectApplicationError{Verb: remix.AddReverb, Err: remix.ErrEngineNotReady},
			cause:       remix.ErrEngineNotReady,
			message:     "add-reverb: engine is not ready",
		},
	}
	for _, test := range tests {
		assert.Equal(t, test.message, test.err.Error(), test.description)
		if test.cause != nil {
			assert.True(t, errors.Is(test.err, test.cause), test.description)
		}
	}
}

func TestErrorsWrapped(t *testing.T) {
	err := &remix.EffectApplicationError{
		Verb: remix.Play,
		Err:  fmt.Errorf("load: %w", &remix.FetchError{Ref: "x", Err: io.EOF}),
	}
	var fetchErr *remix.FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "x", fetchErr.Ref)
	assert.True(t, errors.Is(err, io.EOF))
}
