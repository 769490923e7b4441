package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/remix"
	"github.com/dudk/remix/log"
	"github.com/dudk/remix/mock"
	"github.com/dudk/remix/source"
	"github.com/dudk/remix/wav"
)

func TestLoad(t *testing.T) {
	sine := mock.Sine(22050, 1, 2205, 440)
	data := wav.Encode(sine)

	dir := t.TempDir()
	path := filepath.Join(dir, "sine.wav")
	require.NoError(t, os.WriteFile(path, data, 0644))
	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not an audio at all"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sine.wav":
			_, _ = w.Write(data)
		case "/garbage":
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		description string
		ref         string
		fetchErr    bool
		decodeErr   bool
	}{
		{
			description: "path",
			ref:         path,
		},
		{
			description: "file url",
			ref:         "file://" + filepath.ToSlash(path),
		},
		{
			description: "http",
			ref:         srv.URL + "/sine.wav",
		},
		{
			description: "missing file",
			ref:         filepath.Join(dir, "missing.wav"),
			fetchErr:    true,
		},
		{
			description: "not found",
			ref:         srv.URL + "/missing.wav",
			fetchErr:    true,
		},
		{
			description: "empty",
			ref:         "",
			fetchErr:    true,
		},
		{
			description: "unsupported scheme",
			ref:         "ftp://example.com/a.wav",
			fetchErr:    true,
		},
		{
			description: "garbage file",
			ref:         garbage,
			decodeErr:   true,
		},
		{
			description: "garbage http",
			ref:         srv.URL + "/garbage",
			decodeErr:   true,
		},
	}

	l := source.New(source.WithClient(srv.Client()), source.WithLogger(log.Discard()))
	for _, test := range tests {
		sb, err := l.Load(context.Background(), test.ref)
		var (
			fetchErr  *remix.FetchError
			decodeErr *remix.DecodeError
		)
		switch {
		case test.fetchErr:
			assert.True(t, errors.As(err, &fetchErr), test.description)
			assert.Equal(t, test.ref, fetchErr.Ref, test.description)
		case test.decodeErr:
			assert.True(t, errors.As(err, &decodeErr), test.description)
		default:
			require.NoError(t, err, test.description)
			assert.Equal(t, 22050, sb.SampleRate, test.description)
			assert.Equal(t, 1, sb.NumChannels(), test.description)
			assert.Equal(t, 2205, sb.Frames(), test.description)
		}
	}
}

func TestLoadTooLarge(t *testing.T) {
	data := wav.Encode(mock.Sine(8000, 1, 800, 440))
	path := filepath.Join(t.TempDir(), "sine.wav")
	require.NoError(t, os.WriteFile(path, data, 0644))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	tests := []struct {
		description string
		ref         string
		maxSize     int64
		fetchErr    bool
	}{
		{
			description: "file over limit",
			ref:         path,
			maxSize:     int64(len(data)) - 1,
			fetchErr:    true,
		},
		{
			description: "http over limit",
			ref:         srv.URL + "/sine.wav",
			maxSize:     int64(len(data)) - 1,
			fetchErr:    true,
		},
		{
			description: "file at limit",
			ref:         path,
			maxSize:     int64(len(data)),
		},
		{
			description: "http at limit",
			ref:         srv.URL + "/sine.wav",
			maxSize:     int64(len(data)),
		},
	}

	for _, test := range tests {
		l := source.New(
			source.WithClient(srv.Client()),
			source.WithLogger(log.Discard()),
			source.WithMaxSize(test.maxSize),
		)
		sb, err := l.Load(context.Background(), test.ref)
		if test.fetchErr {
			var fetchErr *remix.FetchError
			assert.True(t, errors.As(err, &fetchErr), test.description)
			continue
		}
		require.NoError(t, err, test.description)
		assert.Equal(t, 800, sb.Frames(), test.description)
	}
}

func TestLoadCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sine.wav")
	require.NoError(t, os.WriteFile(path, wav.Encode(mock.Sine(8000, 1, 10, 440)), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := source.New().Load(ctx, path)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDecode(t *testing.T) {
	_, err := source.Decode([]byte("RIFF"))
	assert.True(t, errors.Is(err, source.ErrUnknownFormat))

	_, err = source.Decode([]byte{0x00, 0x01, 0x02})
	assert.True(t, errors.Is(err, source.ErrUnknownFormat))

	_, err = source.Decode([]byte("ID3 but nothing else"))
	assert.Error(t, err)
}
