// Package source loads audio by reference. Reference is either http(s)
// URL, file URL or a path on the local file system.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dudk/remix"
	"github.com/dudk/remix/log"
	"github.com/dudk/remix/mp3"
	"github.com/dudk/remix/wav"
)

// ErrUnknownFormat is returned when fetched bytes are neither WAV nor MP3.
var ErrUnknownFormat = errors.New("unknown audio format")

// DefaultMaxSize is the default limit of fetched source size.
const DefaultMaxSize = 512 << 20

// Loader fetches and decodes sources. It doesn't cache results, every
// call fetches and decodes the source again. Loader is safe for
// concurrent use.
type Loader struct {
	client  *http.Client
	log     log.Logger
	maxSize int64
}

// Option configures the loader.
type Option func(*Loader)

// WithClient sets http client used to fetch remote sources.
func WithClient(c *http.Client) Option {
	return func(l *Loader) {
		l.client = c
	}
}

// WithMaxSize limits the size of fetched source. Larger sources are
// rejected with FetchError.
func WithMaxSize(n int64) Option {
	return func(l *Loader) {
		l.maxSize = n
	}
}

// WithLogger sets logger of the loader.
func WithLogger(lg log.Logger) Option {
	return func(l *Loader) {
		l.log = lg
	}
}

// New returns new loader.
func New(options ...Option) *Loader {
	l := &Loader{
		client:  &http.Client{Timeout: time.Minute},
		log:     log.GetLogger(),
		maxSize: DefaultMaxSize,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// Load fetches and decodes the source. FetchError is returned when source
// cannot be fetched, DecodeError when it's not a valid audio.
func (l *Loader) Load(ctx context.Context, ref string) (remix.SampleBuffer, error) {
	data, err := l.fetch(ctx, ref)
	if err != nil {
		return remix.SampleBuffer{}, &remix.FetchError{Ref: ref, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return remix.SampleBuffer{}, err
	}
	l.log.Debugf("fetched %v: %d bytes", ref, len(data))

	sb, err := Decode(data)
	if err != nil {
		return remix.SampleBuffer{}, &remix.DecodeError{Ref: ref, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return remix.SampleBuffer{}, err
	}
	l.log.Debugf("decoded %v: %d Hz, %d channels, %v", ref, sb.SampleRate, sb.NumChannels(), sb.Duration())
	return sb, nil
}

// fetch reads all bytes of the source.
func (l *Loader) fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, errors.New("empty reference")
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path, windows drive letter is not a scheme.
		return l.readFile(ref)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return l.get(ctx, u.String())
	case "file":
		return l.readFile(u.Path)
	}
	return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
}

func (l *Loader) get(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return l.readAll(resp.Body)
}

func (l *Loader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return l.readAll(f)
}

// readAll reads at most maxSize bytes. One extra byte is read to detect
// truncation.
func (l *Loader) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("source exceeds %d bytes", l.maxSize)
	}
	return data, nil
}

// Decode sniffs the format of data and decodes it.
func Decode(data []byte) (remix.SampleBuffer, error) {
	var (
		sb  remix.SampleBuffer
		err error
	)
	switch {
	case isWav(data):
		sb, err = wav.Decode(bytes.NewReader(data))
	case isMP3(data):
		sb, err = mp3.Decode(bytes.NewReader(data))
	default:
		return remix.SampleBuffer{}, ErrUnknownFormat
	}
	if err != nil {
		return remix.SampleBuffer{}, err
	}
	if sb.SampleRate <= 0 || sb.NumChannels() == 0 {
		return remix.SampleBuffer{}, fmt.Errorf("invalid signal: %d Hz with %d channels", sb.SampleRate, sb.NumChannels())
	}
	return sb, nil
}

func isWav(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// isMP3 checks ID3 tag or MPEG frame sync.
func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
