// Package mp3 decodes MPEG-1/2 layer 3 streams into samples.
package mp3

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/dudk/remix"
)

// NumChannels of decoded signal. Decoder always provides stereo.
const NumChannels = 2

// bytesPerFrame is a size of decoded stereo 16-bit frame.
const bytesPerFrame = 4

// Decode reads full mp3 stream into samples.
func Decode(r io.Reader) (remix.SampleBuffer, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return remix.SampleBuffer{}, fmt.Errorf("mp3 decoder: %w", err)
	}
	data, err := io.ReadAll(d)
	if err != nil {
		return remix.SampleBuffer{}, fmt.Errorf("mp3 decode: %w", err)
	}

	frames := len(data) / bytesPerFrame
	sb := remix.NewSampleBuffer(d.SampleRate(), NumChannels, frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < NumChannels; c++ {
			pos := i*bytesPerFrame + c*2
			v := int16(binary.LittleEndian.Uint16(data[pos : pos+2]))
			sb.Samples[c][i] = float32(v) / 32768
		}
	}
	return sb, nil
}
