// Package wav encodes samples into 16-bit PCM WAV files and decodes PCM
// WAV files into samples.
package wav

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"

	"github.com/dudk/remix"
)

const (
	// HeaderSize is the size of canonical WAV header.
	HeaderSize = 44
	// BitDepth of encoded samples.
	BitDepth = 16

	pcmFormat        = 1
	extensibleFormat = 0xFFFE
)

var (
	// ErrInvalidFile is returned when decoded data is not a WAV file.
	ErrInvalidFile = errors.New("wav is not valid")
	// ErrUnsupportedFormat is returned when WAV file is not integer PCM.
	ErrUnsupportedFormat = errors.New("only integer PCM wav is supported")
)

// header is canonical header of PCM WAV file.
type header struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// Size returns size of encoded buffer in bytes.
func Size(sb remix.SampleBuffer) int {
	return HeaderSize + sb.Frames()*sb.NumChannels()*BitDepth/8
}

// Encode returns WAV file bytes of buffer.
func Encode(sb remix.SampleBuffer) []byte {
	var b bytes.Buffer
	b.Grow(Size(sb))
	// writes to bytes.Buffer don't fail.
	_ = Write(&b, sb)
	return b.Bytes()
}

// Write encodes buffer into provided writer.
func Write(w io.Writer, sb remix.SampleBuffer) error {
	numChannels := sb.NumChannels()
	dataSize := Size(sb) - HeaderSize
	h := header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(dataSize + HeaderSize - 8),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   pcmFormat,
		NumChannels:   uint16(numChannels),
		SampleRate:    uint32(sb.SampleRate),
		ByteRate:      uint32(sb.SampleRate * numChannels * BitDepth / 8),
		BlockAlign:    uint16(numChannels * BitDepth / 8),
		BitsPerSample: BitDepth,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	var frame [2]byte
	for i := 0; i < sb.Frames(); i++ {
		for c := 0; c < numChannels; c++ {
			binary.LittleEndian.PutUint16(frame[:], uint16(Quantize(sb.Samples[c][i])))
			if _, err := bw.Write(frame[:]); err != nil {
				return fmt.Errorf("write samples: %w", err)
			}
		}
	}
	return bw.Flush()
}

// Quantize clamps sample to [-1, 1] and converts it to 16-bit value.
// Negative values are scaled by 32768, positive by 32767.
func Quantize(v float32) int16 {
	switch {
	case math.IsNaN(float64(v)):
		return 0
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	case v < 0:
		return int16(v * 32768)
	}
	return int16(v * 32767)
}

// Decode reads integer PCM WAV into samples. 8, 16, 24 and 32 bit depths
// are supported.
func Decode(r io.ReadSeeker) (remix.SampleBuffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return remix.SampleBuffer{}, ErrInvalidFile
	}
	if d.WavAudioFormat != pcmFormat && d.WavAudioFormat != extensibleFormat {
		return remix.SampleBuffer{}, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}
	bitDepth := int(d.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return remix.SampleBuffer{}, fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, bitDepth)
	}

	ib, err := d.FullPCMBuffer()
	if err != nil {
		return remix.SampleBuffer{}, fmt.Errorf("decode pcm: %w", err)
	}
	numChannels := ib.Format.NumChannels
	if numChannels <= 0 {
		return remix.SampleBuffer{}, fmt.Errorf("%w: %d channels", ErrInvalidFile, numChannels)
	}

	frames := len(ib.Data) / numChannels
	sb := remix.NewSampleBuffer(ib.Format.SampleRate, numChannels, frames)
	// 8-bit samples are unsigned.
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	scale := 1 / float64(int64(1)<<(bitDepth-1))
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			sb.Samples[c][i] = float32(float64(ib.Data[i*numChannels+c]-offset) * scale)
		}
	}
	return sb, nil
}
