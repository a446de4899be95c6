package google

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const wavHeaderSize = 44

// ErrInvalidWAV is returned for files that are not 16-bit PCM WAV.
var ErrInvalidWAV = errors.New("invalid WAV file")

// AudioSource opens the capture stream for one recognition run.
type AudioSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// WAVFormat is the format block of a canonical WAV header.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ReadWAVHeader consumes and validates a canonical 44-byte WAV header.
func ReadWAVHeader(r io.Reader) (WAVFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return WAVFormat{}, fmt.Errorf("%w: read header: %v", ErrInvalidWAV, err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAVFormat{}, fmt.Errorf("%w: missing RIFF/WAVE marker", ErrInvalidWAV)
	}

	f := WAVFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if f.AudioFormat != 1 { // PCM
		return f, fmt.Errorf("%w: only PCM supported, got format %d", ErrInvalidWAV, f.AudioFormat)
	}
	return f, nil
}

// WAVSource replays a WAV file as if it were a microphone. Each run starts
// from the beginning of the file.
type WAVSource struct {
	Path string

	// SampleRateHz, if set, is checked against the file header.
	SampleRateHz int32
}

// Open validates the header and returns a reader positioned at the samples.
func (s WAVSource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	format, err := ReadWAVHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if s.SampleRateHz > 0 && format.SampleRate != uint32(s.SampleRateHz) {
		f.Close()
		return nil, fmt.Errorf("%w: sample rate is %d Hz, expected %d Hz", ErrInvalidWAV, format.SampleRate, s.SampleRateHz)
	}
	return f, nil
}
