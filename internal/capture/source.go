package capture

import (
	"context"
	"errors"
)

const (
	DefaultSampleRate = 16000
	DefaultFrames     = 1024
)

var (
	ErrClosed            = errors.New("capture stream closed")
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
)

// Source opens mono 16-bit PCM input streams.
type Source interface {
	Open(sampleRate, frames int) (Stream, error)
}

type Stream interface {
	// Read blocks until the next block of frames is available. Blocks are little-endian
	// PCM16, two bytes per frame.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

func normalize(sampleRate, frames int) (int, int) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if frames <= 0 {
		frames = DefaultFrames
	}
	return sampleRate, frames
}
