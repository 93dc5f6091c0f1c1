package capture

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// SyntheticSource paces a generated tone at the real capture rate. It stands in for a
// microphone on hosts without an input device.
type SyntheticSource struct {
	ToneHz    float64
	Amplitude float64
}

func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{ToneHz: 220, Amplitude: 0.1}
}

func (s *SyntheticSource) Open(sampleRate, frames int) (Stream, error) {
	sampleRate, frames = normalize(sampleRate, frames)
	period := time.Duration(frames) * time.Second / time.Duration(sampleRate)
	return &syntheticStream{
		sampleRate: sampleRate,
		frames:     frames,
		toneHz:     s.ToneHz,
		amplitude:  s.Amplitude,
		ticker:     time.NewTicker(period),
		closed:     make(chan struct{}),
	}, nil
}

type syntheticStream struct {
	sampleRate int
	frames     int
	toneHz     float64
	amplitude  float64
	ticker     *time.Ticker
	position   uint64

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *syntheticStream) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-s.closed:
		return nil, ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, ErrClosed
	case <-s.ticker.C:
	}
	block := make([]byte, s.frames*2)
	for i := 0; i < s.frames; i++ {
		t := float64(s.position) / float64(s.sampleRate)
		v := s.amplitude * math.Sin(2*math.Pi*s.toneHz*t)
		binary.LittleEndian.PutUint16(block[i*2:], uint16(int16(v*math.MaxInt16)))
		s.position++
	}
	return block, nil
}

func (s *syntheticStream) Close() error {
	s.closeOnce.Do(func() {
		s.ticker.Stop()
		close(s.closed)
	})
	return nil
}
