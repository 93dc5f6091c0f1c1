//go:build portaudio

package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

// PortAudioSource reads from a host input device. DeviceIndex < 0 selects the default
// input device.
type PortAudioSource struct {
	DeviceIndex int
}

func NewPortAudioSource(deviceIndex int) *PortAudioSource {
	return &PortAudioSource{DeviceIndex: deviceIndex}
}

func (s *PortAudioSource) Open(sampleRate, frames int) (Stream, error) {
	sampleRate, frames = normalize(sampleRate, frames)
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize: %w", ErrDeviceUnavailable, err)
	}
	device, err := s.device()
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.Output.Channels = 0
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = frames

	buffer := make([]int16, frames)
	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: open stream: %w", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: start stream: %w", ErrDeviceUnavailable, err)
	}
	log.With("component", "capture").Info("audio input opened",
		"device", device.Name, "sample_rate", sampleRate, "frames", frames)
	return &portAudioStream{stream: stream, buffer: buffer}, nil
}

func (s *PortAudioSource) device() (*portaudio.DeviceInfo, error) {
	if s.DeviceIndex < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: default input: %w", ErrDeviceUnavailable, err)
		}
		return device, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %w", ErrDeviceUnavailable, err)
	}
	if s.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("%w: device index %d out of range", ErrDeviceUnavailable, s.DeviceIndex)
	}
	return devices[s.DeviceIndex], nil
}

type portAudioStream struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buffer []int16
	closed bool
}

func (s *portAudioStream) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	// An overflowed read still fills the buffer; the block is kept.
	if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("read input: %w", err)
	}
	block := make([]byte, len(s.buffer)*2)
	for i, v := range s.buffer {
		binary.LittleEndian.PutUint16(block[i*2:], uint16(v))
	}
	return block, nil
}

func (s *portAudioStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := errors.Join(s.stream.Stop(), s.stream.Close())
	return errors.Join(err, portaudio.Terminate())
}
