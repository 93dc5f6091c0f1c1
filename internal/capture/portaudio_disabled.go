//go:build !portaudio

package capture

import "fmt"

// PortAudioSource requires building with -tags portaudio and libportaudio installed.
type PortAudioSource struct {
	DeviceIndex int
}

func NewPortAudioSource(deviceIndex int) *PortAudioSource {
	return &PortAudioSource{DeviceIndex: deviceIndex}
}

func (s *PortAudioSource) Open(int, int) (Stream, error) {
	return nil, fmt.Errorf("%w: binary built without the portaudio tag", ErrDeviceUnavailable)
}
