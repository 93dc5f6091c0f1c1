package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"
)

const (
	DefaultSampleRate = 16000
	bytesPerSample    = 2
)

var ErrNotWAV = errors.New("not a PCM16 mono WAV stream")

// wavHeader is the canonical 44-byte RIFF header for PCM16 mono audio.
type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func newHeader(dataSize, sampleRate int) wavHeader {
	return wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataSize),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * bytesPerSample),
		BlockAlign:    bytesPerSample,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(dataSize),
	}
}

// WriteWAV writes PCM16LE mono samples to out in a WAV container.
func WriteWAV(out io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if err := binary.Write(out, binary.LittleEndian, newHeader(len(pcm), sampleRate)); err != nil {
		return err
	}
	_, err := out.Write(pcm)
	return err
}

func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	if err := WriteWAV(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeWAV returns the sample rate and PCM payload of a canonical PCM16 mono WAV.
func DecodeWAV(b []byte) (int, []byte, error) {
	var h wavHeader
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &h); err != nil {
		return 0, nil, ErrNotWAV
	}
	if string(h.RIFF[:]) != "RIFF" || string(h.WAVE[:]) != "WAVE" || h.AudioFormat != 1 ||
		h.Channels != 1 || h.BitsPerSample != 16 || string(h.Data[:]) != "data" {
		return 0, nil, ErrNotWAV
	}
	pcm := b[44:]
	if int(h.DataSize) < len(pcm) {
		pcm = pcm[:h.DataSize]
	}
	return int(h.SampleRate), pcm, nil
}

// Duration of a PCM16 mono payload at sampleRate.
func Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Tone renders a sine wave of length d as PCM16LE mono.
func Tone(sampleRate int, d time.Duration, hz, amplitude float64) []byte {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	n := int(d * time.Duration(sampleRate) / time.Second)
	pcm := make([]byte, n*bytesPerSample)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(pcm[i*bytesPerSample:], uint16(int16(v*math.MaxInt16)))
	}
	return pcm
}
