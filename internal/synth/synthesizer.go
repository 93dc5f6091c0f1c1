package synth

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ent0n29/babel/internal/audio"
)

// Synthesizer renders text with voice as a WAV stream written to out.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice, out io.Writer) error
}

// SynthesisError is a failure reported by the synthesis engine itself. Detail is
// surfaced to callers.
type SynthesisError struct {
	Detail string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speech synthesis failed: %s: %v", e.Detail, e.Err)
	}
	return "speech synthesis failed: " + e.Detail
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// MockSynthesizer renders a short tone per word. It is the local fallback when no
// synthesis backend is configured.
type MockSynthesizer struct {
	SampleRate int
	PerWord    time.Duration
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{SampleRate: audio.DefaultSampleRate, PerWord: 120 * time.Millisecond}
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string, voice Voice, out io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return &SynthesisError{Detail: "no speakable text"}
	}
	perWord := m.PerWord
	if perWord <= 0 {
		perWord = 120 * time.Millisecond
	}
	// Each voice gets its own pitch so outputs are distinguishable.
	hz := 180 + float64(len(voice.Name)%10)*20
	pcm := audio.Tone(m.SampleRate, time.Duration(words)*perWord, hz, 0.2)
	return audio.WriteWAV(out, pcm, m.SampleRate)
}
