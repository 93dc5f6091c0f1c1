package speech

import (
	"context"
	"strings"
	"sync"
)

// DefaultMockScript is spoken in a loop by MockRecognizer.
var DefaultMockScript = []string{
	"good morning and welcome to the stream",
	"today we are testing live translation",
	"thank you for watching",
}

// MockRecognizer is a local fallback used when no recognition engine is configured.
// It reveals one scripted word per WordEvery non-empty blocks and settles the phrase
// once every word is out.
type MockRecognizer struct {
	Script    []string
	WordEvery int
}

func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{Script: DefaultMockScript, WordEvery: 4}
}

func (m *MockRecognizer) Start(_ context.Context, h Handlers) (Stream, error) {
	script := m.Script
	if len(script) == 0 {
		script = DefaultMockScript
	}
	every := m.WordEvery
	if every <= 0 {
		every = 4
	}
	return &mockStream{handlers: h, script: script, every: every}, nil
}

type mockStream struct {
	mu       sync.Mutex
	handlers Handlers
	script   []string
	every    int
	phrase   int
	words    int
	blocks   int
	stopped  bool
}

func (s *mockStream) Feed(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStreamStopped
	}
	if len(pcm) == 0 {
		return nil
	}
	s.blocks++
	if s.blocks%s.every != 0 {
		return nil
	}
	words := strings.Fields(s.script[s.phrase])
	s.words++
	if s.words < len(words) {
		s.handlers.recognizing(strings.Join(words[:s.words], " "))
		return nil
	}
	s.handlers.recognized(strings.Join(words, " "))
	s.words = 0
	s.phrase = (s.phrase + 1) % len(s.script)
	return nil
}

func (s *mockStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.words > 0 {
		words := strings.Fields(s.script[s.phrase])
		s.handlers.recognized(strings.Join(words[:s.words], " "))
		s.words = 0
	}
	return nil
}
