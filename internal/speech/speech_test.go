package speech

import (
	"context"
	"errors"
	"testing"
)

func TestResultText(t *testing.T) {
	tests := []struct {
		raw   string
		final bool
		want  string
	}{
		{raw: `{"partial":"hello wor"}`, final: false, want: "hello wor"},
		{raw: `{"text":"hello world"}`, final: true, want: "hello world"},
		{raw: `{"text":"the"}`, final: true, want: ""},
		{raw: `{"partial":""}`, final: false, want: ""},
		{raw: `not json`, final: true, want: ""},
	}
	for _, tt := range tests {
		if got := resultText(tt.raw, tt.final); got != tt.want {
			t.Fatalf("resultText(%q, %v) = %q, want %q", tt.raw, tt.final, got, tt.want)
		}
	}
}

func TestMockRecognizerRevealsWordsThenSettles(t *testing.T) {
	rec := &MockRecognizer{Script: []string{"one two three"}, WordEvery: 1}
	var partials, finals []string
	stream, err := rec.Start(context.Background(), Handlers{
		Recognizing: func(text string) { partials = append(partials, text) },
		Recognized:  func(text string) { finals = append(finals, text) },
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	block := make([]byte, 32)
	for i := 0; i < 3; i++ {
		if err := stream.Feed(block); err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
	}
	if len(partials) != 2 || partials[0] != "one" || partials[1] != "one two" {
		t.Fatalf("partials = %q", partials)
	}
	if len(finals) != 1 || finals[0] != "one two three" {
		t.Fatalf("finals = %q", finals)
	}
}

func TestMockRecognizerStopFlushesPending(t *testing.T) {
	rec := &MockRecognizer{Script: []string{"alpha beta gamma"}, WordEvery: 1}
	var finals []string
	stream, _ := rec.Start(context.Background(), Handlers{
		Recognized: func(text string) { finals = append(finals, text) },
	})
	_ = stream.Feed([]byte{1, 2})
	if err := stream.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(finals) != 1 || finals[0] != "alpha" {
		t.Fatalf("finals = %q, want [alpha]", finals)
	}
	if err := stream.Feed([]byte{1, 2}); !errors.Is(err, ErrStreamStopped) {
		t.Fatalf("Feed() after Stop error = %v, want ErrStreamStopped", err)
	}
	if err := stream.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestMockRecognizerIgnoresEmptyBlocks(t *testing.T) {
	rec := &MockRecognizer{Script: []string{"a b"}, WordEvery: 1}
	called := false
	stream, _ := rec.Start(context.Background(), Handlers{
		Recognizing: func(string) { called = true },
		Recognized:  func(string) { called = true },
	})
	_ = stream.Feed(nil)
	if called {
		t.Fatalf("empty block produced a result")
	}
}
