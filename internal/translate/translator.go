package translate

import (
	"context"
	"fmt"
	"strings"
)

// Translator is the external text translation engine.
type Translator interface {
	Translate(ctx context.Context, text, targetCode string) (string, error)
}

// StatusError reports a non-success HTTP status from a translator backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("translator http status %d: %s", e.Code, e.Body)
}

// MockTranslator is a deterministic local translator used when no backend is configured.
type MockTranslator struct{}

func NewMockTranslator() *MockTranslator { return &MockTranslator{} }

func (MockTranslator) Translate(ctx context.Context, text, targetCode string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty text")
	}
	return "[" + targetCode + "] " + text, nil
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, text, targetCode string) (string, error)

func (f TranslatorFunc) Translate(ctx context.Context, text, targetCode string) (string, error) {
	return f(ctx, text, targetCode)
}
