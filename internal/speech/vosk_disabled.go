//go:build !vosk

package speech

import (
	"context"
	"fmt"
)

// VoskRecognizer requires building with -tags vosk and libvosk installed.
type VoskRecognizer struct{}

func NewVoskRecognizer(_ string, _ int) (*VoskRecognizer, error) {
	return nil, fmt.Errorf("%w: binary built without the vosk tag", ErrEngineUnavailable)
}

func (r *VoskRecognizer) Start(context.Context, Handlers) (Stream, error) {
	return nil, ErrEngineUnavailable
}

func (r *VoskRecognizer) Close() {}
