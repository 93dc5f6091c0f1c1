//go:build vosk

package speech

import (
	"context"
	"fmt"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
	"github.com/charmbracelet/log"
)

// At 16 kHz with 1024-frame blocks, 160 blocks is about ten seconds.
const maxBlocksBeforeForceFinal = 160

// VoskRecognizer runs offline recognition with a Vosk model directory.
type VoskRecognizer struct {
	model      *vosk.VoskModel
	sampleRate float64
	logger     *log.Logger
}

func NewVoskRecognizer(modelPath string, sampleRate int) (*VoskRecognizer, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: model path is required", ErrEngineUnavailable)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: model directory: %w", ErrEngineUnavailable, err)
	}
	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load model %s: %w", ErrEngineUnavailable, modelPath, err)
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	logger := log.With("component", "vosk")
	logger.Info("vosk model loaded", "path", modelPath)
	return &VoskRecognizer{model: model, sampleRate: float64(sampleRate), logger: logger}, nil
}

func (r *VoskRecognizer) Start(_ context.Context, h Handlers) (Stream, error) {
	rec, err := r.newEngine()
	if err != nil {
		return nil, err
	}
	return &voskStream{owner: r, rec: rec, handlers: h}, nil
}

func (r *VoskRecognizer) newEngine() (*vosk.VoskRecognizer, error) {
	rec, err := vosk.NewRecognizer(r.model, r.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: new recognizer: %w", ErrEngineUnavailable, err)
	}
	rec.SetWords(0)
	return rec, nil
}

// Close frees the model. Streams must be stopped first.
func (r *VoskRecognizer) Close() {
	if r.model != nil {
		r.model.Free()
		r.model = nil
	}
}

type voskStream struct {
	mu         sync.Mutex
	owner      *VoskRecognizer
	rec        *vosk.VoskRecognizer
	handlers   Handlers
	sinceFinal int
}

func (s *voskStream) Feed(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return ErrStreamStopped
	}
	s.sinceFinal++

	switch {
	case s.rec.AcceptWaveform(pcm) != 0:
		s.handlers.recognized(resultText(s.rec.Result(), true))
		s.sinceFinal = 0
	case s.sinceFinal >= maxBlocksBeforeForceFinal:
		s.handlers.recognized(resultText(s.rec.FinalResult(), true))
		s.sinceFinal = 0
		s.reset()
	default:
		s.handlers.recognizing(resultText(s.rec.PartialResult(), false))
	}
	return nil
}

// reset recreates the engine to release native memory. Must be called with s.mu held.
func (s *voskStream) reset() {
	s.rec.Free()
	rec, err := s.owner.newEngine()
	if err != nil {
		s.owner.logger.Error("failed to recreate recognizer", "err", err)
		s.rec = nil
		s.handlers.canceled(err)
		return
	}
	s.rec = rec
}

func (s *voskStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil
	}
	s.handlers.recognized(resultText(s.rec.FinalResult(), true))
	s.rec.Free()
	s.rec = nil
	return nil
}
