package synth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ent0n29/babel/internal/observability"
	"github.com/ent0n29/babel/internal/reliability"
)

var (
	ErrEmptyText = errors.New("no text provided")
	ErrCleanup   = errors.New("temporary audio cleanup failed")
)

// CleanupPolicy is used when removing staged audio files.
var CleanupPolicy = reliability.Policy{Attempts: 3, Backoff: 100 * time.Millisecond}

// Service stages synthesized audio in a temporary file, returns its bytes and always
// tries to remove the file afterwards.
type Service struct {
	synth   Synthesizer
	tempDir string
	metrics *observability.Metrics
	logger  *log.Logger

	removeFile func(string) error
}

func NewService(s Synthesizer, tempDir string, metrics *observability.Metrics) *Service {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Service{
		synth:      s,
		tempDir:    tempDir,
		metrics:    metrics,
		logger:     log.With("component", "synth"),
		removeFile: os.Remove,
	}
}

func (s *Service) Speak(ctx context.Context, text, language string) ([]byte, error) {
	text = Speakable(text)
	if text == "" {
		s.metrics.SynthesisRequest("invalid")
		return nil, ErrEmptyText
	}
	voice, err := VoiceFor(language)
	if err != nil {
		s.metrics.SynthesisRequest("invalid")
		return nil, err
	}
	s.logger.Info("speech synthesis requested", "language", language, "voice", voice.Name, "chars", len(text))

	path := filepath.Join(s.tempDir, "speech_"+uuid.NewString()+".wav")
	defer s.cleanup(path)

	out, err := s.stage(ctx, path, text, voice)
	if err != nil {
		s.metrics.SynthesisRequest("error")
		s.logger.Error("speech synthesis failed", "language", language, "err", err)
		return nil, err
	}
	s.metrics.SynthesisRequest("ok")
	s.logger.Info("speech synthesis completed", "language", language, "bytes", len(out))
	return out, nil
}

func (s *Service) stage(ctx context.Context, path, text string, voice Voice) ([]byte, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if err := s.synth.Synthesize(ctx, text, voice, f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}
	return data, nil
}

func (s *Service) cleanup(path string) {
	err := reliability.Retry(context.Background(), CleanupPolicy, func(context.Context, int) error {
		err := s.removeFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}, nil)
	if err != nil {
		s.metrics.CleanupFailure()
		s.logger.Warn("failed to remove temp file", "path", path, "err", fmt.Errorf("%w: %w", ErrCleanup, err))
	}
}
