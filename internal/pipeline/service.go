package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/babel/internal/gate"
	"github.com/ent0n29/babel/internal/observability"
	"github.com/ent0n29/babel/internal/session"
	"github.com/ent0n29/babel/internal/textnorm"
	"github.com/ent0n29/babel/internal/translate"
)

// ErrInvalidRequest marks an incomplete or non-final request. Callers answer it as a
// successful no-op.
var ErrInvalidRequest = errors.New("translation request ignored")

// Request is one viewer's ask to translate a transcription fragment.
type Request struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
	ClientID       string `json:"clientId"`
	IsFinal        bool   `json:"isFinal"`
}

type Outcome string

const (
	OutcomeIgnored     Outcome = "ignored"
	OutcomeSuppressed  Outcome = "suppressed"
	OutcomeDelivered   Outcome = "delivered"
	OutcomeUndelivered Outcome = "undelivered"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeFailed      Outcome = "failed"
)

type Result struct {
	Outcome     Outcome          `json:"outcome"`
	Translation string           `json:"translation,omitempty"`
	Source      translate.Source `json:"source,omitempty"`
}

type Deps struct {
	Normalizer *textnorm.Normalizer
	Gate       *gate.Gate
	Dispatcher *translate.Dispatcher
	Registry   *session.Registry
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// Service carries one translation request from the HTTP edge to a client mailbox:
// validate, normalize, gate, dispatch, publish.
type Service struct {
	normalizer *textnorm.Normalizer
	gate       *gate.Gate
	dispatcher *translate.Dispatcher
	registry   *session.Registry
	metrics    *observability.Metrics
	now        func() time.Time
	logger     *log.Logger
}

func New(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		normalizer: d.Normalizer,
		gate:       d.Gate,
		dispatcher: d.Dispatcher,
		registry:   d.Registry,
		metrics:    d.Metrics,
		now:        d.Now,
		logger:     log.With("component", "pipeline"),
	}
}

func (s *Service) Translate(ctx context.Context, req Request) (Result, error) {
	start := s.now()
	res, err := s.translate(ctx, req)
	s.metrics.TranslationRequest(string(res.Outcome))
	if res.Outcome == OutcomeDelivered {
		s.metrics.ObserveStage("request_to_publish", s.now().Sub(start))
	}
	return res, err
}

func (s *Service) translate(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" || req.TargetLanguage == "" || req.ClientID == "" {
		s.logger.Debug("missing required parameters", "client_id", req.ClientID, "language", req.TargetLanguage)
		return Result{Outcome: OutcomeIgnored}, fmt.Errorf("%w: missing text, language or client id", ErrInvalidRequest)
	}
	if !req.IsFinal {
		s.logger.Debug("skipping non-final transcription", "client_id", req.ClientID)
		return Result{Outcome: OutcomeIgnored}, fmt.Errorf("%w: non-final fragment", ErrInvalidRequest)
	}
	if !translate.IsSupported(req.TargetLanguage) {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%w: %q", translate.ErrUnsupportedLanguage, req.TargetLanguage)
	}

	normalized := s.normalizer.Normalize(text)
	switch s.gate.Admit(req.ClientID, req.TargetLanguage, s.now()) {
	case gate.Suppress:
		s.logger.Debug("debouncing translation request", "client_id", req.ClientID, "language", req.TargetLanguage)
		return Result{Outcome: OutcomeSuppressed}, nil
	case gate.RateLimited:
		s.logger.Warn("global translation rate limit reached", "client_id", req.ClientID)
		return Result{Outcome: OutcomeRateLimited}, gate.ErrRateLimited
	}

	dispatched, err := s.dispatcher.Dispatch(ctx, normalized, req.TargetLanguage)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}

	res := Result{Outcome: OutcomeDelivered, Translation: dispatched.Text, Source: dispatched.Source}
	msg := session.Message{Kind: session.KindFinal, Text: dispatched.Text}
	if err := s.registry.Publish(req.ClientID, msg); err != nil {
		if !errors.Is(err, session.ErrNotSubscribed) {
			return Result{Outcome: OutcomeFailed}, err
		}
		s.logger.Warn("client not subscribed, translation not delivered", "client_id", req.ClientID)
		res.Outcome = OutcomeUndelivered
		return res, nil
	}
	s.logger.Debug("translation delivered", "client_id", req.ClientID, "source", dispatched.Source)
	return res, nil
}
