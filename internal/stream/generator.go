package stream

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/babel/internal/mailbox"
	"github.com/ent0n29/babel/internal/observability"
	"github.com/ent0n29/babel/internal/session"
	"github.com/ent0n29/babel/internal/transcript"
)

const (
	DefaultKeepalive   = time.Second
	DefaultIdleTimeout = 30 * time.Second

	NameTranscription = "transcription"
	NameTranslation   = "translation"
)

// FrameWriter emits one server-push event per call.
type FrameWriter interface {
	WriteFrame(v any) error
}

// KeepaliveFrame is pushed when no message arrived within the keepalive interval.
type KeepaliveFrame struct {
	Keepalive bool `json:"keepalive"`
}

// State of a generator.
type State int

const (
	StateActive State = iota
	StateTerminated
)

// Reason explains why a generator reached StateTerminated.
type Reason string

const (
	ReasonDisconnected Reason = "disconnected"
	ReasonIdle         Reason = "idle"
	ReasonWriteFailed  Reason = "write_failed"
)

type Options struct {
	Keepalive time.Duration
	// IdleTimeout only applies to per-client translation streams.
	IdleTimeout time.Duration
	Metrics     *observability.Metrics
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Keepalive <= 0 {
		o.Keepalive = DefaultKeepalive
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// machine drives one push loop. Every wait on the mailbox is bounded by the keepalive
// interval so the idle check and keepalive always run.
type machine[T any] struct {
	name      string
	box       *mailbox.Box[T]
	encode    func(T) any
	delivered func(now time.Time)
	idle      func(now time.Time) bool
	opts      Options
	logger    *log.Logger
}

func (m *machine[T]) run(ctx context.Context, w FrameWriter) Reason {
	state := StateActive
	var reason Reason
	for state == StateActive {
		state, reason = m.step(ctx, w)
	}
	return reason
}

func (m *machine[T]) step(ctx context.Context, w FrameWriter) (State, Reason) {
	msg, err := m.box.Receive(ctx, m.opts.Keepalive)
	switch {
	case err == nil:
		if werr := w.WriteFrame(m.encode(msg)); werr != nil {
			m.logger.Debug("data frame write failed", "err", werr)
			return StateTerminated, ReasonWriteFailed
		}
		m.opts.Metrics.StreamFrame(m.name, "data")
		if m.delivered != nil {
			m.delivered(m.opts.Now())
		}
		return StateActive, ""
	case errors.Is(err, mailbox.ErrTimeout):
		if m.idle != nil && m.idle(m.opts.Now()) {
			return StateTerminated, ReasonIdle
		}
		if werr := w.WriteFrame(KeepaliveFrame{Keepalive: true}); werr != nil {
			m.logger.Debug("keepalive write failed", "err", werr)
			return StateTerminated, ReasonWriteFailed
		}
		m.opts.Metrics.StreamFrame(m.name, "keepalive")
		return StateActive, ""
	default:
		return StateTerminated, ReasonDisconnected
	}
}

// Transcriptions pushes raw transcription fragments from l until the peer goes away.
func Transcriptions(ctx context.Context, l *transcript.Listener, w FrameWriter, opts Options) Reason {
	opts = opts.withDefaults()
	m := &machine[transcript.Fragment]{
		name:   NameTranscription,
		box:    l.Mailbox(),
		encode: func(f transcript.Fragment) any { return f.Frame() },
		opts:   opts,
		logger: log.With("component", "stream", "stream", NameTranscription),
	}
	opts.Metrics.StreamOpened(NameTranscription)
	defer opts.Metrics.StreamClosed(NameTranscription)
	return m.run(ctx, w)
}

// Translations pushes s's translated messages until the peer goes away or no message
// has been delivered for the idle timeout.
func Translations(ctx context.Context, s *session.Session, w FrameWriter, opts Options) Reason {
	opts = opts.withDefaults()
	m := &machine[session.Message]{
		name:      NameTranslation,
		box:       s.Mailbox(),
		encode:    func(msg session.Message) any { return msg.Frame() },
		delivered: s.MarkDelivered,
		idle: func(now time.Time) bool {
			return s.IdleFor(now) > opts.IdleTimeout
		},
		opts:   opts,
		logger: log.With("component", "stream", "stream", NameTranslation, "client_id", s.ID),
	}
	opts.Metrics.StreamOpened(NameTranslation)
	defer opts.Metrics.StreamClosed(NameTranslation)
	return m.run(ctx, w)
}
