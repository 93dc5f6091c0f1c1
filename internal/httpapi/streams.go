package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ent0n29/babel/internal/session"
	"github.com/ent0n29/babel/internal/stream"
	"github.com/ent0n29/babel/internal/translate"
)

const frameWriteTimeout = 10 * time.Second

func (s *Server) streamOptions() stream.Options {
	return stream.Options{
		Keepalive:   s.cfg.StreamKeepalive,
		IdleTimeout: s.cfg.SessionIdleTimeout,
		Metrics:     s.metrics,
	}
}

func (s *Server) handleStreamTranscription(w http.ResponseWriter, r *http.Request) {
	l := s.feed.Listen()
	defer s.feed.Unlisten(l)
	sse, err := stream.NewSSEWriter(w, frameWriteTimeout)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", err.Error())
		return
	}

	reason := stream.Transcriptions(r.Context(), l, sse, s.streamOptions())
	s.logger.Debug("transcription stream closed", "reason", reason)
}

// translationTarget validates the language path parameter and client id shared by the
// SSE and WebSocket translation streams.
func translationTarget(r *http.Request) (lang, clientID, errCode, errMsg string) {
	lang = chi.URLParam(r, "lang")
	if !translate.IsSupported(lang) {
		return "", "", "unsupported_language", "Unsupported language"
	}
	clientID = strings.TrimSpace(r.URL.Query().Get("client_id"))
	return lang, clientID, "", ""
}

func (s *Server) handleStreamTranslation(w http.ResponseWriter, r *http.Request) {
	lang, clientID, code, msg := translationTarget(r)
	if code != "" {
		respondError(w, http.StatusBadRequest, code, msg)
		return
	}
	if clientID == "" {
		respondError(w, http.StatusBadRequest, "missing_client_id", "query parameter client_id is required")
		return
	}

	sess, err := s.subscribe(clientID, lang)
	if err != nil {
		respondError(w, http.StatusBadRequest, "subscribe_failed", err.Error())
		return
	}
	defer s.detach(sess)

	sse, err := stream.NewSSEWriter(w, frameWriteTimeout)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", err.Error())
		return
	}
	s.finishTranslationStream(sess, stream.Translations(r.Context(), sess, sse, s.streamOptions()))
}

func (s *Server) handleTranslationWS(w http.ResponseWriter, r *http.Request) {
	lang, clientID, code, msg := translationTarget(r)
	if code != "" {
		respondError(w, http.StatusBadRequest, code, msg)
		return
	}
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sess, err := s.subscribe(clientID, lang)
	if err != nil {
		_ = conn.WriteJSON(errorResponse{Error: err.Error(), Code: "subscribe_failed"})
		return
	}
	defer s.detach(sess)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Viewers never send data; reading only detects the peer going away.
	conn.SetReadLimit(4 << 10)
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	reason := stream.Translations(ctx, sess, stream.NewWSWriter(conn, frameWriteTimeout), s.streamOptions())
	s.finishTranslationStream(sess, reason)
}

func (s *Server) subscribe(clientID, lang string) (*session.Session, error) {
	sess, existed, err := s.registry.Subscribe(clientID, lang)
	if err != nil {
		return nil, err
	}
	if existed {
		s.metrics.SessionEvent("resubscribed")
	} else {
		s.metrics.SessionEvent("subscribed")
	}
	return sess, nil
}

func (s *Server) detach(sess *session.Session) {
	if s.registry.Detach(sess) {
		s.metrics.SessionEvent("removed")
	}
}

func (s *Server) finishTranslationStream(sess *session.Session, reason stream.Reason) {
	if reason == stream.ReasonIdle {
		s.metrics.SessionEvent("idle_timeout")
		s.logger.Info("client inactive, closing stream", "client_id", sess.ID)
		return
	}
	s.logger.Debug("translation stream closed", "client_id", sess.ID, "reason", reason)
}
