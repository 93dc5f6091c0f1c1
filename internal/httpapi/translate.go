package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/ent0n29/babel/internal/gate"
	"github.com/ent0n29/babel/internal/pipeline"
	"github.com/ent0n29/babel/internal/translate"
)

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			// An empty body is an incomplete request, answered like any other no-op.
			respondJSON(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	_, err := s.pipeline.Translate(r.Context(), req)
	switch {
	case err == nil, errors.Is(err, pipeline.ErrInvalidRequest):
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
	case errors.Is(err, translate.ErrUnsupportedLanguage):
		respondError(w, http.StatusBadRequest, "unsupported_language", err.Error())
	case errors.Is(err, gate.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, context.Canceled):
		// The caller went away; nothing useful can be written.
		s.logger.Debug("translation request canceled", "client_id", req.ClientID)
	default:
		s.logger.Error("translation endpoint error", "client_id", req.ClientID, "err", err)
		respondError(w, http.StatusInternalServerError, "translation_unavailable", err.Error())
	}
}
