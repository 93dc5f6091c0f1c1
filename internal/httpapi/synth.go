package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ent0n29/babel/internal/synth"
)

type synthesizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	wav, err := s.synth.Speak(r.Context(), req.Text, req.Language)
	if err != nil {
		var se *synth.SynthesisError
		switch {
		case errors.Is(err, synth.ErrEmptyText):
			respondError(w, http.StatusBadRequest, "missing_text", "No text provided")
		case errors.Is(err, synth.ErrUnsupportedLanguage):
			respondError(w, http.StatusBadRequest, "unsupported_language", "Unsupported language")
		case errors.As(err, &se):
			respondJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Speech synthesis failed",
				Code:    "synthesis_failed",
				Details: se.Detail,
			})
		default:
			respondError(w, http.StatusInternalServerError, "synthesis_error", err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", "attachment; filename=speech.wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}
