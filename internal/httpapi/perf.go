package httpapi

import "net/http"

func (s *Server) handlePerfTranslation(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.StageSnapshot())
}
