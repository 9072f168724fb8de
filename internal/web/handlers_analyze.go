package web

import (
	"net/http"
)

// handleAnalyze accepts a multipart upload and returns the analysis.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.Analyze(ctx, up)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListModels lists the provider's models.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.service.ListModels(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// handleStatus reports limiter and session counts.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}
