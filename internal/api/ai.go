package api

import (
	"net/http"

	"github.com/starpath-app/starpath/internal/app/aigen"
)

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.gen == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "content generation is not configured")
		return
	}
	var req aigen.Request
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.gen.Generate(r.Context(), userID(r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
