package api

import (
	"net/http"

	"github.com/starpath-app/starpath/internal/app/engagement"
	"github.com/starpath-app/starpath/internal/app/tracker"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.tracker.Profiles.Get(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile":            p,
		"xp_to_next_level":   p.XPToNextLevel(),
		"level_progress_pct": engagement.LevelProgressPct(p),
		"level_xp":           engagement.CumulativeXP(p),
	})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	list, err := s.tracker.Profiles.Achievements(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"achievements": list})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	s.writeDrift(w, r)(s.tracker.Profiles.Verify(r.Context(), userID(r)))
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	s.writeDrift(w, r)(s.tracker.Profiles.Repair(r.Context(), userID(r)))
}

func (s *Server) writeDrift(w http.ResponseWriter, r *http.Request) func([]tracker.Drift, error) {
	return func(drifts []tracker.Drift, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if drifts == nil {
			drifts = []tracker.Drift{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"drift": drifts})
	}
}
