package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.tracker.Goals.ListGoals(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if goals == nil {
		goals = []domain.Goal{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"goals": goals})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var in tracker.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	g, err := s.tracker.Goals.CreateGoal(r.Context(), userID(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.tracker.Goals.GetGoal(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var patch tracker.GoalPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	s.goalResult(w, r, http.StatusOK)(s.tracker.Goals.UpdateGoal(r.Context(), userID(r), chi.URLParam(r, "id"), patch))
}

func (s *Server) handleArchiveGoal(w http.ResponseWriter, r *http.Request) {
	s.goalResult(w, r, http.StatusOK)(s.tracker.Goals.ArchiveGoal(r.Context(), userID(r), chi.URLParam(r, "id")))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Goals.DeleteGoal(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var in tracker.TaskInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	s.goalResult(w, r, http.StatusCreated)(s.tracker.Goals.AddTask(r.Context(), userID(r), chi.URLParam(r, "id"), in))
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch tracker.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	s.goalResult(w, r, http.StatusOK)(s.tracker.Goals.UpdateTask(r.Context(), userID(r),
		chi.URLParam(r, "id"), chi.URLParam(r, "taskID"), patch))
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.goalResult(w, r, http.StatusOK)(s.tracker.Goals.DeleteTask(r.Context(), userID(r),
		chi.URLParam(r, "id"), chi.URLParam(r, "taskID")))
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	s.goalResult(w, r, http.StatusOK)(s.tracker.Goals.ToggleTask(r.Context(), userID(r),
		chi.URLParam(r, "id"), chi.URLParam(r, "taskID")))
}

// goalResult writes the result of a goal mutation.
func (s *Server) goalResult(w http.ResponseWriter, r *http.Request, status int) func(tracker.GoalResult, error) {
	return func(res tracker.GoalResult, err error) {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, status, res)
	}
}
