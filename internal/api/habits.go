package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
)

// completionView is a ledger entry with its calendar day spelled out.
type completionView struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	Day       string    `json:"day"`
	XPAwarded int64     `json:"xp_awarded"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := s.tracker.Habits.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if habits == nil {
		habits = []domain.Habit{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"habits": habits})
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var in tracker.HabitInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	h, err := s.tracker.Habits.Create(r.Context(), userID(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleGetHabit(w http.ResponseWriter, r *http.Request) {
	h, err := s.tracker.Habits.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	var patch tracker.HabitPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	h, err := s.tracker.Habits.Update(r.Context(), userID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Habits.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCompletions(w http.ResponseWriter, r *http.Request) {
	events, err := s.tracker.Habits.Completions(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]completionView, 0, len(events))
	for _, e := range events {
		out = append(out, completionView{
			ID:        e.ID,
			HabitID:   e.HabitID,
			Day:       e.DayString(),
			XPAwarded: e.XPAwarded,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"completions": out})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.changeCompletion(w, r, chi.URLParam(r, "day"), s.tracker.Habits.Complete)
}

func (s *Server) handleUncomplete(w http.ResponseWriter, r *http.Request) {
	s.changeCompletion(w, r, chi.URLParam(r, "day"), s.tracker.Habits.Uncomplete)
}

func (s *Server) handleToggleHabit(w http.ResponseWriter, r *http.Request) {
	s.changeCompletion(w, r, r.URL.Query().Get("day"), s.tracker.Habits.Toggle)
}

type completionFunc func(ctx context.Context, userID, habitID string, day time.Time) (tracker.ToggleResult, error)

func (s *Server) changeCompletion(w http.ResponseWriter, r *http.Request, dayParam string, fn completionFunc) {
	day, err := s.parseDay(dayParam)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := fn(r.Context(), userID(r), chi.URLParam(r, "id"), day)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseDay accepts YYYY-MM-DD, or "" and "today" for the current UTC day.
func (s *Server) parseDay(v string) (time.Time, error) {
	if v == "" || v == "today" {
		return domain.Day(s.now()), nil
	}
	return domain.ParseDay(v)
}
