package gateway

import (
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/claybowl/taygency/internal/storage"
	"github.com/claybowl/taygency/internal/tasks"
)

type taskList struct {
	Tasks []*tasks.Task `json:"tasks"`
	Count int           `json:"count"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := tasks.ListFilter{Category: q.Get("category")}
	if v := q.Get("status"); v != "" {
		status := tasks.Status(v)
		if !slices.Contains(tasks.Statuses, status) {
			writeError(w, http.StatusBadRequest, "invalid status: "+v)
			return
		}
		filter.Status = status
	}

	list, err := s.tasks.List(r.Context(), filter)
	if err != nil {
		writeError(w, storageStatus(err), err.Error())
		return
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	writeJSON(w, http.StatusOK, taskList{Tasks: list, Count: len(list)})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, storageStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if s.traces == nil {
		writeError(w, http.StatusServiceUnavailable, "trace persistence disabled")
		return
	}
	doc, err := s.traces.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, storageStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// storageStatus maps store errors to HTTP statuses.
func storageStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, tasks.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, storage.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
