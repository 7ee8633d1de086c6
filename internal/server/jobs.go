package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
)

// getJob handles GET /transactions/jobs/{id}.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v := common.NewValidator().Field("id", id, common.UUID)
	if err := v.Err(); err != nil {
		s.handleError(w, r, err)
		return
	}
	if s.jobs == nil {
		s.handleError(w, r, common.NewAppError("NOT_FOUND", "job not found", common.ErrNotFound))
		return
	}
	job, ok := s.jobs.Get(id)
	if !ok {
		s.handleError(w, r, common.NewAppError("NOT_FOUND", "job not found", common.ErrNotFound))
		return
	}
	writeOK(w, http.StatusOK, "job "+string(job.Status), job)
}
