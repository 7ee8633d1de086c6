package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/deeds-tracker/internal/async"
	"github.com/joseph-ayodele/deeds-tracker/internal/common"
)

// envelope is the JSON body of every API response. Data is null on failure.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Code: code})
}

// handleError maps an error onto a status code and a message safe to show clients.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log(r)
	switch {
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		log.Info("server.request.rejected", zap.Error(err))
		writeFailure(w, http.StatusBadRequest, "INVALID_INPUT", common.PublicMessage(err, "invalid request"))
	case errors.Is(err, common.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "NOT_FOUND", common.PublicMessage(err, "not found"))
	case errors.Is(err, async.ErrQueueClosed), errors.Is(err, common.ErrUnavailable):
		log.Warn("server.request.unavailable", zap.Error(err))
		writeFailure(w, http.StatusServiceUnavailable, "UNAVAILABLE", common.PublicMessage(err, "service unavailable"))
	default:
		log.Error("server.request.failed", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, appCode(err, "INTERNAL_ERROR"), common.PublicMessage(err, "internal error"))
	}
}

func appCode(err error, fallback string) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return fallback
}
