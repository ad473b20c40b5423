package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/http/middleware"
	"github.com/podworks/pod-access-service/internal/http/response"
	"github.com/podworks/pod-access-service/internal/repository"
	"github.com/podworks/pod-access-service/internal/service"
)

type SessionHandler struct {
	sessions service.SessionReader
	logger   *slog.Logger
}

func NewSessionHandler(sessions service.SessionReader, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

func (h *SessionHandler) ProvisioningStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}

	status, err := h.sessions.ProvisioningStatus(r.Context(), sessionID)
	if err != nil {
		h.writeReadError(w, r, sessionID, "provisioning status", err)
		return
	}

	data := map[string]any{"status": string(status.Status)}
	if status.Status == domain.ProvisionReady {
		data["access_code"] = status.AccessCode
	}
	response.JSON(w, r, http.StatusOK, data)
}

type sessionResponse struct {
	SessionID  string     `json:"session_id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	AccessCode string     `json:"access_code,omitempty"`
	PodName    string     `json:"pod_name"`
	Address    string     `json:"address"`
}

func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}

	view, err := h.sessions.Session(r.Context(), sessionID)
	if err != nil {
		h.writeReadError(w, r, sessionID, "session", err)
		return
	}

	response.JSON(w, r, http.StatusOK, sessionResponse{
		SessionID:  view.SessionID,
		StartTime:  view.StartTime,
		EndTime:    view.EndTime,
		AccessCode: view.AccessCode,
		PodName:    view.PodName,
		Address:    view.Address,
	})
}

func (h *SessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}

	cost, err := h.sessions.CostPreview(r.Context(), sessionID)
	if err != nil {
		h.writeReadError(w, r, sessionID, "cost preview", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]float64{"cost": cost})
}

func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}

	done, err := h.sessions.Complete(r.Context(), sessionID)
	if err != nil {
		h.writeReadError(w, r, sessionID, "completion check", err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]bool{"complete": done})
}

func (h *SessionHandler) Pod(w http.ResponseWriter, r *http.Request) {
	podID := r.URL.Query().Get("pod_id")
	if podID == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "pod_id is required", nil)
		return
	}

	pod, err := h.sessions.Pod(r.Context(), podID)
	if err != nil {
		if errors.Is(err, repository.ErrPodNotFound) {
			response.Error(w, r, http.StatusNotFound, "POD_NOT_FOUND", "unknown pod", nil)
			return
		}
		h.logger.ErrorContext(r.Context(), "pod lookup failed",
			slog.String("pod_id", podID),
			slog.String("error", err.Error()))
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not load pod", nil)
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]any{
		"id":               pod.ID,
		"name":             pod.Name,
		"address":          pod.Address,
		"price_per_minute": pod.PricePerMinute,
		"in_use":           pod.InUse,
	})
}

func (h *SessionHandler) writeReadError(w http.ResponseWriter, r *http.Request, sessionID, what string, err error) {
	switch {
	case errors.Is(err, repository.ErrSessionNotFound), errors.Is(err, repository.ErrProvisioningNotFound):
		response.Error(w, r, http.StatusNotFound, "SESSION_NOT_FOUND", "unknown session", nil)
	default:
		h.logger.ErrorContext(r.Context(), what+" failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not load "+what, nil)
	}
}
