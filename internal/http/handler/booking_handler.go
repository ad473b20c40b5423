package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/podworks/pod-access-service/internal/http/middleware"
	"github.com/podworks/pod-access-service/internal/http/response"
	"github.com/podworks/pod-access-service/internal/observability"
	"github.com/podworks/pod-access-service/internal/payments"
	"github.com/podworks/pod-access-service/internal/repository"
	"github.com/podworks/pod-access-service/internal/service"
)

type BookingHandler struct {
	bookings service.Booking
	logger   *slog.Logger
}

func NewBookingHandler(bookings service.Booking, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

type setupIntentRequest struct {
	PodID string `json:"pod_id"`
}

func (h *BookingHandler) SetupIntent(w http.ResponseWriter, r *http.Request) {
	var req setupIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PodID == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "pod_id is required", nil)
		return
	}

	res, err := h.bookings.CreateSetupIntent(r.Context(), req.PodID)
	if err != nil {
		if errors.Is(err, repository.ErrPodNotFound) {
			response.Error(w, r, http.StatusNotFound, "POD_NOT_FOUND", "unknown pod", nil)
			return
		}
		h.logger.ErrorContext(r.Context(), "create setup intent failed", slog.String("error", err.Error()))
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not create setup intent", nil)
		return
	}

	response.JSON(w, r, http.StatusOK, map[string]string{
		"client_secret":      res.ClientSecret,
		"provisioning_token": res.ProvisioningToken,
	})
}

func (h *BookingHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	payload, ok := middleware.PayloadFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing token", nil)
		return
	}

	token, err := h.bookings.FinalizeBooking(r.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSetupIntentNotSucceeded):
			response.Error(w, r, http.StatusConflict, "SETUP_INTENT_NOT_SUCCEEDED", "payment setup has not succeeded", nil)
		case errors.Is(err, service.ErrMalformedPayload):
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "token payload incomplete", nil)
		case errors.Is(err, payments.ErrSetupIntentNotFound):
			response.Error(w, r, http.StatusNotFound, "SETUP_INTENT_NOT_FOUND", "unknown setup intent", nil)
		default:
			h.logger.ErrorContext(r.Context(), "finalize booking failed", slog.String("error", err.Error()))
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not finalize booking", nil)
		}
		return
	}

	observability.Audit(r, "booking.finalized")
	response.JSON(w, r, http.StatusOK, map[string]string{"session_token": token})
}

func (h *BookingHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}

	if err := h.bookings.EndSession(r.Context(), sessionID); err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			response.Error(w, r, http.StatusNotFound, "SESSION_NOT_FOUND", "unknown session", nil)
		case errors.Is(err, repository.ErrSessionAlreadyClosed):
			response.Error(w, r, http.StatusConflict, "SESSION_ALREADY_ENDED", "session already ended", nil)
		default:
			h.logger.ErrorContext(r.Context(), "end session failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not end session", nil)
		}
		return
	}

	observability.Audit(r, "session.ended", "session_id", sessionID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "ended"})
}
