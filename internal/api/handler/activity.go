package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/chargewatch/chargewatch/internal/activity"
	"github.com/chargewatch/chargewatch/internal/api/response"
)

// ActivityHandler handles live-activity session endpoints.
//
// These endpoints speak plain text rather than JSON: the companion app treats
// any 200 as success and ignores the body, so successful calls return an
// empty body and failures return a short diagnostic line.
type ActivityHandler struct {
	registry *activity.Registry
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(registry *activity.Registry) *ActivityHandler {
	return &ActivityHandler{registry: registry}
}

// Register handles POST /v1/live-activities/register.
// It opens a polling session for the device's live activity, replacing any
// existing session with the same identifier.
func (h *ActivityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registration activity.Registration
	if err := json.NewDecoder(r.Body).Decode(&registration); err != nil {
		response.Text(w, r, http.StatusBadRequest, "invalid registration payload")
		return
	}

	if _, err := h.registry.Register(r.Context(), registration); err != nil {
		if errors.Is(err, activity.ErrMissingIdentifier) || errors.Is(err, activity.ErrMissingPushToken) {
			response.Text(w, r, http.StatusBadRequest, err.Error())
			return
		}
		response.Text(w, r, http.StatusInternalServerError, "registration failed")
		return
	}

	response.Text(w, r, http.StatusOK, "")
}

// Dismiss handles POST /v1/live-activities/dismiss.
// Dismissing an unknown identifier is a successful no-op: the activity may
// already have ended on its own.
func (h *ActivityHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	var termination activity.Termination
	if err := json.NewDecoder(r.Body).Decode(&termination); err != nil {
		response.Text(w, r, http.StatusBadRequest, "invalid dismissal payload")
		return
	}
	if termination.Identifier == "" {
		response.Text(w, r, http.StatusBadRequest, activity.ErrMissingIdentifier.Error())
		return
	}

	h.registry.Terminate(r.Context(), termination.Identifier)
	response.Text(w, r, http.StatusOK, "")
}

// Count handles GET /v1/live-activities/count.
// Returns the number of active sessions as a bare decimal.
func (h *ActivityHandler) Count(w http.ResponseWriter, r *http.Request) {
	response.Text(w, r, http.StatusOK, strconv.Itoa(h.registry.Count()))
}
