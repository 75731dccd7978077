package device

import (
	"errors"
	"net/http"
	"time"

	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/common"
	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/validation"
)

// StatePending is reported for attempts that are still polling
const StatePending = "pending"

// AttemptResponse describes an attempt to API clients. The device code and
// access token are never included.
type AttemptResponse struct {
	ID                      string    `json:"id"`
	UserCode                string    `json:"user_code"`
	VerificationURI         string    `json:"verification_uri"`
	VerificationURIComplete string    `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int       `json:"expires_in"`
	Interval                int       `json:"interval"`
	StartedAt               time.Time `json:"started_at"`
	State                   string    `json:"state"`
	Message                 string    `json:"message,omitempty"`
	Guidance                string    `json:"guidance,omitempty"`
}

// NewAttemptResponse builds the API view of a
func NewAttemptResponse(a Attempt) AttemptResponse {
	resp := AttemptResponse{
		ID:                      a.ID,
		UserCode:                validation.FormatCode(a.Start.UserCode),
		VerificationURI:         a.Start.VerificationURI,
		VerificationURIComplete: a.Start.VerificationURIComplete,
		ExpiresIn:               a.Start.ExpiresInSec,
		Interval:                a.Start.IntervalSec,
		StartedAt:               a.StartedAt,
		State:                   StatePending,
	}
	if a.Outcome != nil {
		resp.State = a.Outcome.Kind.String()
		resp.Message = a.Outcome.Message
		resp.Guidance = string(a.Outcome.Guidance())
	}
	return resp
}

// Handler starts and cancels background authentication attempts
type Handler struct {
	tracker *Tracker
}

// New creates a new attempt handler
func New(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

// Start handles POST requests beginning a new attempt
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	a, err := h.tracker.Begin(r.Context())
	if err != nil {
		var initErr *deviceflow.InitiationError
		switch {
		case errors.Is(err, ErrAttemptInProgress):
			common.WriteError(w, http.StatusConflict, "attempt_in_progress", err.Error())
		case deviceflow.IsConfigurationError(err):
			common.WriteError(w, http.StatusInternalServerError, "configuration_error", err.Error())
		case errors.As(err, &initErr):
			common.WriteError(w, http.StatusBadGateway, "initiation_failed", initErr.Message)
		default:
			common.WriteError(w, http.StatusInternalServerError, "server_error", "Failed to start authentication")
		}
		return
	}

	common.WriteJSON(w, http.StatusAccepted, NewAttemptResponse(a))
}

// Cancel handles DELETE requests stopping the attempt in flight
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	a, err := h.tracker.Cancel(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoAttempt) {
			common.WriteError(w, http.StatusNotFound, "no_attempt", err.Error())
			return
		}
		common.WriteError(w, http.StatusServiceUnavailable, "server_error", "Timed out waiting for the attempt to stop")
		return
	}

	common.WriteJSON(w, http.StatusOK, NewAttemptResponse(a))
}
