package status

import (
	"net/http"

	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/common"
	"github.com/wrale/oauth2-device-client/cmd/oauth2-device-client/handlers/device"
)

// Signal reports the current authentication state
type Signal interface {
	Authenticated() bool
}

// Response is the authentication status body
type Response struct {
	Authenticated bool                    `json:"authenticated"`
	Attempt       *device.AttemptResponse `json:"attempt,omitempty"`
}

// Handler reports whether a token is stored and the latest attempt
type Handler struct {
	signal  Signal
	tracker *device.Tracker
}

// New creates a new status handler
func New(signal Signal, tracker *device.Tracker) *Handler {
	return &Handler{signal: signal, tracker: tracker}
}

// ServeHTTP handles status requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := Response{Authenticated: h.signal.Authenticated()}
	if a, ok := h.tracker.Latest(); ok {
		view := device.NewAttemptResponse(a)
		resp.Attempt = &view
	}
	common.WriteJSON(w, http.StatusOK, resp)
}
