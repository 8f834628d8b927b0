package rest

import (
	"net/http"

	"github.com/bibbank/loginrisk/internal/application/usecase"
)

// GuardHandler exposes the safety guard state to dashboards. It is read-only;
// resets go through the authenticated gRPC API.
type GuardHandler struct {
	getGuardState *usecase.GetGuardState
}

// NewGuardHandler creates a new guard status handler.
func NewGuardHandler(getGuardState *usecase.GetGuardState) *GuardHandler {
	return &GuardHandler{getGuardState: getGuardState}
}

// RegisterRoutes registers the guard endpoint on the provided ServeMux.
func (h *GuardHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/guard", h.Status)
}

// Status writes the current guard state.
func (h *GuardHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.getGuardState.Execute(r.Context()))
}
