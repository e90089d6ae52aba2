package handlers

import (
	"net/http"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/middleware"
)

// Realtime upgrades an authenticated request to the owner's event stream.
func (a *App) Realtime(w http.ResponseWriter, r *http.Request) {
	if a.Hub == nil {
		a.error(w, http.StatusServiceUnavailable, "realtime_disabled", "realtime delivery is not enabled")
		return
	}
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	a.Hub.Serve(w, r, userID)
}
