// handlers/dashboard_handler.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"assettrack/utils"
)

// GetDashboardOverview returns the asset counts grouped by status, type and
// department. Pure read, recomputed on every call.
func GetDashboardOverview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	counts, err := registry.DashboardAggregates(ctx)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, counts)
}
