// handlers/audit_handler.go
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/models"
	"assettrack/store"
	"assettrack/utils"
)

// ListAuditLogs returns recent audit entries, newest first.
func ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := int64(50)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 1 || n > 100 {
			n = 50
		}
		limit = n
	}

	f := store.AuditFilter{
		ResourceType: r.URL.Query().Get("resourceType"),
		Action:       r.URL.Query().Get("action"),
	}
	if s := r.URL.Query().Get("resourceId"); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "invalid resource id")
			return
		}
		f.ResourceID = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logs, err := recorder.Recent(ctx, limit, f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	utils.RespondWithJSON(w, http.StatusOK, logs)
}
