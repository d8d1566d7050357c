// handlers/services.go
package handlers

import (
	"errors"
	"log"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/apperr"
	"assettrack/store"
	"assettrack/utils"
	"assettrack/workflow"
)

var (
	registry    *workflow.Registry
	coordinator *workflow.Coordinator
	signing     *workflow.Signing
	monitor     *workflow.Monitor
	recorder    *workflow.Recorder
	userStore   store.Store
)

// InitServices wires the workflow services in. Call once from main before
// registering routes.
func InitServices(st store.Store, reg *workflow.Registry, coord *workflow.Coordinator, sign *workflow.Signing, mon *workflow.Monitor, rec *workflow.Recorder) {
	userStore = st
	registry = reg
	coordinator = coord
	signing = sign
	monitor = mon
	recorder = rec
}

// actorFromContext rebuilds the acting user from the context values the auth
// middleware installed.
func actorFromContext(r *http.Request) workflow.Actor {
	actor := workflow.Actor{}
	if s, ok := r.Context().Value("userID").(string); ok {
		if id, err := primitive.ObjectIDFromHex(s); err == nil {
			actor.ID = id
		}
	}
	if s, ok := r.Context().Value("userName").(string); ok {
		actor.Name = s
	}
	if s, ok := r.Context().Value("userRole").(string); ok {
		actor.Role = s
	}
	return actor
}

// respondDomainError maps the error taxonomy onto HTTP statuses. Validation,
// not-found and state conflicts carry their specific message; outages and
// integrity failures answer generically and log the detail server-side.
func respondDomainError(w http.ResponseWriter, err error) {
	var vErr *apperr.ValidationError
	switch {
	case errors.As(err, &vErr):
		utils.RespondWithError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, apperr.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrDuplicateAssetTag):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrAlreadySigned):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrUnavailable):
		log.Printf("dependency unavailable: %v", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "service temporarily unavailable, please retry")
	default:
		log.Printf("internal error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
