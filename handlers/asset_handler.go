// handlers/asset_handler.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/models"
	"assettrack/store"
	"assettrack/utils"
	"assettrack/workflow"
)

// CreateAsset registers a new asset; the business key is generated
// server-side from the asset type.
func CreateAsset(w http.ResponseWriter, r *http.Request) {
	var in workflow.AssetInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	asset, err := registry.CreateAsset(ctx, actorFromContext(r), in)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, asset)
}

// ListAssets returns assets ordered by business key, with optional
// status/type/department/search filters from the query string.
func ListAssets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	f := store.AssetFilter{
		Status:     r.URL.Query().Get("status"),
		Type:       r.URL.Query().Get("type"),
		Department: r.URL.Query().Get("department"),
		Search:     r.URL.Query().Get("search"),
	}

	assets, err := registry.ListAssets(ctx, f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	utils.RespondWithJSON(w, http.StatusOK, assets)
}

func GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	asset, err := registry.GetAsset(ctx, id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, asset)
}

func UpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	var upd workflow.AssetUpdate
	if err := utils.ParseJSON(r, &upd); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	asset, err := registry.UpdateAsset(ctx, actorFromContext(r), id, upd)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, asset)
}

func DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := registry.DeleteAsset(ctx, actorFromContext(r), id); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "asset deleted"})
}

// ReturnAsset closes the active issuance and frees the asset.
func ReturnAsset(w http.ResponseWriter, r *http.Request) {
	tag := mux.Vars(r)["tag"]

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	issuance, asset, err := coordinator.ReturnAsset(ctx, actorFromContext(r), tag)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"issuance": issuance,
		"asset":    asset,
	})
}
