// handlers/issuance_handler.go
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

// IssueAsset starts the signing-gated handover of an available asset.
func IssueAsset(w http.ResponseWriter, r *http.Request) {
	var in workflow.IssueInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	issuance, asset, err := coordinator.Issue(ctx, actorFromContext(r), in)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"issuance": issuance,
		"asset":    asset,
	})
}

type signRequest struct {
	DocumentType string            `json:"documentType"`
	FormData     map[string]string `json:"formData"`
	Signature    string            `json:"signature"`
}

// SignDocument records one compliance signature; the last required one
// activates the issuance.
func SignDocument(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid issuance id")
		return
	}

	var req signRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.DocumentType == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "documentType is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	issuance, asset, err := coordinator.SignDocument(ctx, actorFromContext(r), id, req.DocumentType, req.FormData, req.Signature)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"issuance": issuance,
		"asset":    asset,
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelIssuance aborts an issuance still waiting on signatures.
func CancelIssuance(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid issuance id")
		return
	}

	var req cancelRequest
	if err := utils.ParseJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	issuance, asset, err := coordinator.CancelIssuance(ctx, actorFromContext(r), id, req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"issuance": issuance,
		"asset":    asset,
	})
}

func GetIssuance(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid issuance id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	issuance, err := coordinator.GetIssuance(ctx, id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, issuance)
}

func ListIssuances(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	f := store.IssuanceFilter{Status: r.URL.Query().Get("status")}

	issuances, err := coordinator.ListIssuances(ctx, f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if issuances == nil {
		issuances = []models.Issuance{}
	}
	utils.RespondWithJSON(w, http.StatusOK, issuances)
}

// ListPendingSignatures serves the polling projection of issuances still
// waiting on signatures, oldest first, with the overdue flag computed now.
func ListPendingSignatures(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pending, err := monitor.ListPending(ctx, time.Now().UTC())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, pending)
}

// ListIssuanceSignatures returns the evidentiary signature records of one
// issuance. Read-only; the records themselves never change.
func ListIssuanceSignatures(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid issuance id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	sigs, err := signing.Signatures(ctx, id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if sigs == nil {
		sigs = []models.SignatureRecord{}
	}
	utils.RespondWithJSON(w, http.StatusOK, sigs)
}
