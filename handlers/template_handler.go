// handlers/template_handler.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"assettrack/models"
	"assettrack/utils"
)

func GetTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	t, err := signing.Template(ctx, mux.Vars(r)["type"])
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, t)
}

func ListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	templates, err := signing.ListTemplates(ctx)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if templates == nil {
		templates = []models.DocumentTemplate{}
	}
	utils.RespondWithJSON(w, http.StatusOK, templates)
}
