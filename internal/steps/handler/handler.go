package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soyYisus/jaak-kyc-demo/internal/steps"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/httputil"
	pkgstrings "github.com/soyYisus/jaak-kyc-demo/pkg/platform/strings"
)

// CatalogResponse lists the known steps. Missing is set when the request
// carried a selection, keyed by step with the dependencies it lacks.
type CatalogResponse struct {
	Steps   []steps.Step              `json:"steps"`
	Missing map[steps.Key][]steps.Key `json:"missing,omitempty"`
}

// Handler serves the step catalogue.
type Handler struct{}

func New() *Handler {
	return &Handler{}
}

// Register registers the catalogue route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/steps", h.handleCatalog)
}

// handleCatalog accepts an optional comma separated ?selected= list.
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	resp := CatalogResponse{Steps: steps.Catalog()}
	if raw := r.URL.Query().Get("selected"); raw != "" {
		selection := steps.Keys(pkgstrings.DedupeAndTrim(strings.Split(raw, ",")))
		resp.Missing = steps.MissingDependencies(selection)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
