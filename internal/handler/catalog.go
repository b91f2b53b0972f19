package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/adops/internal/catalog"
	"github.com/matthewbaird/adops/internal/types"
)

// CatalogHandler serves read-only catalog lists.
type CatalogHandler struct {
	catalog catalog.Catalog
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(c catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

type entityList struct {
	Items []types.Entity `json:"items"`
}

// HandleBrands lists brands.
// GET /api/catalog/brands
func (h *CatalogHandler) HandleBrands(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.FetchBrands(r.Context())
	h.writeList(w, r, items, err)
}

// HandlePlatforms lists platforms.
// GET /api/catalog/platforms
func (h *CatalogHandler) HandlePlatforms(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.FetchPlatforms(r.Context())
	h.writeList(w, r, items, err)
}

// HandleAccounts lists the accounts of a brand.
// GET /api/catalog/brands/{id}/accounts
func (h *CatalogHandler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.catalog.FetchAccounts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "CATALOG_UNAVAILABLE", err.Error())
		return
	}
	resp := struct {
		Items []types.Account `json:"items"`
	}{Items: accounts}
	if resp.Items == nil {
		resp.Items = []types.Account{}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *CatalogHandler) writeList(w http.ResponseWriter, r *http.Request, items []types.Entity, err error) {
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "CATALOG_UNAVAILABLE", err.Error())
		return
	}
	if items == nil {
		items = []types.Entity{}
	}
	writeJSON(w, r, http.StatusOK, entityList{Items: items})
}
