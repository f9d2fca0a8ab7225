package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

type CatalogHandler struct {
	catalog ledger.Catalog
}

func NewCatalogHandler(c ledger.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Put("/products/{product_id}", h.Upsert)
}

func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *CatalogHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !decode(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "product_id")
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		httpx.WriteError(w, domain.Validation("name", p.ID, "name is required"))
		return
	case p.Price.IsNegative():
		httpx.WriteError(w, domain.Validation("price", p.ID, "price must not be negative"))
		return
	case p.PointsCost < 0:
		httpx.WriteError(w, domain.Validation("points_cost", p.ID, "points cost must not be negative"))
		return
	}
	if err := h.catalog.UpsertProduct(r.Context(), p); err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}
