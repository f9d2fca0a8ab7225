package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
	"restaurant-billing/internal/microservices/tab/service"
)

type Handler struct {
	TabHandler        *TabHandler
	SettlementHandler *SettlementHandler
	ApprovalHandler   *ApprovalHandler
	LoyaltyHandler    *LoyaltyHandler
	CatalogHandler    *CatalogHandler
	log               *logger.Logger
}

func New(s *service.Service, catalog ledger.Catalog, log *logger.Logger) *Handler {
	return &Handler{
		TabHandler:        NewTabHandler(s.Tab),
		SettlementHandler: NewSettlementHandler(s.Settlement),
		ApprovalHandler:   NewApprovalHandler(s.Approval),
		LoyaltyHandler:    NewLoyaltyHandler(s.Loyalty),
		CatalogHandler:    NewCatalogHandler(catalog),
		log:               log,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1", func(r chi.Router) {
		h.TabHandler.RegisterRoutes(r)
		h.SettlementHandler.RegisterRoutes(r)
		h.ApprovalHandler.RegisterRoutes(r)
		h.LoyaltyHandler.RegisterRoutes(r)
		h.CatalogHandler.RegisterRoutes(r)
	})
	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("http_request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
	})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	httpx.WriteProblem(w, http.StatusBadRequest, "invalid_json", err.Error())
	return false
}

// normalizeActor accepts role aliases such as "gerente".
func normalizeActor(a domain.Actor) domain.Actor {
	if r, ok := domain.ParseRole(string(a.Role)); ok {
		a.Role = r
	}
	return a
}
