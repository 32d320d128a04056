// Package httpapi exposes the admin panel's JSON API: per-collection CRUD,
// the purchase/sale/transfer workflows and the reward endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"distrigo/backend/internal/domain"
	"distrigo/backend/internal/service"
	"distrigo/backend/internal/store"
)

type API struct {
	service       *service.Service
	repo          store.Repository
	allowedOrigin string
	log           *zap.Logger
}

func New(svc *service.Service, repo store.Repository, allowedOrigin string, log *zap.Logger) *API {
	return &API{
		service:       svc,
		repo:          repo,
		allowedOrigin: allowedOrigin,
		log:           log,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	registerResource(mux, a, "regionals", a.repo.Regionals(), resourceOptions[domain.Regional]{})
	registerResource(mux, a, "territories", a.repo.Territories(), resourceOptions[domain.Territory]{})
	registerResource(mux, a, "areas", a.repo.Areas(), resourceOptions[domain.Area]{})
	registerResource(mux, a, "suppliers", a.repo.Suppliers(), resourceOptions[domain.Supplier]{
		guard: a.service.CheckSupplier,
	})
	registerResource(mux, a, "stores", a.repo.Stores(), resourceOptions[domain.Store]{})
	registerResource(mux, a, "customers", a.repo.Customers(), resourceOptions[domain.Customer]{
		guard: a.service.CheckCustomer,
	})
	registerResource(mux, a, "products", a.repo.Products(), resourceOptions[domain.Product]{})
	registerResource(mux, a, "reward-settings", a.repo.RewardSettings(), resourceOptions[domain.RewardSetting]{
		guard: a.service.CheckRewardSetting,
	})

	// Ledger history collections are immutable through the API; their POSTs
	// run the workflows instead.
	registerResource(mux, a, "purchases", a.repo.Purchases(), resourceOptions[domain.Purchase]{
		readOnly: true,
		post:     a.handleRecordPurchase,
	})
	registerResource(mux, a, "sales", a.repo.Sales(), resourceOptions[domain.Sale]{
		readOnly: true,
		post:     a.handleRecordSale,
	})
	registerResource(mux, a, "stock-transfers", a.repo.Transfers(), resourceOptions[domain.StockTransfer]{
		readOnly: true,
		post:     a.handleRecordTransfer,
	})
	registerResource(mux, a, "units", a.repo.Units(), resourceOptions[domain.ProductUnit]{readOnly: true})
	registerResource(mux, a, "placements", a.repo.Placements(), resourceOptions[domain.UnitPlacement]{readOnly: true})

	mux.HandleFunc("/api/v1/units/by-code/", a.handleUnitByCode)
	mux.HandleFunc("/api/v1/rewards/generate/", a.handleGenerateRewards)
	mux.HandleFunc("/api/v1/rewards/pool/", a.handlePoolSummary)

	return a.middleware(mux)
}

func (a *API) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPut) &&
			strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(startedAt)))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleRecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req domain.PurchaseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, http.StatusBadRequest, err)
		return
	}
	purchase, err := a.service.RecordPurchase(r.Context(), req)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

func (a *API) handleRecordSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, http.StatusBadRequest, err)
		return
	}
	sale, err := a.service.RecordSale(r.Context(), req)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (a *API) handleRecordTransfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.log, w, http.StatusBadRequest, err)
		return
	}
	transfer, err := a.service.RecordTransfer(r.Context(), req)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transfer)
}

func (a *API) handleUnitByCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	secureCode := pathTail(r.URL.Path, "/api/v1/units/by-code/")
	if secureCode == "" {
		writeError(a.log, w, http.StatusNotFound, errors.New("missing secure code"))
		return
	}
	placement, err := a.service.UnitByCode(r.Context(), secureCode)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placement)
}

func (a *API) handleGenerateRewards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	productID := pathTail(r.URL.Path, "/api/v1/rewards/generate/")
	if productID == "" {
		writeError(a.log, w, http.StatusNotFound, errors.New("missing product id"))
		return
	}
	result, err := a.service.GenerateRewards(r.Context(), productID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handlePoolSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	productID := pathTail(r.URL.Path, "/api/v1/rewards/pool/")
	if productID == "" {
		writeError(a.log, w, http.StatusNotFound, errors.New("missing product id"))
		return
	}
	summary, err := a.service.PoolSummary(r.Context(), productID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(a.log, w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrValidation):
		writeError(a.log, w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrShortFulfillment):
		writeError(a.log, w, http.StatusConflict, err)
	default:
		writeError(a.log, w, http.StatusInternalServerError, err)
	}
}

// pathTail returns the single segment after prefix, empty when absent or
// when more segments follow.
func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	if tail == "" || strings.Contains(tail, "/") {
		return ""
	}
	return tail
}

// parseListOptions reads the shared list query surface. Every query parameter
// that is not one of the reserved keys becomes an equality filter.
func parseListOptions(r *http.Request) domain.ListOptions {
	q := r.URL.Query()
	opts := domain.ListOptions{
		Page:  parsePositiveInt(q.Get("page"), store.DefaultPage),
		Limit: parsePositiveInt(q.Get("limit"), store.DefaultLimit),
		Query: strings.TrimSpace(q.Get("q")),
		Sort:  strings.TrimSpace(q.Get("sort")),
	}
	for key, values := range q {
		switch key {
		case "page", "limit", "q", "sort":
			continue
		}
		if len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			if opts.Filters == nil {
				opts.Filters = map[string]string{}
			}
			opts.Filters[key] = values[0]
		}
	}
	return opts
}

func parsePositiveInt(raw string, fallback int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func writeError(log *zap.Logger, w http.ResponseWriter, status int, err error) {
	// 5xx detail stays in the log; the response carries a generic message.
	msg := err.Error()
	if status >= 500 {
		log.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
