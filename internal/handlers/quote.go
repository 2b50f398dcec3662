package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	apperrors "github.com/valentingnt/investr-sub000/internal/errors"
	"github.com/valentingnt/investr-sub000/internal/models"
	"github.com/valentingnt/investr-sub000/internal/quote"
)

// QuoteService is the facade surface this handler exposes over HTTP.
type QuoteService interface {
	GetQuote(ctx context.Context, symbol string, class models.AssetClass, forceRefresh bool) (*models.QuoteResult, error)
	ProviderUsage() []models.ProviderUsage
	ClearCache(ctx context.Context) error
}

type QuoteHandler struct {
	service     QuoteService
	credentials *quote.CredentialStore
	logger      *zap.Logger
}

func NewQuoteHandler(service QuoteService, credentials *quote.CredentialStore, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{service: service, credentials: credentials, logger: logger}
}

// GET /api/quote?symbol=AAPL&class=equity&force=true
func (h *QuoteHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol := strings.TrimSpace(q.Get("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, apperrors.NewValidation("symbol", "is required"))
		return
	}
	class, err := models.ParseAssetClass(q.Get("class"))
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewValidation("class", err.Error()))
		return
	}
	force := q.Get("force") == "true"

	result, err := h.service.GetQuote(r.Context(), symbol, class, force)
	if err != nil {
		var verr *apperrors.ErrValidation
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, quote.ErrQuoteUnavailable):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, context.Canceled):
			// Client went away; nothing useful to write.
		default:
			h.logger.Error("quote request failed", zap.String("symbol", symbol), zap.Error(err))
			writeError(w, http.StatusBadGateway, errors.New("failed to retrieve quote"))
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /api/providers/usage
func (h *QuoteHandler) HandleProviderUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ProviderUsage())
}

// POST /api/admin/cache/clear
func (h *QuoteHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCache(r.Context()); err != nil {
		h.logger.Error("cache clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("failed to clear cache"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/admin/credentials/{provider}
// Body: {"api_key": "..."} — an empty key removes the override.
func (h *QuoteHandler) HandleSetCredential(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	if provider == "" {
		writeError(w, http.StatusBadRequest, apperrors.NewValidation("provider", "is required"))
		return
	}

	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.NewValidation("body", "invalid JSON"))
		return
	}

	h.credentials.Set(provider, body.APIKey)
	h.logger.Info("provider credential updated", zap.String("provider", provider))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
