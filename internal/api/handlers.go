package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"trade-journal-go/internal/analytics"
	"trade-journal-go/internal/database"
	"trade-journal-go/internal/ingest"
	"trade-journal-go/internal/models"
	"trade-journal-go/internal/review"

	"go.uber.org/zap"
)

const (
	defaultTradesLimit = 100
	maxTradesLimit     = 1000
)

// Client-facing error details.
const (
	detailInvalidFileType = "File must be a CSV"
	detailNotConfigured   = "ANTHROPIC_API_KEY not configured"
	detailNoTrades        = "No trades found. Upload trades first."
	detailReviewFailed    = "AI analysis failed: "
)

// TradeImporter ingests one CSV export.
type TradeImporter interface {
	Import(ctx context.Context, r io.Reader, broker string) (ingest.Result, error)
}

// TradeReviewer produces AI feedback on recent trades.
type TradeReviewer interface {
	Review(ctx context.Context) (review.Review, error)
}

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log            *zap.Logger
	repo           database.TradeRepository
	importer       TradeImporter
	reviewer       TradeReviewer
	maxUploadBytes int64
}

// NewAPIHandler creates a new APIHandler. maxUploadMB caps the multipart body size.
func NewAPIHandler(log *zap.Logger, repo database.TradeRepository, importer TradeImporter, reviewer TradeReviewer, maxUploadMB int64) *APIHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &APIHandler{
		log:            log.Named("api"),
		repo:           repo,
		importer:       importer,
		reviewer:       reviewer,
		maxUploadBytes: maxUploadMB << 20,
	}
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "trade-journal-api"})
}

// BrokersHandler returns the known broker header mappings.
func (h *APIHandler) BrokersHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ingest.Brokers())
}

// TradesHandler returns stored trades, most recent first.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradesLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxTradesLimit)
	}

	trades, err := h.repo.Latest(r.Context(), limit)
	if err != nil {
		h.log.Error("Failed to get trades from database", zap.Error(err))
		h.httpError(w, http.StatusInternalServerError, "Failed to get trades")
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	h.writeJSON(w, http.StatusOK, trades)
}

type uploadResponse struct {
	Success     bool `json:"success"`
	TradesCount int  `json:"trades_count"`
}

// UploadHandler ingests a multipart CSV upload in the "file" field.
func (h *APIHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.httpError(w, http.StatusBadRequest, "File too large")
			return
		}
		h.httpError(w, http.StatusBadRequest, "A CSV file is required in the 'file' field")
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if !strings.HasSuffix(header.Filename, ".csv") {
		h.httpError(w, http.StatusBadRequest, detailInvalidFileType)
		return
	}

	broker := r.URL.Query().Get("broker")
	if broker == "" {
		broker = r.FormValue("broker")
	}
	if broker == "" {
		broker = ingest.BrokerAuto
	}

	res, err := h.importer.Import(r.Context(), file, broker)
	if err != nil {
		var missing *ingest.MissingColumnError
		switch {
		case errors.Is(err, ingest.ErrEmptyCSV), errors.Is(err, ingest.ErrMalformedCSV), errors.As(err, &missing):
			h.httpError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.Error("Failed to import trades", zap.String("filename", header.Filename), zap.Error(err))
			h.httpError(w, http.StatusInternalServerError, "Failed to store trades")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, uploadResponse{Success: true, TradesCount: res.Inserted})
}

// AnalysisHandler computes the performance report over every stored trade.
func (h *APIHandler) AnalysisHandler(w http.ResponseWriter, r *http.Request) {
	trades, err := h.repo.All(r.Context())
	if err != nil {
		h.log.Error("Failed to get trades for analysis", zap.Error(err))
		h.httpError(w, http.StatusInternalServerError, "Failed to calculate analysis")
		return
	}
	h.writeJSON(w, http.StatusOK, analytics.Analyze(trades))
}

// ReviewHandler asks the model for feedback on the latest trades.
func (h *APIHandler) ReviewHandler(w http.ResponseWriter, r *http.Request) {
	out, err := h.reviewer.Review(r.Context())
	if err != nil {
		var upstream *review.UpstreamError
		switch {
		case errors.Is(err, review.ErrNotConfigured):
			h.httpError(w, http.StatusInternalServerError, detailNotConfigured)
		case errors.Is(err, review.ErrNoTrades):
			h.httpError(w, http.StatusBadRequest, detailNoTrades)
		case errors.As(err, &upstream):
			h.httpError(w, http.StatusInternalServerError, detailReviewFailed+upstream.Err.Error())
		default:
			h.log.Error("Failed to review trades", zap.Error(err))
			h.httpError(w, http.StatusInternalServerError, detailReviewFailed+err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *APIHandler) httpError(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, errorResponse{Detail: detail})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}
