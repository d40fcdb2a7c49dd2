package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trade-journal-go/internal/analytics"
	"trade-journal-go/internal/config"
	"trade-journal-go/internal/database"
	"trade-journal-go/internal/ingest"
	"trade-journal-go/internal/models"
	"trade-journal-go/internal/review"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockReviewer is a mock implementation of the TradeReviewer interface.
type MockReviewer struct {
	mock.Mock
}

func (m *MockReviewer) Review(ctx context.Context) (review.Review, error) {
	args := m.Called(ctx)
	return args.Get(0).(review.Review), args.Error(1)
}

type testEnv struct {
	handler  http.Handler
	repo     database.TradeRepository
	reviewer *MockReviewer
}

// setupTest wires the full HTTP stack to a fresh in-memory database.
func setupTest(t *testing.T, maxUploadMB int64) *testEnv {
	db, err := database.NewDatabase(config.Database{DSN: "sqlite://"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	log := zap.NewNop()
	repo := database.NewTradeRepository(db)
	reviewer := new(MockReviewer)
	h := NewAPIHandler(log, repo, ingest.NewImporter(repo, log), reviewer, maxUploadMB)

	cfg := &config.Config{
		Server: config.Server{Port: 0},
		CORS:   config.CORS{FrontendURL: "https://journal.example.com"},
	}
	return &testEnv{handler: NewServer(cfg, h, log).Handler(), repo: repo, reviewer: reviewer}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// uploadRequest builds a multipart upload with the CSV in the "file" field.
func uploadRequest(t *testing.T, target, filename, content string, fields map[string]string) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[errorResponse](t, rec).Detail
}

func TestHealthHandler(t *testing.T) {
	env := setupTest(t, 10)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","service":"trade-journal-api"}`, rec.Body.String())
}

func TestUploadThenAnalysis(t *testing.T) {
	env := setupTest(t, 10)
	csv := "ticker,side,entry_price,quantity,pnl\n" +
		"AAPL,buy,100,10,50\n" +
		"AAPL,sell,100,10,-20\n"

	rec := env.do(uploadRequest(t, "/trades/upload", "trades.csv", csv, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"trades_count":2}`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/trades/analysis", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[analytics.Report](t, rec)
	assert.Equal(t, 2, report.TotalTrades)
	assert.Equal(t, 50.0, report.WinRate)
	assert.Equal(t, 30.0, report.TotalPnL)
	require.Len(t, report.ByTicker, 1)
	assert.Equal(t, "AAPL", report.ByTicker[0].Ticker)
	assert.Equal(t, 50.0, report.ByTicker[0].WinRate)
	assert.Equal(t, 30.0, report.ByTicker[0].TotalPnL)
	assert.Equal(t, 2, report.ByTicker[0].Trades)
}

func TestUploadHandler_DropsMalformedRows(t *testing.T) {
	env := setupTest(t, 10)
	csv := "ticker,side,entry_price,quantity\n" +
		"AAPL,buy,100,10\n" +
		"MSFT,buy,N/A,5\n" +
		"TSLA,sell,200,1\n"

	rec := env.do(uploadRequest(t, "/trades/upload", "trades.csv", csv, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[uploadResponse](t, rec).TradesCount)

	count, err := env.repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUploadHandler_BrokerMapping(t *testing.T) {
	tdExport := "Symbol,Buy/Sell,Price,Quantity,Date/Time,Net Amount,Commission\n" +
		"NVDA,Buy,450.25,4,2024-03-04 10:31:00,120.5,0.65\n"

	testCases := []struct {
		name   string
		target string
		fields map[string]string
	}{
		{name: "query parameter", target: "/trades/upload?broker=td_ameritrade"},
		{name: "form field", target: "/trades/upload", fields: map[string]string{"broker": "td_ameritrade"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTest(t, 10)

			rec := env.do(uploadRequest(t, tc.target, "td.csv", tdExport, tc.fields))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			trades, err := env.repo.All(context.Background())
			require.NoError(t, err)
			require.Len(t, trades, 1)
			assert.Equal(t, "NVDA", trades[0].Ticker)
			assert.Equal(t, models.SideLong, trades[0].Side)
			assert.Equal(t, 450.25, trades[0].EntryPrice)
			require.NotNil(t, trades[0].PnL)
			assert.Equal(t, 120.5, *trades[0].PnL)
			assert.Equal(t, 0.65, trades[0].Fees)
		})
	}
}

func TestUploadHandler_ClientErrors(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
		content  string
		detail   string
	}{
		{name: "not a csv", filename: "trades.xlsx", content: "ticker\nAAPL\n", detail: "File must be a CSV"},
		{name: "empty csv", filename: "trades.csv", content: "", detail: "CSV file is empty"},
		{name: "header only", filename: "trades.csv", content: "ticker,side\n", detail: "CSV file is empty"},
		{name: "missing ticker", filename: "trades.csv", content: "symbol,side\nAAPL,buy\n", detail: "missing required column: ticker (available: [symbol, side])"},
		{name: "missing file", filename: "", detail: "A CSV file is required in the 'file' field"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTest(t, 10)

			rec := env.do(uploadRequest(t, "/trades/upload", tc.filename, tc.content, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.detail, detailOf(t, rec))
		})
	}
}

func TestUploadHandler_MissingTickerWithUnmappedBroker(t *testing.T) {
	env := setupTest(t, 10)
	// Robinhood headers only map when the robinhood broker is selected.
	csv := "Instrument,Side,Average Price\nAAPL,Buy,100\n"

	rec := env.do(uploadRequest(t, "/trades/upload?broker=auto", "rh.csv", csv, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detailOf(t, rec), "instrument")
}

func TestUploadHandler_TooLarge(t *testing.T) {
	env := setupTest(t, 1)
	big := "ticker,notes\n" + strings.Repeat("AAPL,"+strings.Repeat("x", 1000)+"\n", 1200)

	rec := env.do(uploadRequest(t, "/trades/upload", "big.csv", big, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large", detailOf(t, rec))
}

func TestAnalysisHandler_Empty(t *testing.T) {
	env := setupTest(t, 10)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/trades/analysis", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"total_trades": 0, "win_rate": 0, "total_pnl": 0, "avg_rr": 0,
		"by_ticker": [], "by_hour": [], "by_day_of_week": []
	}`, rec.Body.String())
}

func TestTradesHandler(t *testing.T) {
	env := setupTest(t, 10)
	csv := "ticker,entry_time\n" +
		"AAPL,2024-03-01 10:00:00\n" +
		"MSFT,2024-03-03 10:00:00\n" +
		"TSLA,2024-03-02 10:00:00\n"
	require.Equal(t, http.StatusOK, env.do(uploadRequest(t, "/trades/upload", "t.csv", csv, nil)).Code)

	t.Run("most recent first", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/trades", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		trades := decode[[]models.Trade](t, rec)
		require.Len(t, trades, 3)
		assert.Equal(t, "MSFT", trades[0].Ticker)
		assert.Equal(t, "TSLA", trades[1].Ticker)
		assert.Equal(t, "AAPL", trades[2].Ticker)
	})

	t.Run("limit", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/trades?limit=1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]models.Trade](t, rec), 1)
	})

	t.Run("invalid limit falls back to default", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/trades?limit=abc", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]models.Trade](t, rec), 3)
	})
}

func TestTradesHandler_Empty(t *testing.T) {
	env := setupTest(t, 10)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/trades", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBrokersHandler(t *testing.T) {
	env := setupTest(t, 10)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/brokers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	brokers := decode[[]ingest.BrokerMapping](t, rec)
	require.Len(t, brokers, 2)
	assert.Equal(t, "robinhood", brokers[0].Broker)
	assert.Equal(t, "td_ameritrade", brokers[1].Broker)
}

func TestReviewHandler(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{name: "not configured", err: review.ErrNotConfigured, status: http.StatusInternalServerError, detail: "ANTHROPIC_API_KEY not configured"},
		{name: "no trades", err: review.ErrNoTrades, status: http.StatusBadRequest, detail: "No trades found. Upload trades first."},
		{name: "upstream", err: &review.UpstreamError{Err: errors.New("timeout")}, status: http.StatusInternalServerError, detail: "AI analysis failed: timeout"},
		{name: "store failure", err: errors.New("disk I/O error"), status: http.StatusInternalServerError, detail: "AI analysis failed: disk I/O error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupTest(t, 10)
			env.reviewer.On("Review", mock.Anything).Return(review.Review{}, tc.err).Once()

			rec := env.do(httptest.NewRequest(http.MethodPost, "/ai/review", nil))

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.detail, detailOf(t, rec))
			env.reviewer.AssertExpectations(t)
		})
	}

	t.Run("success", func(t *testing.T) {
		env := setupTest(t, 10)
		env.reviewer.On("Review", mock.Anything).Return(review.Review{
			Strengths:       []string{"Disciplined exits"},
			Weaknesses:      []string{},
			Patterns:        []string{"Morning trades win"},
			Recommendations: []string{"Trade less after lunch"},
		}, nil).Once()

		rec := env.do(httptest.NewRequest(http.MethodPost, "/ai/review", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"strengths": ["Disciplined exits"],
			"weaknesses": [],
			"patterns": ["Morning trades win"],
			"recommendations": ["Trade less after lunch"]
		}`, rec.Body.String())
	})
}

func TestMethodNotAllowed(t *testing.T) {
	env := setupTest(t, 10)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/trades/upload", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	env := setupTest(t, 10)

	testCases := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:3000", true},
		{"https://localhost:3000", true},
		{"https://journal.example.com", true},
		{"https://evil.example.com", false},
	}

	for _, tc := range testCases {
		t.Run(tc.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/trades/upload", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "content-type")

			rec := env.do(req)

			if tc.allowed {
				assert.Equal(t, tc.origin, rec.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	env := setupTest(t, 10)

	t.Run("generated", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Len(t, rec.Header().Get(requestIDHeader), 36)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		rec := env.do(req)
		assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	})
}

func TestAllowedOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:3000", "https://localhost:3000"}, AllowedOrigins(""))
	assert.Equal(t, []string{"http://localhost:3000", "https://localhost:3000"}, AllowedOrigins("http://localhost:3000"))
	assert.Equal(t, []string{"http://localhost:3000", "https://localhost:3000", "https://app.example.com"}, AllowedOrigins("https://app.example.com"))
}
