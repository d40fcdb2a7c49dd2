package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trade-journal-go/internal/database"
	"trade-journal-go/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// RecentTradeLimit is how many of the latest trades are sent for review.
const RecentTradeLimit = 30

var tracer = otel.Tracer("trade-journal-go/internal/review")

var (
	// ErrNotConfigured means no credential for the review model is set.
	ErrNotConfigured = errors.New("review model api key not configured")
	// ErrNoTrades means the journal is empty, so there is nothing to review.
	ErrNoTrades = errors.New("no trades to review")
	// ErrInvalidFormat means the model reply contained no usable JSON object.
	ErrInvalidFormat = errors.New("model returned invalid format")
)

// UpstreamError wraps any failure of the model call or of its reply.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "review request failed: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Completer sends a single prompt to a text generation model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Review is the coaching feedback returned to the client.
type Review struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Patterns        []string `json:"patterns"`
	Recommendations []string `json:"recommendations"`
}

// Reviewer builds a prompt from the latest trades and asks the model for feedback.
type Reviewer struct {
	repo       database.TradeRepository
	ai         Completer
	configured bool
	log        *zap.Logger
}

// NewReviewer creates a Reviewer. An empty apiKey leaves the reviewer
// unconfigured, and every Review call fails with ErrNotConfigured.
func NewReviewer(repo database.TradeRepository, ai Completer, apiKey string, log *zap.Logger) *Reviewer {
	return &Reviewer{
		repo:       repo,
		ai:         ai,
		configured: strings.TrimSpace(apiKey) != "",
		log:        log.Named("review"),
	}
}

// Review runs one review over the most recent trades.
func (r *Reviewer) Review(ctx context.Context) (out Review, err error) {
	ctx, span := tracer.Start(ctx, "review.Review")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !r.configured {
		return Review{}, ErrNotConfigured
	}

	count, err := r.repo.Count(ctx)
	if err != nil {
		return Review{}, err
	}
	if count == 0 {
		return Review{}, ErrNoTrades
	}

	trades, err := r.repo.Latest(ctx, RecentTradeLimit)
	if err != nil {
		return Review{}, err
	}
	if len(trades) == 0 {
		return Review{}, ErrNoTrades
	}
	span.SetAttributes(attribute.Int("trades", len(trades)))

	reply, err := r.ai.Complete(ctx, BuildPrompt(trades))
	if err != nil {
		r.log.Error("Review request failed", zap.Error(err))
		return Review{}, &UpstreamError{Err: err}
	}

	out, err = ParseReview(reply)
	if err != nil {
		r.log.Warn("Unusable review reply", zap.Error(err), zap.Int("length", len(reply)))
		return Review{}, &UpstreamError{Err: err}
	}

	r.log.Info("Generated trade review",
		zap.Int("trades", len(trades)),
		zap.Int("strengths", len(out.Strengths)),
		zap.Int("recommendations", len(out.Recommendations)),
	)
	return out, nil
}

// FormatTradeLine renders one trade for the prompt. Missing exit price and
// P&L render as zero; missing notes render as "No notes".
func FormatTradeLine(t models.Trade) string {
	var exit float64
	if t.ExitPrice != nil {
		exit = *t.ExitPrice
	}
	notes := "No notes"
	if t.Notes != nil && *t.Notes != "" {
		notes = *t.Notes
	}
	return fmt.Sprintf("- %s %s | Entry: $%.2f Exit: $%.2f | Qty: %d | P&L: $%.2f | %s",
		t.Ticker, t.Side, t.EntryPrice, exit, t.Quantity, t.PnLOrZero(), notes)
}

const promptTemplate = `You are an expert trading coach. Analyze the following %d most recent trades and provide structured feedback.

Trades:
%s

Provide your analysis in the following JSON format (return ONLY valid JSON, no markdown):
{
  "strengths": ["strength 1", "strength 2", "strength 3", "strength 4"],
  "weaknesses": ["weakness 1", "weakness 2", "weakness 3", "weakness 4"],
  "patterns": ["pattern 1", "pattern 2", "pattern 3", "pattern 4"],
  "recommendations": ["recommendation 1", "recommendation 2", "recommendation 3", "recommendation 4", "recommendation 5"]
}

Be specific. Reference actual tickers, times, and patterns you see in the data. Each item should be a complete, actionable sentence.`

// BuildPrompt embeds one line per trade into the review prompt.
func BuildPrompt(trades []models.Trade) string {
	lines := make([]string, len(trades))
	for i, t := range trades {
		lines[i] = FormatTradeLine(t)
	}
	return fmt.Sprintf(promptTemplate, len(trades), strings.Join(lines, "\n"))
}
