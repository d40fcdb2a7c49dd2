package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"trade-journal-go/internal/database"
	"trade-journal-go/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("trade-journal-go/internal/ingest")

// Result summarizes one ingestion batch.
type Result struct {
	Rows     int `json:"rows"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Importer turns broker CSV exports into stored trades.
type Importer struct {
	repo database.TradeRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewImporter creates an Importer writing to repo.
func NewImporter(repo database.TradeRepository, log *zap.Logger) *Importer {
	return &Importer{
		repo: repo,
		log:  log.Named("ingest"),
		now:  time.Now,
	}
}

// Import parses the CSV in r using the header mapping for broker and stores every
// row that normalizes cleanly in a single transaction. Rows that fail coercion
// are dropped; only the aggregate count reports them.
func (im *Importer) Import(ctx context.Context, r io.Reader, broker string) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "ingest.Import")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("broker", broker))

	table, err := ReadTable(r)
	if err != nil {
		return Result{}, err
	}

	headers := NormalizeHeaders(table.Headers, broker)
	if err := RequireColumns(headers, ColTicker); err != nil {
		return Result{}, err
	}

	now := im.now()
	rows := table.Rows(headers)
	trades := make([]models.Trade, 0, len(rows))
	for i, row := range rows {
		trade, rowErr := NormalizeRow(row, now)
		if rowErr != nil {
			res.Skipped++
			im.log.Debug("Skipping malformed row", zap.Int("record", i+1), zap.Error(rowErr))
			continue
		}
		trades = append(trades, trade)
	}
	res.Rows = len(rows)

	inserted, err := im.repo.InsertBatch(ctx, trades)
	if err != nil {
		return Result{}, fmt.Errorf("failed to store batch: %w", err)
	}
	res.Inserted = inserted

	span.SetAttributes(
		attribute.Int("rows", res.Rows),
		attribute.Int("inserted", res.Inserted),
		attribute.Int("skipped", res.Skipped),
	)
	im.log.Info("Imported trades",
		zap.String("broker", broker),
		zap.Int("rows", res.Rows),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
