package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"trade-journal-go/internal/models"

	"github.com/araddon/dateparse"
)

// Row maps normalized header names to raw cell values. A key is present
// exactly when the source CSV has that column.
type Row map[string]string

// NormalizeRow converts one raw row into a canonical trade. now is used as the
// entry time when the row has none. Any coercion failure rejects the whole row.
func NormalizeRow(row Row, now time.Time) (models.Trade, error) {
	entryTime := now.UTC()
	if t, ok := parseTime(row[ColEntryTime]); ok {
		entryTime = t
	}

	var exitTime *time.Time
	if t, ok := parseTime(row[ColExitTime]); ok {
		exitTime = &t
	}

	entryPrice, err := requiredFloat(row, ColEntryPrice)
	if err != nil {
		return models.Trade{}, err
	}
	if entryPrice < 0 {
		return models.Trade{}, fmt.Errorf("%s: negative price %v", ColEntryPrice, entryPrice)
	}

	exitPrice, err := optionalFloat(row, ColExitPrice)
	if err != nil {
		return models.Trade{}, err
	}
	if exitPrice != nil && *exitPrice < 0 {
		return models.Trade{}, fmt.Errorf("%s: negative price %v", ColExitPrice, *exitPrice)
	}

	quantity, err := requiredFloat(row, ColQuantity)
	if err != nil {
		return models.Trade{}, err
	}
	if math.Abs(quantity) >= math.MaxInt64 {
		return models.Trade{}, fmt.Errorf("%s: %v out of range", ColQuantity, quantity)
	}

	pnl, err := optionalFloat(row, ColPnL)
	if err != nil {
		return models.Trade{}, err
	}

	fees, err := requiredFloat(row, ColFees)
	if err != nil {
		return models.Trade{}, err
	}

	var notes *string
	if v, ok := row[ColNotes]; ok {
		notes = &v
	}

	return models.Trade{
		Ticker:     strings.ToUpper(strings.TrimSpace(row[ColTicker])),
		Side:       NormalizeSide(row[ColSide]),
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Quantity:   int64(quantity),
		EntryTime:  entryTime,
		ExitTime:   exitTime,
		PnL:        pnl,
		Fees:       fees,
		Notes:      notes,
	}, nil
}

// NormalizeSide maps broker side text onto long/short. Buy synonyms become
// long, sell synonyms short, and anything unrecognized defaults to long.
func NormalizeSide(raw string) string {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "buy", "b", models.SideLong:
		return models.SideLong
	case "sell", "s", models.SideShort:
		return models.SideShort
	default:
		return models.SideLong
	}
}

// Parsed timestamps outside this year range are treated as unparseable.
const (
	minTradeYear = 1900
	maxTradeYear = 2100
)

// parseTime interprets a cell as a timestamp. Values without a zone are read as UTC.
// Month-first layouts are tried before day-first ones.
func parseTime(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		t, err = dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(false))
		if err != nil {
			return time.Time{}, false
		}
	}
	if y := t.UTC().Year(); y < minTradeYear || y > maxTradeYear {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// requiredFloat reads a numeric column where an absent column or empty cell means zero.
func requiredFloat(row Row, col string) (float64, error) {
	v, ok := row[col]
	if !ok {
		return 0, nil
	}
	return parseNumber(col, v)
}

// optionalFloat reads a numeric column that is null when the column is absent.
// A present but empty cell is zero, not null.
func optionalFloat(row Row, col string) (*float64, error) {
	v, ok := row[col]
	if !ok {
		return nil, nil
	}
	f, err := parseNumber(col, v)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseNumber(col, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s: non-finite value %q", col, raw)
	}
	return f, nil
}
