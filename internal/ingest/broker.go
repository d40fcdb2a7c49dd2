package ingest

import (
	"fmt"
	"sort"
	"strings"
)

// BrokerAuto leaves headers as exported; only the uniform normalization applies.
const BrokerAuto = "auto"

// Canonical column names.
const (
	ColTicker     = "ticker"
	ColSide       = "side"
	ColEntryPrice = "entry_price"
	ColExitPrice  = "exit_price"
	ColQuantity   = "quantity"
	ColEntryTime  = "entry_time"
	ColExitTime   = "exit_time"
	ColPnL        = "pnl"
	ColFees       = "fees"
	ColNotes      = "notes"
)

// ColumnMapping renames one broker export header to its canonical name.
type ColumnMapping struct {
	Source    string `json:"source"`
	Canonical string `json:"canonical"`
}

// BrokerMapping is the ordered header translation table for one broker.
type BrokerMapping struct {
	Broker  string          `json:"broker"`
	Columns []ColumnMapping `json:"columns"`
}

// brokerMappings is the static registry of known export formats.
// New brokers are added here; the row normalizer never needs to change.
var brokerMappings = []BrokerMapping{
	{
		Broker: "td_ameritrade",
		Columns: []ColumnMapping{
			{"Symbol", ColTicker},
			{"Buy/Sell", ColSide},
			{"Price", ColEntryPrice},
			{"Quantity", ColQuantity},
			{"Date/Time", ColEntryTime},
			{"Net Amount", ColPnL},
			{"Commission", ColFees},
		},
	},
	{
		Broker: "robinhood",
		Columns: []ColumnMapping{
			{"Instrument", ColTicker},
			{"Side", ColSide},
			{"Average Price", ColEntryPrice},
			{"Quantity", ColQuantity},
			{"Date", ColEntryTime},
			{"Total P&L", ColPnL},
			{"Fees", ColFees},
		},
	},
}

// Brokers returns the known broker mappings sorted by broker identifier.
func Brokers() []BrokerMapping {
	out := make([]BrokerMapping, len(brokerMappings))
	copy(out, brokerMappings)
	sort.Slice(out, func(i, j int) bool { return out[i].Broker < out[j].Broker })
	return out
}

// LookupBroker finds the mapping for an exact broker identifier.
func LookupBroker(broker string) (BrokerMapping, bool) {
	for _, m := range brokerMappings {
		if m.Broker == broker {
			return m, true
		}
	}
	return BrokerMapping{}, false
}

// NormalizeHeaders applies the broker rename table (when the broker is known)
// and then lowercases, trims and underscores every header.
func NormalizeHeaders(headers []string, broker string) []string {
	renames := map[string]string{}
	if m, ok := LookupBroker(broker); ok {
		for _, c := range m.Columns {
			renames[c.Source] = c.Canonical
		}
	}

	out := make([]string, len(headers))
	for i, h := range headers {
		if canonical, ok := renames[h]; ok {
			h = canonical
		}
		out[i] = strings.ReplaceAll(strings.TrimSpace(strings.ToLower(h)), " ", "_")
	}
	return out
}

// MissingColumnError reports a required column absent after header normalization.
type MissingColumnError struct {
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column: %s (available: [%s])", e.Column, strings.Join(e.Available, ", "))
}

// RequireColumns checks that every required column is present in headers.
func RequireColumns(headers []string, required ...string) error {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	for _, col := range required {
		if _, ok := present[col]; !ok {
			available := make([]string, len(headers))
			copy(available, headers)
			return &MissingColumnError{Column: col, Available: available}
		}
	}
	return nil
}
