package analytics

import (
	"sort"
	"time"

	"trade-journal-go/internal/models"

	"github.com/shopspring/decimal"
)

// dayNames is indexed by Monday-first weekday number.
var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var hundred = decimal.NewFromInt(100)

// Report is the full-portfolio performance summary.
type Report struct {
	TotalTrades int           `json:"total_trades"`
	WinRate     float64       `json:"win_rate"`
	TotalPnL    float64       `json:"total_pnl"`
	AvgRR       float64       `json:"avg_rr"`
	ByTicker    []TickerStats `json:"by_ticker"`
	ByHour      []HourStats   `json:"by_hour"`
	ByDayOfWeek []DayStats    `json:"by_day_of_week"`
}

// TickerStats aggregates trades for one symbol.
type TickerStats struct {
	Ticker   string  `json:"ticker"`
	WinRate  float64 `json:"win_rate"`
	TotalPnL float64 `json:"total_pnl"`
	Trades   int     `json:"trades"`
}

// HourStats aggregates trades entered during one hour of the day (0-23).
type HourStats struct {
	Hour   int     `json:"hour"`
	PnL    float64 `json:"pnl"`
	Trades int     `json:"trades"`
}

// DayStats aggregates trades entered on one weekday (Monday=0 ... Sunday=6).
type DayStats struct {
	Weekday int     `json:"weekday"`
	Day     string  `json:"day"`
	PnL     float64 `json:"pnl"`
	Trades  int     `json:"trades"`
}

// bucket accumulates exact decimal sums so the result does not depend on input order.
type bucket struct {
	trades int
	wins   int
	pnl    decimal.Decimal
}

func (b *bucket) add(pnl decimal.Decimal) {
	b.trades++
	b.pnl = b.pnl.Add(pnl)
	if pnl.IsPositive() {
		b.wins++
	}
}

// Analyze computes the report over trades. A trade wins when its P&L is
// strictly positive; null P&L counts as zero, so such trades are losses.
func Analyze(trades []models.Trade) Report {
	report := Report{
		ByTicker:    []TickerStats{},
		ByHour:      []HourStats{},
		ByDayOfWeek: []DayStats{},
	}
	if len(trades) == 0 {
		return report
	}

	var all bucket
	var winSum, lossSum decimal.Decimal
	var tickerOrder []string
	tickers := map[string]*bucket{}
	hours := map[int]*bucket{}
	days := map[int]*bucket{}

	for _, t := range trades {
		pnl := decimal.NewFromFloat(t.PnLOrZero())
		all.add(pnl)
		if pnl.IsPositive() {
			winSum = winSum.Add(pnl)
		} else {
			lossSum = lossSum.Add(pnl)
		}

		tb, ok := tickers[t.Ticker]
		if !ok {
			tb = &bucket{}
			tickers[t.Ticker] = tb
			tickerOrder = append(tickerOrder, t.Ticker)
		}
		tb.add(pnl)

		if t.EntryTime.IsZero() {
			continue
		}
		entry := t.EntryTime.UTC()
		bucketFor(hours, entry.Hour()).add(pnl)
		bucketFor(days, mondayFirst(entry.Weekday())).add(pnl)
	}

	report.TotalTrades = all.trades
	report.WinRate = percent(all.wins, all.trades)
	report.TotalPnL = money(all.pnl)
	report.AvgRR = rewardToRisk(winSum, all.wins, lossSum, all.trades-all.wins)

	for _, ticker := range tickerOrder {
		b := tickers[ticker]
		report.ByTicker = append(report.ByTicker, TickerStats{
			Ticker:   ticker,
			WinRate:  percent(b.wins, b.trades),
			TotalPnL: money(b.pnl),
			Trades:   b.trades,
		})
	}

	for _, h := range sortedKeys(hours) {
		b := hours[h]
		report.ByHour = append(report.ByHour, HourStats{Hour: h, PnL: money(b.pnl), Trades: b.trades})
	}

	for _, d := range sortedKeys(days) {
		b := days[d]
		report.ByDayOfWeek = append(report.ByDayOfWeek, DayStats{
			Weekday: d,
			Day:     dayNames[d],
			PnL:     money(b.pnl),
			Trades:  b.trades,
		})
	}

	return report
}

// rewardToRisk divides the mean winning P&L by the mean absolute losing P&L.
// It is zero when there is no loss magnitude to divide by.
func rewardToRisk(winSum decimal.Decimal, wins int, lossSum decimal.Decimal, losses int) float64 {
	if losses == 0 {
		return 0
	}
	avgLoss := lossSum.Div(decimal.NewFromInt(int64(losses))).Abs()
	if !avgLoss.IsPositive() {
		return 0
	}
	avgWin := decimal.Zero
	if wins > 0 {
		avgWin = winSum.Div(decimal.NewFromInt(int64(wins)))
	}
	return money(avgWin.Div(avgLoss))
}

func bucketFor(m map[int]*bucket, key int) *bucket {
	b, ok := m[key]
	if !ok {
		b = &bucket{}
		m[key] = b
	}
	return b
}

func sortedKeys(m map[int]*bucket) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// mondayFirst renumbers time.Weekday (Sunday=0) to Monday=0 ... Sunday=6.
func mondayFirst(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

// percent returns part/total as a percentage rounded to one decimal.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).Mul(hundred).
		Div(decimal.NewFromInt(int64(total))).
		RoundBank(1).InexactFloat64()
}

// money rounds to cents with banker's rounding.
func money(d decimal.Decimal) float64 {
	return d.RoundBank(2).InexactFloat64()
}
