package models

import "time"

// Trade sides.
const (
	SideLong  = "long"
	SideShort = "short"
)

// Trade represents one executed position imported from a broker export.
// Rows are never updated after insert.
type Trade struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Ticker     string     `gorm:"not null;index" json:"ticker"`
	Side       string     `gorm:"not null" json:"side"` // "long" or "short"
	EntryPrice float64    `gorm:"not null" json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price"`
	Quantity   int64      `gorm:"not null" json:"quantity"`
	EntryTime  time.Time  `gorm:"not null;index" json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time"`
	PnL        *float64   `gorm:"column:pnl" json:"pnl"`
	Fees       float64    `gorm:"default:0" json:"fees"`
	Notes      *string    `json:"notes"`
}

// TableName pins the table name to the single journal table.
func (Trade) TableName() string {
	return "trades"
}

// PnLOrZero returns the realized P&L, treating an absent value as zero.
func (t Trade) PnLOrZero() float64 {
	if t.PnL == nil {
		return 0
	}
	return *t.PnL
}
