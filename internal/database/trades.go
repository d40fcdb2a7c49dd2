package database

import (
	"context"
	"fmt"

	"trade-journal-go/internal/models"

	"gorm.io/gorm"
)

const insertBatchSize = 200

// TradeRepository is the persistence boundary for journal trades.
type TradeRepository interface {
	// InsertBatch stores all trades in one transaction and returns how many were written.
	InsertBatch(ctx context.Context, trades []models.Trade) (int, error)
	// All returns every stored trade in insertion order.
	All(ctx context.Context) ([]models.Trade, error)
	// Latest returns up to limit trades, most recent entry time first.
	Latest(ctx context.Context, limit int) ([]models.Trade, error)
	// Count returns the number of stored trades.
	Count(ctx context.Context) (int64, error)
}

// GormTradeRepository implements TradeRepository on top of gorm.
type GormTradeRepository struct {
	db *gorm.DB
}

// ensure GormTradeRepository implements the interface
var _ TradeRepository = (*GormTradeRepository)(nil)

// NewTradeRepository creates a repository bound to db.
func NewTradeRepository(db *gorm.DB) *GormTradeRepository {
	return &GormTradeRepository{db: db}
}

func (r *GormTradeRepository) InsertBatch(ctx context.Context, trades []models.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&trades, insertBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert trades: %w", err)
	}
	return len(trades), nil
}

func (r *GormTradeRepository) All(ctx context.Context) ([]models.Trade, error) {
	var trades []models.Trade
	if err := r.db.WithContext(ctx).Order("id asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}

func (r *GormTradeRepository) Latest(ctx context.Context, limit int) ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.WithContext(ctx).
		Order("entry_time desc").
		Order("id desc").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest trades: %w", err)
	}
	return trades, nil
}

func (r *GormTradeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Trade{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}
