package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/valentingnt/investr-sub000/internal/db"
	"github.com/valentingnt/investr-sub000/internal/models"
)

// quoteRow is the persisted representation of a cached quote: one row per
// symbol, overwritten on every successful fetch. A zero written_at marks an
// entry whose freshness was administratively cleared.
type quoteRow struct {
	Symbol           string           `gorm:"primaryKey;size:32"`
	Price            decimal.Decimal  `gorm:"type:numeric(30,10)"`
	Currency         string           `gorm:"size:8"`
	ChangePercent24h *decimal.Decimal `gorm:"type:numeric(30,10)"`
	DayHigh          *decimal.Decimal `gorm:"type:numeric(30,10)"`
	DayLow           *decimal.Decimal `gorm:"type:numeric(30,10)"`
	PreviousClose    *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Volume           *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Source           string           `gorm:"size:32"`
	WrittenAt        time.Time        `gorm:"index"`
}

func (quoteRow) TableName() string { return "quote_cache" }

// Store is the persisted cache tier, backed by the app database.
type Store struct {
	db  *db.DB
	ttl time.Duration
}

func NewStore(database *db.DB, ttl time.Duration) (*Store, error) {
	if err := database.AutoMigrate(&quoteRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate quote cache: %w", err)
	}
	return &Store{db: database, ttl: ttl}, nil
}

// Get returns the stored entry for a symbol regardless of freshness; the
// caller decides whether it is fresh enough via IsFresh.
func (s *Store) Get(ctx context.Context, symbol string) (*models.CacheEntry, error) {
	var row quoteRow
	err := s.db.WithContext(ctx).First(&row, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached quote: %w", err)
	}
	entry := rowToEntry(row)
	return &entry, nil
}

// Put creates or overwrites the symbol's row.
func (s *Store) Put(ctx context.Context, quote models.PriceQuote) error {
	row := quoteRow{
		Symbol:           quote.Symbol,
		Price:            quote.Price,
		Currency:         quote.Currency,
		ChangePercent24h: quote.ChangePercent24h,
		DayHigh:          quote.DayHigh,
		DayLow:           quote.DayLow,
		PreviousClose:    quote.PreviousClose,
		Volume:           quote.Volume,
		Source:           quote.Source,
		WrittenAt:        time.Now(),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "symbol"}}, UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to cache quote: %w", err)
	}
	return nil
}

// IsFresh reports whether an entry is within the persisted-tier TTL.
func (s *Store) IsFresh(entry *models.CacheEntry) bool {
	if entry == nil || entry.WrittenAt.IsZero() {
		return false
	}
	return time.Since(entry.WrittenAt) < s.ttl
}

// Recent returns the n most recently written entries, newest first, for
// prewarming the memory tier at startup.
func (s *Store) Recent(ctx context.Context, n int) ([]models.CacheEntry, error) {
	var rows []quoteRow
	err := s.db.WithContext(ctx).Order("written_at DESC").Limit(n).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cached quotes: %w", err)
	}
	entries := make([]models.CacheEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToEntry(row))
	}
	return entries, nil
}

// Expire zeroes every write timestamp, forcing the next lookup to refetch
// while keeping the stale values available as a fallback.
func (s *Store) Expire(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&quoteRow{}).
		Update("written_at", time.Time{}).Error
	if err != nil {
		return fmt.Errorf("failed to expire cached quotes: %w", err)
	}
	return nil
}

// Purge deletes every row; used by the administrative clear-cache action.
func (s *Store) Purge(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&quoteRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to purge cached quotes: %w", err)
	}
	return nil
}

func rowToEntry(row quoteRow) models.CacheEntry {
	return models.CacheEntry{
		Symbol:    row.Symbol,
		WrittenAt: row.WrittenAt,
		Quote: models.PriceQuote{
			Symbol:           row.Symbol,
			Price:            row.Price,
			Currency:         row.Currency,
			ChangePercent24h: row.ChangePercent24h,
			DayHigh:          row.DayHigh,
			DayLow:           row.DayLow,
			PreviousClose:    row.PreviousClose,
			Volume:           row.Volume,
			Source:           row.Source,
			FetchedAt:        row.WrittenAt,
		},
	}
}
