package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Key identifies one ledger slot.
type Key struct {
	SubscriptionID snowflake.ID
	FeatureID      snowflake.ID
	CustomFieldID  snowflake.ID
	Period         Period
}

// ResetWindow carries the advanced period boundaries applied by a reset.
type ResetWindow struct {
	PeriodStart   time.Time
	PeriodEnd     time.Time
	NextResetDate time.Time
	ResetAt       time.Time
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, record *SubscriptionConsumption) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SubscriptionConsumption, error)
	// FindCurrent returns the record whose period window contains now.
	FindCurrent(ctx context.Context, db *gorm.DB, key Key, now time.Time) (*SubscriptionConsumption, error)
	// Increment applies delta and recomputes the exceeded flag in a single
	// statement. Returns the number of rows updated (0 means no record).
	Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, delta float64, now time.Time) (int64, error)
	// Reset zeroes the record and advances its window, guarded by
	// next_reset_date <= dueBefore so two sweeps cannot double-reset.
	Reset(ctx context.Context, db *gorm.DB, id snowflake.ID, window ResetWindow, dueBefore time.Time) (int64, error)
	FindDueForReset(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]SubscriptionConsumption, error)
	ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]SubscriptionConsumption, error)
}
