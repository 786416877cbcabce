package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/consumption/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, record *domain.SubscriptionConsumption) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.SubscriptionConsumption, error) {
	var record domain.SubscriptionConsumption
	err := db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) FindCurrent(ctx context.Context, db *gorm.DB, key domain.Key, now time.Time) (*domain.SubscriptionConsumption, error) {
	var record domain.SubscriptionConsumption
	err := db.WithContext(ctx).
		Where("subscription_id = ? AND feature_id = ? AND custom_field_id = ? AND period = ?",
			key.SubscriptionID, key.FeatureID, key.CustomFieldID, key.Period).
		Where("period_start <= ? AND period_end > ? AND active = ?", now, now, true).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Increment is a single read-modify-write statement so concurrent callers
// cannot lose updates. The exceeded flag is computed against the pre-update
// value on purpose: MySQL applies SET clauses left to right, so it must come
// before the value assignment to see the same snapshot on every dialect.
// Exceeded is sticky: once set it stays set until the next reset.
func (r *repo) Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, delta float64, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscription_consumptions
		 SET is_limit_exceeded = (is_limit_exceeded OR (NOT is_unlimited AND value + ? > limit_value)),
		     value = value + ?,
		     updated_at = ?
		 WHERE id = ? AND active = ?`,
		delta,
		delta,
		now,
		id,
		true,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Reset(ctx context.Context, db *gorm.DB, id snowflake.ID, window domain.ResetWindow, dueBefore time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscription_consumptions
		 SET value = 0,
		     is_limit_exceeded = ?,
		     period_start = ?,
		     period_end = ?,
		     last_reset_date = ?,
		     next_reset_date = ?,
		     updated_at = ?
		 WHERE id = ? AND next_reset_date <= ?`,
		false,
		window.PeriodStart,
		window.PeriodEnd,
		window.ResetAt,
		window.NextResetDate,
		window.ResetAt,
		id,
		dueBefore,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) FindDueForReset(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.SubscriptionConsumption, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []domain.SubscriptionConsumption
	err := db.WithContext(ctx).
		Where("next_reset_date <= ? AND active = ?", now, true).
		Order("next_reset_date ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]domain.SubscriptionConsumption, error) {
	var items []domain.SubscriptionConsumption
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("period_start DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
