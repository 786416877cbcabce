package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/legacy/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListActiveByApplication(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) ([]domain.LegacyFeatureValue, error) {
	var items []domain.LegacyFeatureValue
	err := db.WithContext(ctx).
		Where("application_id = ? AND active = ?", applicationID, true).
		Order("feature_name ASC").
		Order("plan_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkMigrated(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE legacy_feature_values SET migrated = ?, updated_at = ? WHERE id IN ?`,
		true,
		now,
		ids,
	).Error
}

func (r *repo) DeactivateMigrated(ctx context.Context, db *gorm.DB, applicationID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE legacy_feature_values
		 SET active = ?, updated_at = ?
		 WHERE application_id = ? AND migrated = ? AND active = ?`,
		false,
		now,
		applicationID,
		true,
		true,
	)
	return result.RowsAffected, result.Error
}
