package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/planconfig/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB, planID, featureID snowflake.ID) (*domain.PlanFeatureConfig, error) {
	var cfg domain.PlanFeatureConfig
	err := db.WithContext(ctx).
		Where("plan_id = ? AND feature_id = ?", planID, featureID).
		First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repo) ListConfigs(ctx context.Context, db *gorm.DB, applicationID, planID snowflake.ID, activeOnly bool) ([]domain.PlanFeatureConfig, error) {
	stmt := db.WithContext(ctx).
		Where("application_id = ? AND plan_id = ?", applicationID, planID)
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	var items []domain.PlanFeatureConfig
	err := stmt.Order("sort_order ASC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CreateConfig(ctx context.Context, db *gorm.DB, cfg *domain.PlanFeatureConfig) error {
	return db.WithContext(ctx).Create(cfg).Error
}

func (r *repo) UpdateConfig(ctx context.Context, db *gorm.DB, cfg *domain.PlanFeatureConfig) error {
	if cfg == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE plan_feature_configs
		 SET status = ?, display_name = ?, description = ?, highlight = ?, highlight_text = ?,
		     sort_order = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		cfg.Status,
		cfg.DisplayName,
		cfg.Description,
		cfg.Highlight,
		cfg.HighlightText,
		cfg.SortOrder,
		cfg.Active,
		cfg.UpdatedAt,
		cfg.ID,
	).Error
}

func (r *repo) DeleteConfig(ctx context.Context, db *gorm.DB, configID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM plan_feature_configs WHERE id = ?`,
		configID,
	).Error
}

func (r *repo) UpdateSortOrder(ctx context.Context, db *gorm.DB, configID snowflake.ID, sortOrder int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE plan_feature_configs SET sort_order = ?, updated_at = ? WHERE id = ?`,
		sortOrder,
		now,
		configID,
	).Error
}

// UpsertValue inserts or updates keyed by (config_id, custom_field_id) in one
// statement so a concurrent writer cannot produce a duplicate row.
func (r *repo) UpsertValue(ctx context.Context, db *gorm.DB, value *domain.CustomFieldValue) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "config_id"}, {Name: "custom_field_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"raw_value", "is_unlimited", "display_value", "updated_at",
		}),
	}).Create(value).Error
}

func (r *repo) ListValuesByConfig(ctx context.Context, db *gorm.DB, configID snowflake.ID) ([]domain.CustomFieldValue, error) {
	var items []domain.CustomFieldValue
	err := db.WithContext(ctx).
		Where("config_id = ?", configID).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListValuesByPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]domain.CustomFieldValue, error) {
	var items []domain.CustomFieldValue
	err := db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindValue(ctx context.Context, db *gorm.DB, planID, featureID, customFieldID snowflake.ID) (*domain.CustomFieldValue, error) {
	var value domain.CustomFieldValue
	err := db.WithContext(ctx).
		Where("plan_id = ? AND feature_id = ? AND custom_field_id = ?", planID, featureID, customFieldID).
		First(&value).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &value, nil
}

func (r *repo) DeleteValuesByConfig(ctx context.Context, db *gorm.DB, configID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM custom_field_values WHERE config_id = ?`,
		configID,
	).Error
}
