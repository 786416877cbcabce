package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindConfig(ctx context.Context, db *gorm.DB, planID, featureID snowflake.ID) (*PlanFeatureConfig, error)
	ListConfigs(ctx context.Context, db *gorm.DB, applicationID, planID snowflake.ID, activeOnly bool) ([]PlanFeatureConfig, error)
	CreateConfig(ctx context.Context, db *gorm.DB, cfg *PlanFeatureConfig) error
	UpdateConfig(ctx context.Context, db *gorm.DB, cfg *PlanFeatureConfig) error
	DeleteConfig(ctx context.Context, db *gorm.DB, configID snowflake.ID) error
	UpdateSortOrder(ctx context.Context, db *gorm.DB, configID snowflake.ID, sortOrder int, now time.Time) error

	UpsertValue(ctx context.Context, db *gorm.DB, value *CustomFieldValue) error
	ListValuesByConfig(ctx context.Context, db *gorm.DB, configID snowflake.ID) ([]CustomFieldValue, error)
	ListValuesByPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]CustomFieldValue, error)
	FindValue(ctx context.Context, db *gorm.DB, planID, featureID, customFieldID snowflake.ID) (*CustomFieldValue, error)
	DeleteValuesByConfig(ctx context.Context, db *gorm.DB, configID snowflake.ID) error
}
