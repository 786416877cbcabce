package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LegacyFeatureValue is one row of the old flat feature-value model: a plan,
// a free-form feature name and an untyped value. The migration adapter is the
// only writer besides the cleanup pass.
type LegacyFeatureValue struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ApplicationID snowflake.ID `gorm:"column:application_id;not null;index:idx_legacy_values_app_active,priority:1"`
	PlanID        snowflake.ID `gorm:"not null"`

	FeatureName string `gorm:"type:text;not null"`
	ValueType   string `gorm:"type:text;not null"`
	Unit        string `gorm:"type:text"`
	Value       string `gorm:"type:text;not null"`

	Active   bool `gorm:"not null;default:true;index:idx_legacy_values_app_active,priority:2"`
	Migrated bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (LegacyFeatureValue) TableName() string { return "legacy_feature_values" }
