package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ConfigStatus describes how a feature behaves on a plan.
type ConfigStatus string

const (
	StatusEnabled   ConfigStatus = "enabled"
	StatusDisabled  ConfigStatus = "disabled"
	StatusLimited   ConfigStatus = "limited"
	StatusUnlimited ConfigStatus = "unlimited"
)

// PlanFeatureConfig binds one feature to one billing plan. (PlanID, FeatureID)
// is unique; ApplicationID is denormalized so tenant reads skip the join.
type PlanFeatureConfig struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	PlanID        snowflake.ID `gorm:"not null;uniqueIndex:ux_plan_feature_configs_plan_feature,priority:1;index:idx_plan_feature_configs_app_plan,priority:2"`
	FeatureID     snowflake.ID `gorm:"not null;uniqueIndex:ux_plan_feature_configs_plan_feature,priority:2"`
	ApplicationID snowflake.ID `gorm:"column:application_id;not null;index:idx_plan_feature_configs_app_plan,priority:1"`

	Status        ConfigStatus `gorm:"type:text;not null"`
	DisplayName   *string      `gorm:"type:text"`
	Description   *string      `gorm:"type:text"`
	Highlight     bool         `gorm:"not null;default:false"`
	HighlightText *string      `gorm:"type:text"`
	SortOrder     int          `gorm:"not null;default:0"`
	Active        bool         `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PlanFeatureConfig) TableName() string { return "plan_feature_configs" }

// CustomFieldValue is the concrete value of one custom field within one plan
// feature configuration. (ConfigID, CustomFieldID) is unique. PlanID,
// FeatureID and ApplicationID are copies kept for join-free lookups.
type CustomFieldValue struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ConfigID      snowflake.ID `gorm:"column:config_id;not null;uniqueIndex:ux_custom_field_values_config_field,priority:1"`
	CustomFieldID snowflake.ID `gorm:"not null;uniqueIndex:ux_custom_field_values_config_field,priority:2"`
	PlanID        snowflake.ID `gorm:"not null;index:idx_custom_field_values_plan_feature,priority:1"`
	FeatureID     snowflake.ID `gorm:"not null;index:idx_custom_field_values_plan_feature,priority:2"`
	ApplicationID snowflake.ID `gorm:"column:application_id;not null"`

	RawValue     string `gorm:"type:text;not null"`
	IsUnlimited  bool   `gorm:"not null;default:false"`
	DisplayValue string `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CustomFieldValue) TableName() string { return "custom_field_values" }
