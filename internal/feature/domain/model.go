package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Category tags a feature for catalog filtering.
type Category string

const (
	CategoryCommunication Category = "COMMUNICATION"
	CategoryStorage       Category = "STORAGE"
	CategoryAnalytics     Category = "ANALYTICS"
	CategoryIntegration   Category = "INTEGRATION"
	CategorySecurity      Category = "SECURITY"
	CategorySupport       Category = "SUPPORT"
	CategoryGeneral       Category = "GENERAL"
)

// FieldType enumerates the value shapes a custom field can carry.
type FieldType string

const (
	FieldTypeNumber     FieldType = "number"
	FieldTypeString     FieldType = "string"
	FieldTypeBoolean    FieldType = "boolean"
	FieldTypeDate       FieldType = "date"
	FieldTypeEnum       FieldType = "enum"
	FieldTypeStructured FieldType = "structured"
)

// Unit tags a numeric field so its value can be rendered for humans.
type Unit string

const (
	UnitBytes      Unit = "bytes"
	UnitKB         Unit = "kb"
	UnitMB         Unit = "mb"
	UnitGB         Unit = "gb"
	UnitTB         Unit = "tb"
	UnitEmails     Unit = "emails"
	UnitSMS        Unit = "sms"
	UnitRequests   Unit = "requests"
	UnitUsers      Unit = "users"
	UnitItems      Unit = "items"
	UnitPercentage Unit = "percentage"
	UnitDays       Unit = "days"
	UnitHours      Unit = "hours"
	UnitNone       Unit = "none"
)

// UnlimitedValue is the raw sentinel meaning "no limit". Writers must pair it
// with an explicit unlimited flag; readers check the flag, never the raw -1.
const UnlimitedValue float64 = -1

// Feature is a named capability an application can entitle per plan. A nil
// ApplicationID marks the feature as global to all tenants.
type Feature struct {
	ID            snowflake.ID  `gorm:"primaryKey"`
	ApplicationID *snowflake.ID `gorm:"column:application_id;index:idx_features_app_active,priority:1"`
	Name          string        `gorm:"type:text;not null"`

	Description  *string           `gorm:"type:text"`
	Category     Category          `gorm:"type:text;not null;index:idx_features_category_active,priority:1"`
	AllowedRoles datatypes.JSON    `gorm:"column:allowed_roles"`
	Active       bool              `gorm:"not null;default:true;index:idx_features_app_active,priority:2;index:idx_features_category_active,priority:2"`
	Icon         *string           `gorm:"type:text"`
	DisplayName  *string           `gorm:"type:text"`
	SortOrder    int               `gorm:"not null;default:0"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Feature) TableName() string { return "features" }

// IsGlobal reports whether the feature is visible to every application.
func (f *Feature) IsGlobal() bool { return f.ApplicationID == nil }

// CustomField is a typed attribute a feature exposes, e.g. a monthly limit.
// (FeatureID, FieldName) is unique.
type CustomField struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	FeatureID snowflake.ID `gorm:"not null;uniqueIndex:ux_custom_fields_feature_name,priority:1;index:idx_custom_fields_feature_active,priority:1"`
	FieldName string       `gorm:"type:text;not null;uniqueIndex:ux_custom_fields_feature_name,priority:2"`

	DataType     FieldType      `gorm:"type:text;not null"`
	Unit         Unit           `gorm:"type:text;not null;default:'none'"`
	DefaultValue *string        `gorm:"type:text"`
	MinValue     *float64       `gorm:"column:min_value"`
	MaxValue     *float64       `gorm:"column:max_value"`
	EnumValues   datatypes.JSON `gorm:"column:enum_values"`
	Required     bool           `gorm:"not null;default:false"`
	SortOrder    int            `gorm:"not null;default:0"`
	Active       bool           `gorm:"not null;default:true;index:idx_custom_fields_feature_active,priority:2"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CustomField) TableName() string { return "custom_fields" }
