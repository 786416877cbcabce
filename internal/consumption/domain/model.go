package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionConsumption is one metering record for a
// (subscription, feature, custom field, period, period start) tuple. The
// limit is a copy taken at period start so later plan edits do not alter
// historical enforcement. Records are reset in place, never deleted.
type SubscriptionConsumption struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	SubscriptionID snowflake.ID `gorm:"not null;uniqueIndex:ux_consumptions_key,priority:1"`
	FeatureID      snowflake.ID `gorm:"not null;uniqueIndex:ux_consumptions_key,priority:2"`
	CustomFieldID  snowflake.ID `gorm:"not null;uniqueIndex:ux_consumptions_key,priority:3"`
	Period         Period       `gorm:"type:text;not null;uniqueIndex:ux_consumptions_key,priority:4"`
	PeriodStart    time.Time    `gorm:"not null;uniqueIndex:ux_consumptions_key,priority:5"`
	PeriodEnd      time.Time    `gorm:"not null"`

	Value           float64 `gorm:"not null;default:0"`
	LimitValue      float64 `gorm:"column:limit_value;not null;default:0"`
	IsUnlimited     bool    `gorm:"not null;default:false"`
	IsLimitExceeded bool    `gorm:"not null;default:false"`

	LastResetDate *time.Time `gorm:"column:last_reset_date"`
	NextResetDate time.Time  `gorm:"column:next_reset_date;not null;index:idx_consumptions_reset,priority:1"`
	Active        bool       `gorm:"not null;default:true;index:idx_consumptions_reset,priority:2"`

	ApplicationID snowflake.ID `gorm:"column:application_id;not null"`
	PlanID        snowflake.ID `gorm:"not null"`
	SubscriberID  snowflake.ID `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SubscriptionConsumption) TableName() string { return "subscription_consumptions" }
