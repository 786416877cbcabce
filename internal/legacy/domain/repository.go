package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListActiveByApplication(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) ([]LegacyFeatureValue, error)
	MarkMigrated(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) error
	// DeactivateMigrated soft-deletes every migrated row for the application
	// and returns how many rows it touched.
	DeactivateMigrated(ctx context.Context, db *gorm.DB, applicationID snowflake.ID, now time.Time) (int64, error)
}
