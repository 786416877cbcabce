package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Migrate translates the application's legacy flat rows into features,
	// custom fields and plan configurations. Idempotent: re-running produces
	// no duplicates. Dirty rows are logged and skipped, never fatal.
	Migrate(ctx context.Context, applicationID string) (*MigrationReport, error)
	// Cleanup deactivates migrated legacy rows. Run it only after verifying
	// the migration; it is deliberately not chained onto Migrate.
	Cleanup(ctx context.Context, applicationID string) (int64, error)
}

// MigrationReport summarizes one migration run.
type MigrationReport struct {
	RunID           string `json:"run_id"`
	ApplicationID   string `json:"application_id"`
	RowsSeen        int    `json:"rows_seen"`
	FeaturesCreated int    `json:"features_created"`
	FieldsCreated   int    `json:"fields_created"`
	ConfigsUpserted int    `json:"configs_upserted"`
	ValuesUpserted  int    `json:"values_upserted"`
	RowsSkipped     int    `json:"rows_skipped"`
}

var (
	ErrInvalidApplication = errors.New("invalid_application")
)
