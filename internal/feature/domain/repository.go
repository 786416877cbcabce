package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows catalog queries. A nil ApplicationID with IncludeGlobal
// unset lists only global features.
type ListFilter struct {
	ApplicationID *snowflake.ID
	IncludeGlobal bool
	Category      *Category
	Active        *bool
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, feature *Feature) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Feature, error)
	FindByName(ctx context.Context, db *gorm.DB, applicationID *snowflake.ID, name string) (*Feature, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Feature, error)
	Update(ctx context.Context, db *gorm.DB, feature *Feature) error

	CreateField(ctx context.Context, db *gorm.DB, field *CustomField) error
	FindFieldByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CustomField, error)
	FindFieldByName(ctx context.Context, db *gorm.DB, featureID snowflake.ID, fieldName string) (*CustomField, error)
	ListFields(ctx context.Context, db *gorm.DB, featureID snowflake.ID, activeOnly bool) ([]CustomField, error)
	UpdateField(ctx context.Context, db *gorm.DB, field *CustomField) error
	DeactivateFields(ctx context.Context, db *gorm.DB, featureID snowflake.ID, now time.Time) error
}
