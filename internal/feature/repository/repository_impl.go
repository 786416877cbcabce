package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/feature/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, feature *domain.Feature) error {
	return db.WithContext(ctx).Create(feature).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Feature, error) {
	var f domain.Feature
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&f).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, applicationID *snowflake.ID, name string) (*domain.Feature, error) {
	stmt := db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name)
	if applicationID == nil {
		stmt = stmt.Where("application_id IS NULL")
	} else {
		stmt = stmt.Where("application_id = ?", *applicationID)
	}

	var f domain.Feature
	if err := stmt.First(&f).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Feature, error) {
	stmt := db.WithContext(ctx).Model(&domain.Feature{})

	switch {
	case filter.ApplicationID != nil && filter.IncludeGlobal:
		stmt = stmt.Where("application_id = ? OR application_id IS NULL", *filter.ApplicationID)
	case filter.ApplicationID != nil:
		stmt = stmt.Where("application_id = ?", *filter.ApplicationID)
	default:
		stmt = stmt.Where("application_id IS NULL")
	}

	if filter.Category != nil {
		stmt = stmt.Where("category = ?", *filter.Category)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}

	// (sort_order, name) ordering is a contract: it drives UI rendering and
	// migration determinism.
	var items []domain.Feature
	err := stmt.Order("sort_order ASC").Order("name ASC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, feature *domain.Feature) error {
	if feature == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE features
		 SET description = ?, category = ?, allowed_roles = ?, active = ?, icon = ?,
		     display_name = ?, sort_order = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		feature.Description,
		feature.Category,
		feature.AllowedRoles,
		feature.Active,
		feature.Icon,
		feature.DisplayName,
		feature.SortOrder,
		feature.Metadata,
		feature.UpdatedAt,
		feature.ID,
	).Error
}

func (r *repo) CreateField(ctx context.Context, db *gorm.DB, field *domain.CustomField) error {
	return db.WithContext(ctx).Create(field).Error
}

func (r *repo) FindFieldByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CustomField, error) {
	var f domain.CustomField
	err := db.WithContext(ctx).Where("id = ?", id).First(&f).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *repo) FindFieldByName(ctx context.Context, db *gorm.DB, featureID snowflake.ID, fieldName string) (*domain.CustomField, error) {
	var f domain.CustomField
	err := db.WithContext(ctx).
		Where("feature_id = ? AND LOWER(field_name) = LOWER(?)", featureID, fieldName).
		First(&f).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *repo) ListFields(ctx context.Context, db *gorm.DB, featureID snowflake.ID, activeOnly bool) ([]domain.CustomField, error) {
	stmt := db.WithContext(ctx).Where("feature_id = ?", featureID)
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	var items []domain.CustomField
	err := stmt.Order("sort_order ASC").Order("field_name ASC").Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateField(ctx context.Context, db *gorm.DB, field *domain.CustomField) error {
	if field == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE custom_fields
		 SET unit = ?, default_value = ?, min_value = ?, max_value = ?, enum_values = ?,
		     required = ?, sort_order = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		field.Unit,
		field.DefaultValue,
		field.MinValue,
		field.MaxValue,
		field.EnumValues,
		field.Required,
		field.SortOrder,
		field.Active,
		field.UpdatedAt,
		field.ID,
	).Error
}

func (r *repo) DeactivateFields(ctx context.Context, db *gorm.DB, featureID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE custom_fields SET active = ?, updated_at = ? WHERE feature_id = ?`,
		false,
		now,
		featureID,
	).Error
}
