package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Deactivate(ctx context.Context, id string) (*Response, error)

	AddCustomField(ctx context.Context, req AddCustomFieldRequest) (*FieldResponse, error)
	UpdateCustomField(ctx context.Context, req UpdateCustomFieldRequest) (*FieldResponse, error)
	ListCustomFields(ctx context.Context, featureID string) ([]FieldResponse, error)
}

type CreateRequest struct {
	Name          string         `json:"name"`
	Description   *string        `json:"description"`
	Category      Category       `json:"category"`
	Global        bool           `json:"global"`
	ApplicationID string         `json:"application_id"`
	AllowedRoles  []string       `json:"allowed_roles"`
	Active        *bool          `json:"active"`
	Icon          *string        `json:"icon"`
	DisplayName   *string        `json:"display_name"`
	SortOrder     int            `json:"sort_order"`
	Metadata      map[string]any `json:"metadata"`
}

type ListRequest struct {
	IncludeGlobal bool
	Category      *Category
	Role          string
	Active        *bool
}

type UpdateRequest struct {
	ID           string         `json:"id"`
	Description  *string        `json:"description,omitempty"`
	Category     *Category      `json:"category,omitempty"`
	AllowedRoles []string       `json:"allowed_roles,omitempty"`
	Active       *bool          `json:"active,omitempty"`
	Icon         *string        `json:"icon,omitempty"`
	DisplayName  *string        `json:"display_name,omitempty"`
	SortOrder    *int           `json:"sort_order,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type AddCustomFieldRequest struct {
	FeatureID    string    `json:"feature_id"`
	FieldName    string    `json:"field_name"`
	DataType     FieldType `json:"data_type"`
	Unit         Unit      `json:"unit"`
	DefaultValue *string   `json:"default_value"`
	MinValue     *float64  `json:"min_value"`
	MaxValue     *float64  `json:"max_value"`
	EnumValues   []string  `json:"enum_values"`
	Required     bool      `json:"required"`
	SortOrder    int       `json:"sort_order"`
}

type UpdateCustomFieldRequest struct {
	FieldID      string   `json:"field_id"`
	Unit         *Unit    `json:"unit,omitempty"`
	DefaultValue *string  `json:"default_value,omitempty"`
	MinValue     *float64 `json:"min_value,omitempty"`
	MaxValue     *float64 `json:"max_value,omitempty"`
	EnumValues   []string `json:"enum_values,omitempty"`
	Required     *bool    `json:"required,omitempty"`
	SortOrder    *int     `json:"sort_order,omitempty"`
	Active       *bool    `json:"active,omitempty"`
}

type Response struct {
	ID            string         `json:"id"`
	ApplicationID *string        `json:"application_id,omitempty"`
	Global        bool           `json:"global"`
	Name          string         `json:"name"`
	Description   *string        `json:"description,omitempty"`
	Category      Category       `json:"category"`
	AllowedRoles  []string       `json:"allowed_roles,omitempty"`
	Active        bool           `json:"active"`
	Icon          *string        `json:"icon,omitempty"`
	DisplayName   *string        `json:"display_name,omitempty"`
	SortOrder     int            `json:"sort_order"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type FieldResponse struct {
	ID           string    `json:"id"`
	FeatureID    string    `json:"feature_id"`
	FieldName    string    `json:"field_name"`
	DataType     FieldType `json:"data_type"`
	Unit         Unit      `json:"unit"`
	DefaultValue *string   `json:"default_value,omitempty"`
	MinValue     *float64  `json:"min_value,omitempty"`
	MaxValue     *float64  `json:"max_value,omitempty"`
	EnumValues   []string  `json:"enum_values,omitempty"`
	Required     bool      `json:"required"`
	SortOrder    int       `json:"sort_order"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	ErrInvalidApplication = errors.New("invalid_application")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidCategory    = errors.New("invalid_category")
	ErrInvalidFieldName   = errors.New("invalid_field_name")
	ErrInvalidFieldType   = errors.New("invalid_field_type")
	ErrInvalidUnit        = errors.New("invalid_unit")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidScope       = errors.New("invalid_scope")
	ErrDuplicateName      = errors.New("duplicate_name")
	ErrDuplicateFieldName = errors.New("duplicate_field_name")
	ErrNotFound           = errors.New("not_found")
)
