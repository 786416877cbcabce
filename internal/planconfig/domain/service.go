package domain

import (
	"context"
	"errors"
	"time"

	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
)

type Service interface {
	// ConfigurePlanFeatures upserts a batch of feature configurations for one
	// plan. The batch is all-or-nothing.
	ConfigurePlanFeatures(ctx context.Context, req ConfigureRequest) ([]ConfigResponse, error)
	AddFeatureToPlan(ctx context.Context, req AddFeatureRequest) (*ConfigResponse, error)
	UpdateFeatureConfiguration(ctx context.Context, req UpdateConfigRequest) (*ConfigResponse, error)
	RemoveFeatureFromPlan(ctx context.Context, planID, featureID, applicationID string) error
	// ResolvePlanFeatures is a pure read joining configs, features, fields and
	// values, sorted by sort order.
	ResolvePlanFeatures(ctx context.Context, planID, applicationID string) ([]ResolvedFeature, error)
	ReorderFeatures(ctx context.Context, req ReorderRequest) error
}

type FieldValueInput struct {
	CustomFieldID string `json:"custom_field_id"`
	Value         string `json:"value"`
}

type FeatureConfigInput struct {
	FeatureID     string            `json:"feature_id"`
	Status        ConfigStatus      `json:"status"`
	DisplayName   *string           `json:"display_name"`
	Description   *string           `json:"description"`
	Highlight     bool              `json:"highlight"`
	HighlightText *string           `json:"highlight_text"`
	SortOrder     int               `json:"sort_order"`
	Values        []FieldValueInput `json:"values"`
}

type ConfigureRequest struct {
	PlanID        string               `json:"plan_id"`
	ApplicationID string               `json:"application_id"`
	Configs       []FeatureConfigInput `json:"configs"`
}

type AddFeatureRequest struct {
	PlanID        string             `json:"plan_id"`
	ApplicationID string             `json:"application_id"`
	Config        FeatureConfigInput `json:"config"`
}

type UpdateConfigRequest struct {
	PlanID        string            `json:"plan_id"`
	ApplicationID string            `json:"application_id"`
	FeatureID     string            `json:"feature_id"`
	Status        *ConfigStatus     `json:"status,omitempty"`
	DisplayName   *string           `json:"display_name,omitempty"`
	Description   *string           `json:"description,omitempty"`
	Highlight     *bool             `json:"highlight,omitempty"`
	HighlightText *string           `json:"highlight_text,omitempty"`
	SortOrder     *int              `json:"sort_order,omitempty"`
	Values        []FieldValueInput `json:"values,omitempty"`
}

type ReorderEntry struct {
	FeatureID string `json:"feature_id"`
	SortOrder int    `json:"sort_order"`
}

type ReorderRequest struct {
	PlanID        string         `json:"plan_id"`
	ApplicationID string         `json:"application_id"`
	Orders        []ReorderEntry `json:"orders"`
}

type ValueResponse struct {
	ID            string `json:"id"`
	CustomFieldID string `json:"custom_field_id"`
	RawValue      string `json:"raw_value"`
	IsUnlimited   bool   `json:"is_unlimited"`
	DisplayValue  string `json:"display_value"`
}

type ConfigResponse struct {
	ID            string          `json:"id"`
	PlanID        string          `json:"plan_id"`
	FeatureID     string          `json:"feature_id"`
	ApplicationID string          `json:"application_id"`
	Status        ConfigStatus    `json:"status"`
	DisplayName   *string         `json:"display_name,omitempty"`
	Description   *string         `json:"description,omitempty"`
	Highlight     bool            `json:"highlight"`
	HighlightText *string         `json:"highlight_text,omitempty"`
	SortOrder     int             `json:"sort_order"`
	Active        bool            `json:"active"`
	Values        []ValueResponse `json:"values,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ResolvedFeature is the read-path shape consumed by billing and UI callers.
type ResolvedFeature struct {
	Config  ConfigResponse         `json:"config"`
	Feature featuredomain.Response `json:"feature"`
	Fields  []ResolvedField        `json:"fields"`
}

type ResolvedField struct {
	Field featuredomain.FieldResponse `json:"field"`
	Value *ValueResponse              `json:"value,omitempty"`
}

var (
	ErrInvalidPlan        = errors.New("invalid_plan")
	ErrInvalidApplication = errors.New("invalid_application")
	ErrInvalidFeatureID   = errors.New("invalid_feature_id")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidFieldValue  = errors.New("invalid_field_value")
	ErrForeignFeature     = errors.New("foreign_feature")
	ErrUnknownFeature     = errors.New("unknown_feature")
	ErrUnknownField       = errors.New("unknown_field")
	ErrNotFound           = errors.New("not_found")
)
