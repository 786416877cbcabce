package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Initialize lazily creates the ledger record for the current period,
	// copying the limit from the plan's configured field value. Calling it
	// again while a current record exists returns that record.
	Initialize(ctx context.Context, req InitializeRequest) (*Response, error)
	// FindCurrent returns the record whose period window contains now.
	FindCurrent(ctx context.Context, req LookupRequest) (*Response, error)
	// Increment atomically adds delta to the current record. It never creates
	// a record: callers must Initialize first.
	Increment(ctx context.Context, req IncrementRequest) (*Response, error)
	// Reset zeroes one record and advances its period window. Idempotent per
	// period: a record whose next reset is still in the future is left alone.
	Reset(ctx context.Context, consumptionID string) (*Response, error)
	// FindDueForReset lists active records whose next reset has passed. The
	// sweep contract: callers reset each returned record individually.
	FindDueForReset(ctx context.Context, limit int) ([]Response, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]Response, error)
}

type InitializeRequest struct {
	SubscriptionID string `json:"subscription_id"`
	SubscriberID   string `json:"subscriber_id"`
	PlanID         string `json:"plan_id"`
	FeatureID      string `json:"feature_id"`
	CustomFieldID  string `json:"custom_field_id"`
	Period         string `json:"period"`
}

type LookupRequest struct {
	SubscriptionID string `json:"subscription_id"`
	FeatureID      string `json:"feature_id"`
	CustomFieldID  string `json:"custom_field_id"`
	Period         string `json:"period"`
}

type IncrementRequest struct {
	SubscriptionID string  `json:"subscription_id"`
	FeatureID      string  `json:"feature_id"`
	CustomFieldID  string  `json:"custom_field_id"`
	Period         string  `json:"period"`
	Delta          float64 `json:"delta"`
}

type Response struct {
	ID              string     `json:"id"`
	SubscriptionID  string     `json:"subscription_id"`
	FeatureID       string     `json:"feature_id"`
	CustomFieldID   string     `json:"custom_field_id"`
	Period          Period     `json:"period"`
	PeriodStart     time.Time  `json:"period_start"`
	PeriodEnd       time.Time  `json:"period_end"`
	Value           float64    `json:"value"`
	LimitValue      float64    `json:"limit_value"`
	IsUnlimited     bool       `json:"is_unlimited"`
	IsLimitExceeded bool       `json:"is_limit_exceeded"`
	LastResetDate   *time.Time `json:"last_reset_date,omitempty"`
	NextResetDate   time.Time  `json:"next_reset_date"`
	ApplicationID   string     `json:"application_id"`
	PlanID          string     `json:"plan_id"`
	SubscriberID    string     `json:"subscriber_id"`
}

var (
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidFeature      = errors.New("invalid_feature")
	ErrInvalidField        = errors.New("invalid_field")
	ErrInvalidPlan         = errors.New("invalid_plan")
	ErrInvalidDelta        = errors.New("invalid_delta")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNoConfiguredLimit   = errors.New("no_configured_limit")
	ErrNoCurrentRecord     = errors.New("no_current_record")
	ErrNotFound            = errors.New("not_found")
)
