package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/consumption/domain"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	obsmetrics "github.com/smallbiznis/entitlement/internal/observability/metrics"
	planconfigdomain "github.com/smallbiznis/entitlement/internal/planconfig/domain"
	"github.com/smallbiznis/entitlement/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	PlanRepo planconfigdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	planRepo planconfigdomain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("consumption.service"),
		repo:     p.Repo,
		planRepo: p.PlanRepo,
		genID:    p.GenID,
		clock:    p.Clock,
	}
}

func (s *Service) Initialize(ctx context.Context, req domain.InitializeRequest) (*domain.Response, error) {
	subscriptionID, err := parseID(req.SubscriptionID, domain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}
	subscriberID, err := parseID(req.SubscriberID, domain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}
	planID, err := parseID(req.PlanID, domain.ErrInvalidPlan)
	if err != nil {
		return nil, err
	}
	featureID, err := parseID(req.FeatureID, domain.ErrInvalidFeature)
	if err != nil {
		return nil, err
	}
	customFieldID, err := parseID(req.CustomFieldID, domain.ErrInvalidField)
	if err != nil {
		return nil, err
	}
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}

	key := domain.Key{
		SubscriptionID: subscriptionID,
		FeatureID:      featureID,
		CustomFieldID:  customFieldID,
		Period:         period,
	}
	now := s.clock.Now()

	existing, err := s.repo.FindCurrent(ctx, s.db, key, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		resp := toResponse(existing)
		return &resp, nil
	}

	// Copy the limit from the plan's configured value. It stays frozen for
	// the life of the record: later plan edits do not rewrite history.
	configured, err := s.planRepo.FindValue(ctx, s.db, planID, featureID, customFieldID)
	if err != nil {
		return nil, err
	}
	if configured == nil {
		return nil, domain.ErrNoConfiguredLimit
	}

	limit := featuredomain.UnlimitedValue
	isUnlimited := configured.IsUnlimited
	if !isUnlimited {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(configured.RawValue), 64)
		if err != nil {
			return nil, domain.ErrNoConfiguredLimit
		}
		limit = parsed
		if limit == featuredomain.UnlimitedValue {
			isUnlimited = true
		}
	}

	periodEnd := period.Advance(now)
	record := &domain.SubscriptionConsumption{
		ID:             s.genID.Generate(),
		SubscriptionID: subscriptionID,
		FeatureID:      featureID,
		CustomFieldID:  customFieldID,
		Period:         period,
		PeriodStart:    now,
		PeriodEnd:      periodEnd,
		Value:          0,
		LimitValue:     limit,
		IsUnlimited:    isUnlimited,
		NextResetDate:  periodEnd,
		Active:         true,
		ApplicationID:  configured.ApplicationID,
		PlanID:         planID,
		SubscriberID:   subscriberID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, s.db, record); err != nil {
		// A concurrent initializer won the race on the unique key; theirs is
		// the current record.
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindCurrent(ctx, s.db, key, now)
			if findErr == nil && existing != nil {
				resp := toResponse(existing)
				return &resp, nil
			}
		}
		return nil, err
	}

	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) FindCurrent(ctx context.Context, req domain.LookupRequest) (*domain.Response, error) {
	key, err := parseKey(req.SubscriptionID, req.FeatureID, req.CustomFieldID, req.Period)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindCurrent(ctx, s.db, key, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNoCurrentRecord
	}
	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) Increment(ctx context.Context, req domain.IncrementRequest) (*domain.Response, error) {
	if req.Delta <= 0 {
		return nil, domain.ErrInvalidDelta
	}
	key, err := parseKey(req.SubscriptionID, req.FeatureID, req.CustomFieldID, req.Period)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record, err := s.repo.FindCurrent(ctx, s.db, key, now)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// Never create implicitly: ledger initialization is the caller's job.
		return nil, domain.ErrNoCurrentRecord
	}

	rows, err := s.repo.Increment(ctx, s.db, record.ID, req.Delta, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, domain.ErrNoCurrentRecord
	}

	updated, err := s.repo.FindByID(ctx, s.db, record.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrNoCurrentRecord
	}

	metrics := obsmetrics.Engine()
	metrics.IncIncrement(string(key.Period))
	if updated.IsLimitExceeded && !record.IsLimitExceeded {
		metrics.IncLimitExceeded(string(key.Period))
		s.log.Info("consumption limit exceeded",
			zap.String("subscription_id", key.SubscriptionID.String()),
			zap.String("feature_id", key.FeatureID.String()),
			zap.Float64("value", updated.Value),
			zap.Float64("limit", updated.LimitValue),
		)
	}

	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) Reset(ctx context.Context, consumptionID string) (*domain.Response, error) {
	id, err := parseID(consumptionID, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}

	now := s.clock.Now()
	if record.NextResetDate.After(now) {
		// Another sweep pass already advanced this record.
		resp := toResponse(record)
		return &resp, nil
	}

	window := domain.ResetWindow{
		PeriodStart:   now,
		PeriodEnd:     record.Period.Advance(now),
		NextResetDate: record.Period.Advance(now),
		ResetAt:       now,
	}
	rows, err := s.repo.Reset(ctx, s.db, id, window, now)
	if err != nil {
		return nil, err
	}
	if rows > 0 {
		obsmetrics.Engine().AddSweepResets(1)
	}

	updated, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) FindDueForReset(ctx context.Context, limit int) ([]domain.Response, error) {
	items, err := s.repo.FindDueForReset(ctx, s.db, s.clock.Now(), limit)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(&item))
	}
	return resp, nil
}

func (s *Service) ListBySubscription(ctx context.Context, subscriptionID string) ([]domain.Response, error) {
	parsed, err := parseID(subscriptionID, domain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListBySubscription(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(&item))
	}
	return resp, nil
}

func parseKey(subscriptionID, featureID, customFieldID, period string) (domain.Key, error) {
	sub, err := parseID(subscriptionID, domain.ErrInvalidSubscription)
	if err != nil {
		return domain.Key{}, err
	}
	feat, err := parseID(featureID, domain.ErrInvalidFeature)
	if err != nil {
		return domain.Key{}, err
	}
	field, err := parseID(customFieldID, domain.ErrInvalidField)
	if err != nil {
		return domain.Key{}, err
	}
	parsed, err := domain.ParsePeriod(period)
	if err != nil {
		return domain.Key{}, err
	}
	return domain.Key{SubscriptionID: sub, FeatureID: feat, CustomFieldID: field, Period: parsed}, nil
}

func parseID(raw string, onInvalid error) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || parsed == 0 {
		return 0, onInvalid
	}
	return parsed, nil
}

func toResponse(record *domain.SubscriptionConsumption) domain.Response {
	return domain.Response{
		ID:              record.ID.String(),
		SubscriptionID:  record.SubscriptionID.String(),
		FeatureID:       record.FeatureID.String(),
		CustomFieldID:   record.CustomFieldID.String(),
		Period:          record.Period,
		PeriodStart:     record.PeriodStart,
		PeriodEnd:       record.PeriodEnd,
		Value:           record.Value,
		LimitValue:      record.LimitValue,
		IsUnlimited:     record.IsUnlimited,
		IsLimitExceeded: record.IsLimitExceeded,
		LastResetDate:   record.LastResetDate,
		NextResetDate:   record.NextResetDate,
		ApplicationID:   record.ApplicationID.String(),
		PlanID:          record.PlanID.String(),
		SubscriberID:    record.SubscriberID.String(),
	}
}
