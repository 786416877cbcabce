package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/config"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/planconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	FeatureRepo featuredomain.Repository
	Display     *config.DisplayConfigHolder
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	featureRepo featuredomain.Repository
	display     *config.DisplayConfigHolder
	genID       *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("planconfig.service"),
		repo:        p.Repo,
		featureRepo: p.FeatureRepo,
		display:     p.Display,
		genID:       p.GenID,
	}
}

// validatedConfig is one batch entry with every reference resolved and every
// value parsed, so the write phase cannot fail validation mid-transaction.
type validatedConfig struct {
	input   domain.FeatureConfigInput
	feature *featuredomain.Feature
	status  domain.ConfigStatus
	values  []preparedValue
}

type preparedValue struct {
	field       *featuredomain.CustomField
	raw         string
	isUnlimited bool
	display     string
}

func (s *Service) ConfigurePlanFeatures(ctx context.Context, req domain.ConfigureRequest) ([]domain.ConfigResponse, error) {
	planID, applicationID, err := parsePlanScope(req.PlanID, req.ApplicationID)
	if err != nil {
		return nil, err
	}

	// Validate the whole batch before touching the store.
	validated := make([]validatedConfig, 0, len(req.Configs))
	for _, input := range req.Configs {
		entry, err := s.validateConfigInput(ctx, applicationID, input)
		if err != nil {
			return nil, err
		}
		validated = append(validated, entry)
	}

	var resp []domain.ConfigResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resp = resp[:0]
		for _, entry := range validated {
			cfg, err := s.upsertConfig(ctx, tx, planID, applicationID, entry)
			if err != nil {
				return err
			}
			values, err := s.repo.ListValuesByConfig(ctx, tx, cfg.ID)
			if err != nil {
				return err
			}
			resp = append(resp, toConfigResponse(cfg, values))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) AddFeatureToPlan(ctx context.Context, req domain.AddFeatureRequest) (*domain.ConfigResponse, error) {
	configs, err := s.ConfigurePlanFeatures(ctx, domain.ConfigureRequest{
		PlanID:        req.PlanID,
		ApplicationID: req.ApplicationID,
		Configs:       []domain.FeatureConfigInput{req.Config},
	})
	if err != nil {
		return nil, err
	}
	return &configs[0], nil
}

func (s *Service) UpdateFeatureConfiguration(ctx context.Context, req domain.UpdateConfigRequest) (*domain.ConfigResponse, error) {
	planID, applicationID, err := parsePlanScope(req.PlanID, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	featureID, err := snowflake.ParseString(strings.TrimSpace(req.FeatureID))
	if err != nil {
		return nil, domain.ErrInvalidFeatureID
	}

	cfg, err := s.repo.FindConfig(ctx, s.db, planID, featureID)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.ApplicationID != applicationID {
		return nil, domain.ErrUnknownFeature
	}

	if req.Status != nil {
		status, err := normalizeStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		cfg.Status = status
	}
	if req.DisplayName != nil {
		cfg.DisplayName = trimPtr(req.DisplayName)
	}
	if req.Description != nil {
		cfg.Description = trimPtr(req.Description)
	}
	if req.Highlight != nil {
		cfg.Highlight = *req.Highlight
	}
	if req.HighlightText != nil {
		cfg.HighlightText = trimPtr(req.HighlightText)
	}
	if req.SortOrder != nil {
		cfg.SortOrder = *req.SortOrder
	}

	prepared := make([]preparedValue, 0, len(req.Values))
	for _, valueInput := range req.Values {
		value, err := s.prepareValue(ctx, featureID, valueInput)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, value)
	}

	cfg.UpdatedAt = time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateConfig(ctx, tx, cfg); err != nil {
			return err
		}
		return s.writeValues(ctx, tx, cfg, prepared)
	})
	if err != nil {
		return nil, err
	}

	values, err := s.repo.ListValuesByConfig(ctx, s.db, cfg.ID)
	if err != nil {
		return nil, err
	}
	resp := toConfigResponse(cfg, values)
	return &resp, nil
}

// RemoveFeatureFromPlan drops the configuration and its dependent values.
func (s *Service) RemoveFeatureFromPlan(ctx context.Context, planIDRaw, featureIDRaw, applicationIDRaw string) error {
	planID, applicationID, err := parsePlanScope(planIDRaw, applicationIDRaw)
	if err != nil {
		return err
	}
	featureID, err := snowflake.ParseString(strings.TrimSpace(featureIDRaw))
	if err != nil {
		return domain.ErrInvalidFeatureID
	}

	cfg, err := s.repo.FindConfig(ctx, s.db, planID, featureID)
	if err != nil {
		return err
	}
	if cfg == nil || cfg.ApplicationID != applicationID {
		return domain.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteValuesByConfig(ctx, tx, cfg.ID); err != nil {
			return err
		}
		return s.repo.DeleteConfig(ctx, tx, cfg.ID)
	})
}

func (s *Service) ResolvePlanFeatures(ctx context.Context, planIDRaw, applicationIDRaw string) ([]domain.ResolvedFeature, error) {
	planID, applicationID, err := parsePlanScope(planIDRaw, applicationIDRaw)
	if err != nil {
		return nil, err
	}

	configs, err := s.repo.ListConfigs(ctx, s.db, applicationID, planID, true)
	if err != nil {
		return nil, err
	}

	resolved := make([]domain.ResolvedFeature, 0, len(configs))
	for _, cfg := range configs {
		feature, err := s.featureRepo.FindByID(ctx, s.db, cfg.FeatureID)
		if err != nil {
			return nil, err
		}
		if feature == nil || !feature.Active {
			continue
		}

		fields, err := s.featureRepo.ListFields(ctx, s.db, cfg.FeatureID, true)
		if err != nil {
			return nil, err
		}
		values, err := s.repo.ListValuesByConfig(ctx, s.db, cfg.ID)
		if err != nil {
			return nil, err
		}
		byField := make(map[snowflake.ID]domain.CustomFieldValue, len(values))
		for _, value := range values {
			byField[value.CustomFieldID] = value
		}

		entry := domain.ResolvedFeature{
			Config:  toConfigResponse(&cfg, values),
			Feature: toFeatureResponse(feature),
		}
		for _, field := range fields {
			resolvedField := domain.ResolvedField{Field: toFieldResponse(&field)}
			if value, ok := byField[field.ID]; ok {
				vr := toValueResponse(&value)
				resolvedField.Value = &vr
			}
			entry.Fields = append(entry.Fields, resolvedField)
		}
		resolved = append(resolved, entry)
	}
	return resolved, nil
}

func (s *Service) ReorderFeatures(ctx context.Context, req domain.ReorderRequest) error {
	planID, applicationID, err := parsePlanScope(req.PlanID, req.ApplicationID)
	if err != nil {
		return err
	}

	configs, err := s.repo.ListConfigs(ctx, s.db, applicationID, planID, false)
	if err != nil {
		return err
	}
	byFeature := make(map[snowflake.ID]*domain.PlanFeatureConfig, len(configs))
	for i := range configs {
		byFeature[configs[i].FeatureID] = &configs[i]
	}

	type orderUpdate struct {
		configID  snowflake.ID
		sortOrder int
	}
	updates := make([]orderUpdate, 0, len(req.Orders))
	for _, order := range req.Orders {
		featureID, err := snowflake.ParseString(strings.TrimSpace(order.FeatureID))
		if err != nil {
			return domain.ErrInvalidFeatureID
		}
		cfg, ok := byFeature[featureID]
		if !ok {
			return domain.ErrUnknownFeature
		}
		updates = append(updates, orderUpdate{configID: cfg.ID, sortOrder: order.SortOrder})
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, update := range updates {
			if err := s.repo.UpdateSortOrder(ctx, tx, update.configID, update.sortOrder, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) validateConfigInput(ctx context.Context, applicationID snowflake.ID, input domain.FeatureConfigInput) (validatedConfig, error) {
	featureID, err := snowflake.ParseString(strings.TrimSpace(input.FeatureID))
	if err != nil {
		return validatedConfig{}, domain.ErrInvalidFeatureID
	}

	feature, err := s.featureRepo.FindByID(ctx, s.db, featureID)
	if err != nil {
		return validatedConfig{}, err
	}
	if feature == nil {
		return validatedConfig{}, domain.ErrUnknownFeature
	}
	// A plan may only carry globals or its own application's features.
	if feature.ApplicationID != nil && *feature.ApplicationID != applicationID {
		return validatedConfig{}, domain.ErrForeignFeature
	}

	status, err := normalizeStatus(input.Status)
	if err != nil {
		return validatedConfig{}, err
	}

	values := make([]preparedValue, 0, len(input.Values))
	for _, valueInput := range input.Values {
		value, err := s.prepareValue(ctx, featureID, valueInput)
		if err != nil {
			return validatedConfig{}, err
		}
		values = append(values, value)
	}

	return validatedConfig{input: input, feature: feature, status: status, values: values}, nil
}

func (s *Service) prepareValue(ctx context.Context, featureID snowflake.ID, input domain.FieldValueInput) (preparedValue, error) {
	fieldID, err := snowflake.ParseString(strings.TrimSpace(input.CustomFieldID))
	if err != nil {
		return preparedValue{}, domain.ErrUnknownField
	}
	field, err := s.featureRepo.FindFieldByID(ctx, s.db, fieldID)
	if err != nil {
		return preparedValue{}, err
	}
	if field == nil || field.FeatureID != featureID {
		return preparedValue{}, domain.ErrUnknownField
	}

	parsed, err := featuredomain.ParseFieldValue(field.DataType, input.Value)
	if err != nil {
		return preparedValue{}, domain.ErrInvalidFieldValue
	}
	if err := parsed.ValidateAgainst(field); err != nil {
		return preparedValue{}, domain.ErrInvalidFieldValue
	}

	return preparedValue{
		field:       field,
		raw:         parsed.Raw(),
		isUnlimited: parsed.IsUnlimited(),
		display:     domain.DisplayFieldValue(parsed, field.Unit, s.display.Current()),
	}, nil
}

func (s *Service) upsertConfig(ctx context.Context, tx *gorm.DB, planID, applicationID snowflake.ID, entry validatedConfig) (*domain.PlanFeatureConfig, error) {
	now := time.Now().UTC()

	cfg, err := s.repo.FindConfig(ctx, tx, planID, entry.feature.ID)
	if err != nil {
		return nil, err
	}
	isNew := cfg == nil
	if isNew {
		cfg = &domain.PlanFeatureConfig{
			ID:            s.genID.Generate(),
			PlanID:        planID,
			FeatureID:     entry.feature.ID,
			ApplicationID: applicationID,
			CreatedAt:     now,
		}
	}
	cfg.Status = entry.status
	cfg.DisplayName = trimPtr(entry.input.DisplayName)
	cfg.Description = trimPtr(entry.input.Description)
	cfg.Highlight = entry.input.Highlight
	cfg.HighlightText = trimPtr(entry.input.HighlightText)
	cfg.SortOrder = entry.input.SortOrder
	cfg.Active = true
	cfg.UpdatedAt = now

	if isNew {
		if err := s.repo.CreateConfig(ctx, tx, cfg); err != nil {
			return nil, err
		}
	} else {
		if err := s.repo.UpdateConfig(ctx, tx, cfg); err != nil {
			return nil, err
		}
	}

	if err := s.writeValues(ctx, tx, cfg, entry.values); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Service) writeValues(ctx context.Context, tx *gorm.DB, cfg *domain.PlanFeatureConfig, values []preparedValue) error {
	now := time.Now().UTC()
	for _, value := range values {
		record := &domain.CustomFieldValue{
			ID:            s.genID.Generate(),
			ConfigID:      cfg.ID,
			CustomFieldID: value.field.ID,
			PlanID:        cfg.PlanID,
			FeatureID:     cfg.FeatureID,
			ApplicationID: cfg.ApplicationID,
			RawValue:      value.raw,
			IsUnlimited:   value.isUnlimited,
			DisplayValue:  value.display,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.UpsertValue(ctx, tx, record); err != nil {
			return err
		}
	}
	return nil
}

func toConfigResponse(cfg *domain.PlanFeatureConfig, values []domain.CustomFieldValue) domain.ConfigResponse {
	resp := domain.ConfigResponse{
		ID:            cfg.ID.String(),
		PlanID:        cfg.PlanID.String(),
		FeatureID:     cfg.FeatureID.String(),
		ApplicationID: cfg.ApplicationID.String(),
		Status:        cfg.Status,
		DisplayName:   cfg.DisplayName,
		Description:   cfg.Description,
		Highlight:     cfg.Highlight,
		HighlightText: cfg.HighlightText,
		SortOrder:     cfg.SortOrder,
		Active:        cfg.Active,
		CreatedAt:     cfg.CreatedAt,
		UpdatedAt:     cfg.UpdatedAt,
	}
	for _, value := range values {
		resp.Values = append(resp.Values, toValueResponse(&value))
	}
	return resp
}

func toValueResponse(value *domain.CustomFieldValue) domain.ValueResponse {
	return domain.ValueResponse{
		ID:            value.ID.String(),
		CustomFieldID: value.CustomFieldID.String(),
		RawValue:      value.RawValue,
		IsUnlimited:   value.IsUnlimited,
		DisplayValue:  value.DisplayValue,
	}
}

func toFeatureResponse(f *featuredomain.Feature) featuredomain.Response {
	resp := featuredomain.Response{
		ID:          f.ID.String(),
		Global:      f.IsGlobal(),
		Name:        f.Name,
		Description: f.Description,
		Category:    f.Category,
		Active:      f.Active,
		Icon:        f.Icon,
		DisplayName: f.DisplayName,
		SortOrder:   f.SortOrder,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	if f.ApplicationID != nil {
		appID := f.ApplicationID.String()
		resp.ApplicationID = &appID
	}
	return resp
}

func toFieldResponse(f *featuredomain.CustomField) featuredomain.FieldResponse {
	resp := featuredomain.FieldResponse{
		ID:           f.ID.String(),
		FeatureID:    f.FeatureID.String(),
		FieldName:    f.FieldName,
		DataType:     f.DataType,
		Unit:         f.Unit,
		DefaultValue: f.DefaultValue,
		MinValue:     f.MinValue,
		MaxValue:     f.MaxValue,
		Required:     f.Required,
		SortOrder:    f.SortOrder,
		Active:       f.Active,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
	if values, err := f.AllowedEnumValues(); err == nil {
		resp.EnumValues = values
	}
	return resp
}

func normalizeStatus(value domain.ConfigStatus) (domain.ConfigStatus, error) {
	switch domain.ConfigStatus(strings.ToLower(strings.TrimSpace(string(value)))) {
	case domain.StatusEnabled:
		return domain.StatusEnabled, nil
	case domain.StatusDisabled:
		return domain.StatusDisabled, nil
	case domain.StatusLimited:
		return domain.StatusLimited, nil
	case domain.StatusUnlimited:
		return domain.StatusUnlimited, nil
	default:
		return "", domain.ErrInvalidStatus
	}
}

func parsePlanScope(planIDRaw, applicationIDRaw string) (snowflake.ID, snowflake.ID, error) {
	planID, err := snowflake.ParseString(strings.TrimSpace(planIDRaw))
	if err != nil || planID == 0 {
		return 0, 0, domain.ErrInvalidPlan
	}
	applicationID, err := snowflake.ParseString(strings.TrimSpace(applicationIDRaw))
	if err != nil || applicationID == 0 {
		return 0, 0, domain.ErrInvalidApplication
	}
	return planID, applicationID, nil
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
