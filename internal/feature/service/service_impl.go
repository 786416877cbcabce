package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlement/internal/appcontext"
	"github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("feature.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	category, err := normalizeCategory(req.Category)
	if err != nil {
		return nil, err
	}

	// A feature is either global or owned by exactly one application.
	applicationRaw := strings.TrimSpace(req.ApplicationID)
	if req.Global == (applicationRaw != "") {
		return nil, domain.ErrInvalidScope
	}

	var applicationID *snowflake.ID
	if !req.Global {
		parsed, err := snowflake.ParseString(applicationRaw)
		if err != nil || parsed == 0 {
			return nil, domain.ErrInvalidApplication
		}
		applicationID = &parsed
	}

	existing, err := s.repo.FindByName(ctx, s.db, applicationID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateName
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	record := &domain.Feature{
		ID:            s.genID.Generate(),
		ApplicationID: applicationID,
		Name:          name,
		Description:   trimPtr(req.Description),
		Category:      category,
		Active:        active,
		Icon:          trimPtr(req.Icon),
		DisplayName:   trimPtr(req.DisplayName),
		SortOrder:     req.SortOrder,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if len(req.AllowedRoles) > 0 {
		encoded, err := json.Marshal(req.AllowedRoles)
		if err != nil {
			return nil, err
		}
		record.AllowedRoles = datatypes.JSON(encoded)
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Create(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateName
		}
		return nil, err
	}

	resp := s.toResponse(record)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	item, err := s.findVisible(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListFilter{
		IncludeGlobal: req.IncludeGlobal,
		Category:      req.Category,
		Active:        req.Active,
	}
	if applicationID, ok := appcontext.ApplicationIDFromContext(ctx); ok && applicationID != 0 {
		filter.ApplicationID = &applicationID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	role := strings.TrimSpace(req.Role)
	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		if role != "" && !allowsRole(&item, role) {
			continue
		}
		resp = append(resp, s.toResponse(&item))
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	item, err := s.findVisible(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		item.Description = trimPtr(req.Description)
	}
	if req.Category != nil {
		category, err := normalizeCategory(*req.Category)
		if err != nil {
			return nil, err
		}
		item.Category = category
	}
	if req.AllowedRoles != nil {
		encoded, err := json.Marshal(req.AllowedRoles)
		if err != nil {
			return nil, err
		}
		item.AllowedRoles = datatypes.JSON(encoded)
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if req.Icon != nil {
		item.Icon = trimPtr(req.Icon)
	}
	if req.DisplayName != nil {
		item.DisplayName = trimPtr(req.DisplayName)
	}
	if req.SortOrder != nil {
		item.SortOrder = *req.SortOrder
	}
	if req.Metadata != nil {
		item.Metadata = datatypes.JSONMap(req.Metadata)
	}

	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	resp := s.toResponse(item)
	return &resp, nil
}

// Deactivate soft-deletes the feature and cascades to its custom fields.
// Calling it on an already inactive feature is a no-op.
func (s *Service) Deactivate(ctx context.Context, id string) (*domain.Response, error) {
	item, err := s.findVisible(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if item.Active {
			item.Active = false
			item.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, item); err != nil {
				return err
			}
		}
		return s.repo.DeactivateFields(ctx, tx, item.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("feature deactivated", zap.String("feature_id", item.ID.String()))
	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) AddCustomField(ctx context.Context, req domain.AddCustomFieldRequest) (*domain.FieldResponse, error) {
	featureID, err := snowflake.ParseString(strings.TrimSpace(req.FeatureID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	feature, err := s.repo.FindByID(ctx, s.db, featureID)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, domain.ErrNotFound
	}

	fieldName := strings.TrimSpace(req.FieldName)
	if fieldName == "" {
		return nil, domain.ErrInvalidFieldName
	}
	dataType, err := normalizeFieldType(req.DataType)
	if err != nil {
		return nil, err
	}
	unit, err := normalizeUnit(req.Unit)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindFieldByName(ctx, s.db, featureID, fieldName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateFieldName
	}

	now := time.Now().UTC()
	record := &domain.CustomField{
		ID:           s.genID.Generate(),
		FeatureID:    featureID,
		FieldName:    fieldName,
		DataType:     dataType,
		Unit:         unit,
		DefaultValue: trimPtr(req.DefaultValue),
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		Required:     req.Required,
		SortOrder:    req.SortOrder,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if len(req.EnumValues) > 0 {
		encoded, err := json.Marshal(req.EnumValues)
		if err != nil {
			return nil, err
		}
		record.EnumValues = datatypes.JSON(encoded)
	}

	if err := s.repo.CreateField(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateFieldName
		}
		return nil, err
	}

	resp := toFieldResponse(record)
	return &resp, nil
}

func (s *Service) UpdateCustomField(ctx context.Context, req domain.UpdateCustomFieldRequest) (*domain.FieldResponse, error) {
	fieldID, err := snowflake.ParseString(strings.TrimSpace(req.FieldID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	field, err := s.repo.FindFieldByID(ctx, s.db, fieldID)
	if err != nil {
		return nil, err
	}
	if field == nil {
		return nil, domain.ErrNotFound
	}

	if req.Unit != nil {
		unit, err := normalizeUnit(*req.Unit)
		if err != nil {
			return nil, err
		}
		field.Unit = unit
	}
	if req.DefaultValue != nil {
		field.DefaultValue = trimPtr(req.DefaultValue)
	}
	if req.MinValue != nil {
		field.MinValue = req.MinValue
	}
	if req.MaxValue != nil {
		field.MaxValue = req.MaxValue
	}
	if req.EnumValues != nil {
		encoded, err := json.Marshal(req.EnumValues)
		if err != nil {
			return nil, err
		}
		field.EnumValues = datatypes.JSON(encoded)
	}
	if req.Required != nil {
		field.Required = *req.Required
	}
	if req.SortOrder != nil {
		field.SortOrder = *req.SortOrder
	}
	if req.Active != nil {
		field.Active = *req.Active
	}

	field.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateField(ctx, s.db, field); err != nil {
		return nil, err
	}

	resp := toFieldResponse(field)
	return &resp, nil
}

func (s *Service) ListCustomFields(ctx context.Context, featureID string) ([]domain.FieldResponse, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(featureID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	feature, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListFields(ctx, s.db, parsed, false)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.FieldResponse, 0, len(items))
	for _, item := range items {
		// Reconcile on read: an inactive parent masks its fields even if the
		// deactivation cascade has not reached them yet.
		if !feature.Active && item.Active {
			item.Active = false
		}
		resp = append(resp, toFieldResponse(&item))
	}
	return resp, nil
}

func (s *Service) findVisible(ctx context.Context, id string) (*domain.Feature, error) {
	featureID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, featureID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	// Tenant isolation: a scoped caller only sees globals and its own features.
	if applicationID, ok := appcontext.ApplicationIDFromContext(ctx); ok && applicationID != 0 {
		if item.ApplicationID != nil && *item.ApplicationID != applicationID {
			return nil, domain.ErrNotFound
		}
	}
	return item, nil
}

func (s *Service) toResponse(f *domain.Feature) domain.Response {
	resp := domain.Response{
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
	if len(f.AllowedRoles) > 0 {
		var roles []string
		if err := json.Unmarshal(f.AllowedRoles, &roles); err == nil {
			resp.AllowedRoles = roles
		}
	}
	if len(f.Metadata) > 0 {
		resp.Metadata = map[string]any(f.Metadata)
	}
	return resp
}

func toFieldResponse(f *domain.CustomField) domain.FieldResponse {
	resp := domain.FieldResponse{
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

func allowsRole(f *domain.Feature, role string) bool {
	if len(f.AllowedRoles) == 0 {
		return true
	}
	var roles []string
	if err := json.Unmarshal(f.AllowedRoles, &roles); err != nil {
		return true
	}
	if len(roles) == 0 {
		return true
	}
	for _, candidate := range roles {
		if strings.EqualFold(candidate, role) {
			return true
		}
	}
	return false
}

func normalizeCategory(value domain.Category) (domain.Category, error) {
	switch domain.Category(strings.ToUpper(strings.TrimSpace(string(value)))) {
	case domain.CategoryCommunication:
		return domain.CategoryCommunication, nil
	case domain.CategoryStorage:
		return domain.CategoryStorage, nil
	case domain.CategoryAnalytics:
		return domain.CategoryAnalytics, nil
	case domain.CategoryIntegration:
		return domain.CategoryIntegration, nil
	case domain.CategorySecurity:
		return domain.CategorySecurity, nil
	case domain.CategorySupport:
		return domain.CategorySupport, nil
	case domain.CategoryGeneral, "":
		return domain.CategoryGeneral, nil
	default:
		return "", domain.ErrInvalidCategory
	}
}

func normalizeFieldType(value domain.FieldType) (domain.FieldType, error) {
	switch domain.FieldType(strings.ToLower(strings.TrimSpace(string(value)))) {
	case domain.FieldTypeNumber:
		return domain.FieldTypeNumber, nil
	case domain.FieldTypeString:
		return domain.FieldTypeString, nil
	case domain.FieldTypeBoolean:
		return domain.FieldTypeBoolean, nil
	case domain.FieldTypeDate:
		return domain.FieldTypeDate, nil
	case domain.FieldTypeEnum:
		return domain.FieldTypeEnum, nil
	case domain.FieldTypeStructured:
		return domain.FieldTypeStructured, nil
	default:
		return "", domain.ErrInvalidFieldType
	}
}

func normalizeUnit(value domain.Unit) (domain.Unit, error) {
	normalized := domain.Unit(strings.ToLower(strings.TrimSpace(string(value))))
	if normalized == "" {
		return domain.UnitNone, nil
	}
	switch normalized {
	case domain.UnitBytes, domain.UnitKB, domain.UnitMB, domain.UnitGB, domain.UnitTB,
		domain.UnitEmails, domain.UnitSMS, domain.UnitRequests, domain.UnitUsers,
		domain.UnitItems, domain.UnitPercentage, domain.UnitDays, domain.UnitHours,
		domain.UnitNone:
		return normalized, nil
	default:
		return "", domain.ErrInvalidUnit
	}
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
