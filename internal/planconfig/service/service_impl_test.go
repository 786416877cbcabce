package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/entitlement/internal/config"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	featurerepo "github.com/smallbiznis/entitlement/internal/feature/repository"
	"github.com/smallbiznis/entitlement/internal/planconfig/domain"
	"github.com/smallbiznis/entitlement/internal/planconfig/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	service domain.Service
	db      *gorm.DB
	node    *snowflake.Node

	applicationID snowflake.ID
	planID        snowflake.ID
	feature       *featuredomain.Feature
	limitField    *featuredomain.CustomField
}

func setupPlanConfigService(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(
		&featuredomain.Feature{},
		&featuredomain.CustomField{},
		&domain.PlanFeatureConfig{},
		&domain.CustomFieldValue{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	display, err := config.NewDisplayConfigHolder(config.Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("display holder: %v", err)
	}

	f := &fixture{
		db:            db,
		node:          node,
		applicationID: node.Generate(),
		planID:        node.Generate(),
	}
	f.service = New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
		FeatureRepo: featurerepo.Provide(),
		Display:     display,
	})
	f.feature, f.limitField = f.seedFeature(t, "email_sending", &f.applicationID)
	return f
}

func (f *fixture) seedFeature(t *testing.T, name string, applicationID *snowflake.ID) (*featuredomain.Feature, *featuredomain.CustomField) {
	t.Helper()
	now := time.Now().UTC()
	feature := &featuredomain.Feature{
		ID:            f.node.Generate(),
		ApplicationID: applicationID,
		Name:          name,
		Category:      featuredomain.CategoryCommunication,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := f.db.Create(feature).Error; err != nil {
		t.Fatalf("seed feature: %v", err)
	}
	field := &featuredomain.CustomField{
		ID:        f.node.Generate(),
		FeatureID: feature.ID,
		FieldName: "monthly_limit",
		DataType:  featuredomain.FieldTypeNumber,
		Unit:      featuredomain.UnitEmails,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := f.db.Create(field).Error; err != nil {
		t.Fatalf("seed field: %v", err)
	}
	return feature, field
}

func (f *fixture) configure(t *testing.T, value string) []domain.ConfigResponse {
	t.Helper()
	resp, err := f.service.ConfigurePlanFeatures(context.Background(), domain.ConfigureRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Configs: []domain.FeatureConfigInput{{
			FeatureID: f.feature.ID.String(),
			Status:    domain.StatusLimited,
			Values: []domain.FieldValueInput{{
				CustomFieldID: f.limitField.ID.String(),
				Value:         value,
			}},
		}},
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	return resp
}

func TestConfigurePlanFeaturesRendersValues(t *testing.T) {
	f := setupPlanConfigService(t)

	resp := f.configure(t, "10")
	if len(resp) != 1 {
		t.Fatalf("expected one config, got %d", len(resp))
	}
	cfg := resp[0]
	if cfg.Status != domain.StatusLimited {
		t.Fatalf("unexpected status %q", cfg.Status)
	}
	if len(cfg.Values) != 1 {
		t.Fatalf("expected one value, got %d", len(cfg.Values))
	}
	value := cfg.Values[0]
	if value.RawValue != "10" || value.IsUnlimited {
		t.Fatalf("unexpected value: %+v", value)
	}
	if value.DisplayValue != "10 emails/month" {
		t.Fatalf("display value: got %q", value.DisplayValue)
	}
}

func TestConfigurePlanFeaturesUnlimitedSentinel(t *testing.T) {
	f := setupPlanConfigService(t)

	resp := f.configure(t, "-1")
	value := resp[0].Values[0]
	if !value.IsUnlimited {
		t.Fatalf("expected unlimited flag on %+v", value)
	}
	if value.DisplayValue != "Unlimited" {
		t.Fatalf("display value: got %q", value.DisplayValue)
	}
}

func TestConfigurePlanFeaturesIdempotent(t *testing.T) {
	f := setupPlanConfigService(t)

	first := f.configure(t, "10")
	second := f.configure(t, "25")

	if first[0].ID != second[0].ID {
		t.Fatalf("reconfigure must update in place, got %s then %s", first[0].ID, second[0].ID)
	}

	var configCount, valueCount int64
	if err := f.db.Model(&domain.PlanFeatureConfig{}).Count(&configCount).Error; err != nil {
		t.Fatalf("count configs: %v", err)
	}
	if err := f.db.Model(&domain.CustomFieldValue{}).Count(&valueCount).Error; err != nil {
		t.Fatalf("count values: %v", err)
	}
	if configCount != 1 || valueCount != 1 {
		t.Fatalf("expected 1 config and 1 value, got %d and %d", configCount, valueCount)
	}
	if second[0].Values[0].RawValue != "25" {
		t.Fatalf("value not updated: %+v", second[0].Values[0])
	}
}

func TestConfigureBatchIsAllOrNothing(t *testing.T) {
	f := setupPlanConfigService(t)
	other, otherField := f.seedFeature(t, "sms_sending", &f.applicationID)

	_, err := f.service.ConfigurePlanFeatures(context.Background(), domain.ConfigureRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Configs: []domain.FeatureConfigInput{
			{
				FeatureID: f.feature.ID.String(),
				Status:    domain.StatusLimited,
				Values: []domain.FieldValueInput{{
					CustomFieldID: f.limitField.ID.String(),
					Value:         "10",
				}},
			},
			{
				FeatureID: other.ID.String(),
				Status:    domain.StatusLimited,
				Values: []domain.FieldValueInput{{
					CustomFieldID: otherField.ID.String(),
					Value:         "not-a-number",
				}},
			},
		},
	})
	if !errors.Is(err, domain.ErrInvalidFieldValue) {
		t.Fatalf("expected invalid_field_value, got %v", err)
	}

	var count int64
	if err := f.db.Model(&domain.PlanFeatureConfig{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed batch must write nothing, got %d configs", count)
	}
}

func TestConfigureRejectsForeignFeature(t *testing.T) {
	f := setupPlanConfigService(t)
	otherApp := f.node.Generate()
	foreign, _ := f.seedFeature(t, "foreign_feature", &otherApp)

	_, err := f.service.ConfigurePlanFeatures(context.Background(), domain.ConfigureRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Configs: []domain.FeatureConfigInput{{
			FeatureID: foreign.ID.String(),
			Status:    domain.StatusEnabled,
		}},
	})
	if !errors.Is(err, domain.ErrForeignFeature) {
		t.Fatalf("expected foreign_feature, got %v", err)
	}
}

func TestConfigureAllowsGlobalFeature(t *testing.T) {
	f := setupPlanConfigService(t)
	global, _ := f.seedFeature(t, "global_reports", nil)

	_, err := f.service.ConfigurePlanFeatures(context.Background(), domain.ConfigureRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Configs: []domain.FeatureConfigInput{{
			FeatureID: global.ID.String(),
			Status:    domain.StatusEnabled,
		}},
	})
	if err != nil {
		t.Fatalf("global features must be configurable on any plan: %v", err)
	}
}

func TestConfigureUnknownFeatureAndField(t *testing.T) {
	f := setupPlanConfigService(t)

	_, err := f.service.ConfigurePlanFeatures(context.Background(), domain.ConfigureRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Configs: []domain.FeatureConfigInput{{
			FeatureID: f.node.Generate().String(),
			Status:    domain.StatusEnabled,
		}},
	})
	if !errors.Is(err, domain.ErrUnknownFeature) {
		t.Fatalf("expected unknown_feature, got %v", err)
	}

	_, err = f.service.ConfigurePlanFeatures(context.Background(), domain.ConfigureRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Configs: []domain.FeatureConfigInput{{
			FeatureID: f.feature.ID.String(),
			Status:    domain.StatusLimited,
			Values: []domain.FieldValueInput{{
				CustomFieldID: f.node.Generate().String(),
				Value:         "10",
			}},
		}},
	})
	if !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected unknown_field, got %v", err)
	}
}

func TestUpdateFeatureConfiguration(t *testing.T) {
	f := setupPlanConfigService(t)
	f.configure(t, "10")

	status := domain.StatusDisabled
	updated, err := f.service.UpdateFeatureConfiguration(context.Background(), domain.UpdateConfigRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		FeatureID:     f.feature.ID.String(),
		Status:        &status,
		Values: []domain.FieldValueInput{{
			CustomFieldID: f.limitField.ID.String(),
			Value:         "50",
		}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusDisabled {
		t.Fatalf("status not updated: %+v", updated)
	}
	if len(updated.Values) != 1 || updated.Values[0].RawValue != "50" {
		t.Fatalf("value not updated: %+v", updated.Values)
	}

	_, err = f.service.UpdateFeatureConfiguration(context.Background(), domain.UpdateConfigRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		FeatureID:     f.node.Generate().String(),
		Status:        &status,
	})
	if !errors.Is(err, domain.ErrUnknownFeature) {
		t.Fatalf("expected unknown_feature for unconfigured feature, got %v", err)
	}
}

func TestRemoveFeatureFromPlanDeletesValues(t *testing.T) {
	f := setupPlanConfigService(t)
	f.configure(t, "10")

	err := f.service.RemoveFeatureFromPlan(
		context.Background(), f.planID.String(), f.feature.ID.String(), f.applicationID.String())
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	var configCount, valueCount int64
	if err := f.db.Model(&domain.PlanFeatureConfig{}).Count(&configCount).Error; err != nil {
		t.Fatalf("count configs: %v", err)
	}
	if err := f.db.Model(&domain.CustomFieldValue{}).Count(&valueCount).Error; err != nil {
		t.Fatalf("count values: %v", err)
	}
	if configCount != 0 || valueCount != 0 {
		t.Fatalf("remove must drop config and values, got %d and %d", configCount, valueCount)
	}

	err = f.service.RemoveFeatureFromPlan(
		context.Background(), f.planID.String(), f.feature.ID.String(), f.applicationID.String())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not_found on second remove, got %v", err)
	}
}

func TestResolvePlanFeaturesSkipsInactiveFeatures(t *testing.T) {
	f := setupPlanConfigService(t)
	f.configure(t, "10")

	retired, _ := f.seedFeature(t, "retired_feature", &f.applicationID)
	if _, err := f.service.ConfigurePlanFeatures(context.Background(), domain.ConfigureRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Configs: []domain.FeatureConfigInput{{
			FeatureID: retired.ID.String(),
			Status:    domain.StatusEnabled,
		}},
	}); err != nil {
		t.Fatalf("configure retired: %v", err)
	}
	if err := f.db.Model(&featuredomain.Feature{}).
		Where("id = ?", retired.ID).
		Update("active", false).Error; err != nil {
		t.Fatalf("deactivate feature: %v", err)
	}

	resolved, err := f.service.ResolvePlanFeatures(
		context.Background(), f.planID.String(), f.applicationID.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("inactive features must not resolve, got %d entries", len(resolved))
	}
	entry := resolved[0]
	if entry.Feature.Name != "email_sending" {
		t.Fatalf("unexpected feature: %+v", entry.Feature)
	}
	if len(entry.Fields) != 1 || entry.Fields[0].Value == nil {
		t.Fatalf("resolved field must carry its value: %+v", entry.Fields)
	}
	if entry.Fields[0].Value.DisplayValue != "10 emails/month" {
		t.Fatalf("display value: got %q", entry.Fields[0].Value.DisplayValue)
	}
}

func TestReorderFeatures(t *testing.T) {
	f := setupPlanConfigService(t)
	f.configure(t, "10")
	second, _ := f.seedFeature(t, "second_feature", &f.applicationID)
	if _, err := f.service.ConfigurePlanFeatures(context.Background(), domain.ConfigureRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Configs: []domain.FeatureConfigInput{{
			FeatureID: second.ID.String(),
			Status:    domain.StatusEnabled,
			SortOrder: 1,
		}},
	}); err != nil {
		t.Fatalf("configure second: %v", err)
	}

	err := f.service.ReorderFeatures(context.Background(), domain.ReorderRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Orders: []domain.ReorderEntry{
			{FeatureID: f.feature.ID.String(), SortOrder: 2},
			{FeatureID: second.ID.String(), SortOrder: 1},
		},
	})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}

	resolved, err := f.service.ResolvePlanFeatures(
		context.Background(), f.planID.String(), f.applicationID.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected two entries, got %d", len(resolved))
	}
	if resolved[0].Feature.Name != "second_feature" || resolved[1].Feature.Name != "email_sending" {
		t.Fatalf("order not applied: %s then %s", resolved[0].Feature.Name, resolved[1].Feature.Name)
	}

	err = f.service.ReorderFeatures(context.Background(), domain.ReorderRequest{
		PlanID:        f.planID.String(),
		ApplicationID: f.applicationID.String(),
		Orders:        []domain.ReorderEntry{{FeatureID: f.node.Generate().String(), SortOrder: 1}},
	})
	if !errors.Is(err, domain.ErrUnknownFeature) {
		t.Fatalf("expected unknown_feature, got %v", err)
	}
}
