package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/entitlement/internal/appcontext"
	"github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/feature/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func setupFeatureService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
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

	if err := db.AutoMigrate(&domain.Feature{}, &domain.CustomField{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node := mustNode(t)
	service := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return service, db, node
}

func tenantContext(appID snowflake.ID) context.Context {
	return appcontext.WithApplicationID(context.Background(), int64(appID))
}

func TestCreateRejectsAmbiguousScope(t *testing.T) {
	service, _, node := setupFeatureService(t)
	appID := node.Generate()

	// Both global and tenant-scoped.
	_, err := service.Create(context.Background(), domain.CreateRequest{
		Name:          "api_access",
		Category:      domain.CategoryIntegration,
		Global:        true,
		ApplicationID: appID.String(),
	})
	if !errors.Is(err, domain.ErrInvalidScope) {
		t.Fatalf("expected invalid_scope, got %v", err)
	}

	// Neither.
	_, err = service.Create(context.Background(), domain.CreateRequest{
		Name:     "api_access",
		Category: domain.CategoryIntegration,
	})
	if !errors.Is(err, domain.ErrInvalidScope) {
		t.Fatalf("expected invalid_scope, got %v", err)
	}
}

func TestCreateDuplicateNameCaseInsensitive(t *testing.T) {
	service, db, node := setupFeatureService(t)
	appID := node.Generate()

	if _, err := service.Create(context.Background(), domain.CreateRequest{
		Name:          "Email Sending",
		Category:      domain.CategoryCommunication,
		ApplicationID: appID.String(),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := service.Create(context.Background(), domain.CreateRequest{
		Name:          "email sending",
		Category:      domain.CategoryCommunication,
		ApplicationID: appID.String(),
	})
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected duplicate_name, got %v", err)
	}

	var count int64
	if err := db.Model(&domain.Feature{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("duplicate create must not write, got %d rows", count)
	}
}

func TestSameNameAllowedAcrossTenants(t *testing.T) {
	service, _, node := setupFeatureService(t)

	for i := 0; i < 2; i++ {
		if _, err := service.Create(context.Background(), domain.CreateRequest{
			Name:          "reports",
			Category:      domain.CategoryAnalytics,
			ApplicationID: node.Generate().String(),
		}); err != nil {
			t.Fatalf("create for tenant %d: %v", i, err)
		}
	}
}

func TestGetEnforcesTenantIsolation(t *testing.T) {
	service, _, node := setupFeatureService(t)
	ownerID := node.Generate()
	otherID := node.Generate()

	created, err := service.Create(context.Background(), domain.CreateRequest{
		Name:          "sso",
		Category:      domain.CategorySecurity,
		ApplicationID: ownerID.String(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := service.Get(tenantContext(ownerID), created.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}

	if _, err := service.Get(tenantContext(otherID), created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign tenant must see not_found, got %v", err)
	}
}

func TestListScopesAndFiltersByRole(t *testing.T) {
	service, _, node := setupFeatureService(t)
	appID := node.Generate()

	if _, err := service.Create(context.Background(), domain.CreateRequest{
		Name:     "global_reports",
		Category: domain.CategoryAnalytics,
		Global:   true,
	}); err != nil {
		t.Fatalf("create global: %v", err)
	}
	if _, err := service.Create(context.Background(), domain.CreateRequest{
		Name:          "admin_only",
		Category:      domain.CategorySecurity,
		ApplicationID: appID.String(),
		AllowedRoles:  []string{"admin"},
	}); err != nil {
		t.Fatalf("create scoped: %v", err)
	}
	if _, err := service.Create(context.Background(), domain.CreateRequest{
		Name:          "foreign_feature",
		Category:      domain.CategoryGeneral,
		ApplicationID: node.Generate().String(),
	}); err != nil {
		t.Fatalf("create foreign: %v", err)
	}

	all, err := service.List(tenantContext(appID), domain.ListRequest{IncludeGlobal: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected globals plus own features, got %d", len(all))
	}

	members, err := service.List(tenantContext(appID), domain.ListRequest{IncludeGlobal: true, Role: "member"})
	if err != nil {
		t.Fatalf("list by role: %v", err)
	}
	if len(members) != 1 || members[0].Name != "global_reports" {
		t.Fatalf("role filter failed: %+v", members)
	}
}

func TestDeactivateCascadesToFields(t *testing.T) {
	service, _, node := setupFeatureService(t)
	appID := node.Generate()

	created, err := service.Create(context.Background(), domain.CreateRequest{
		Name:          "email_sending",
		Category:      domain.CategoryCommunication,
		ApplicationID: appID.String(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	field, err := service.AddCustomField(context.Background(), domain.AddCustomFieldRequest{
		FeatureID: created.ID,
		FieldName: "monthly_limit",
		DataType:  domain.FieldTypeNumber,
		Unit:      domain.UnitEmails,
	})
	if err != nil {
		t.Fatalf("add field: %v", err)
	}

	resp, err := service.Deactivate(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if resp.Active {
		t.Fatalf("feature should be inactive")
	}

	fields, err := service.ListCustomFields(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("list fields: %v", err)
	}
	if len(fields) != 1 || fields[0].ID != field.ID {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if fields[0].Active {
		t.Fatalf("field must deactivate with its feature")
	}

	// Second deactivate is a no-op.
	if _, err := service.Deactivate(context.Background(), created.ID); err != nil {
		t.Fatalf("repeat deactivate: %v", err)
	}
}

func TestAddCustomFieldDuplicateName(t *testing.T) {
	service, _, node := setupFeatureService(t)

	created, err := service.Create(context.Background(), domain.CreateRequest{
		Name:          "storage",
		Category:      domain.CategoryStorage,
		ApplicationID: node.Generate().String(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	add := func() error {
		_, err := service.AddCustomField(context.Background(), domain.AddCustomFieldRequest{
			FeatureID: created.ID,
			FieldName: "quota",
			DataType:  domain.FieldTypeNumber,
			Unit:      domain.UnitGB,
		})
		return err
	}

	if err := add(); err != nil {
		t.Fatalf("add field: %v", err)
	}
	if err := add(); !errors.Is(err, domain.ErrDuplicateFieldName) {
		t.Fatalf("expected duplicate_field_name, got %v", err)
	}
}

func TestAddCustomFieldValidatesTypeAndUnit(t *testing.T) {
	service, _, node := setupFeatureService(t)

	created, err := service.Create(context.Background(), domain.CreateRequest{
		Name:          "api",
		Category:      domain.CategoryIntegration,
		ApplicationID: node.Generate().String(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = service.AddCustomField(context.Background(), domain.AddCustomFieldRequest{
		FeatureID: created.ID,
		FieldName: "limit",
		DataType:  "decimal",
	})
	if !errors.Is(err, domain.ErrInvalidFieldType) {
		t.Fatalf("expected invalid_field_type, got %v", err)
	}

	_, err = service.AddCustomField(context.Background(), domain.AddCustomFieldRequest{
		FeatureID: created.ID,
		FieldName: "limit",
		DataType:  domain.FieldTypeNumber,
		Unit:      "lightyears",
	})
	if !errors.Is(err, domain.ErrInvalidUnit) {
		t.Fatalf("expected invalid_unit, got %v", err)
	}
}
