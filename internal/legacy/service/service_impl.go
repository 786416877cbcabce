package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/entitlement/internal/config"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/legacy/domain"
	planconfigdomain "github.com/smallbiznis/entitlement/internal/planconfig/domain"
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
	PlanRepo    planconfigdomain.Repository
	Display     *config.DisplayConfigHolder
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	featureRepo featuredomain.Repository
	planRepo    planconfigdomain.Repository
	display     *config.DisplayConfigHolder
	genID       *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("legacy.service"),
		repo:        p.Repo,
		featureRepo: p.FeatureRepo,
		planRepo:    p.PlanRepo,
		display:     p.Display,
		genID:       p.GenID,
	}
}

// categoryKeywords maps name fragments to catalog categories. First match
// wins; order is fixed so repeated runs classify identically.
var categoryKeywords = []struct {
	fragment string
	category featuredomain.Category
}{
	{"storage", featuredomain.CategoryStorage},
	{"disk", featuredomain.CategoryStorage},
	{"upload", featuredomain.CategoryStorage},
	{"email", featuredomain.CategoryCommunication},
	{"sms", featuredomain.CategoryCommunication},
	{"message", featuredomain.CategoryCommunication},
	{"notification", featuredomain.CategoryCommunication},
	{"report", featuredomain.CategoryAnalytics},
	{"analytic", featuredomain.CategoryAnalytics},
	{"dashboard", featuredomain.CategoryAnalytics},
	{"export", featuredomain.CategoryAnalytics},
	{"api", featuredomain.CategoryIntegration},
	{"webhook", featuredomain.CategoryIntegration},
	{"integration", featuredomain.CategoryIntegration},
	{"sso", featuredomain.CategorySecurity},
	{"audit", featuredomain.CategorySecurity},
	{"security", featuredomain.CategorySecurity},
	{"support", featuredomain.CategorySupport},
}

// legacyUnits maps the old free-form unit strings onto catalog unit tags.
var legacyUnits = map[string]featuredomain.Unit{
	"bytes":      featuredomain.UnitBytes,
	"kb":         featuredomain.UnitKB,
	"mb":         featuredomain.UnitMB,
	"gb":         featuredomain.UnitGB,
	"gigabytes":  featuredomain.UnitGB,
	"tb":         featuredomain.UnitTB,
	"emails":     featuredomain.UnitEmails,
	"email":      featuredomain.UnitEmails,
	"sms":        featuredomain.UnitSMS,
	"requests":   featuredomain.UnitRequests,
	"users":      featuredomain.UnitUsers,
	"seats":      featuredomain.UnitUsers,
	"items":      featuredomain.UnitItems,
	"percent":    featuredomain.UnitPercentage,
	"percentage": featuredomain.UnitPercentage,
	"days":       featuredomain.UnitDays,
	"hours":      featuredomain.UnitHours,
}

// legacyTypes maps the old value-type tags onto field types, with the field
// name each type gets.
var legacyTypes = map[string]struct {
	dataType  featuredomain.FieldType
	fieldName string
}{
	"number":  {featuredomain.FieldTypeNumber, "limit"},
	"int":     {featuredomain.FieldTypeNumber, "limit"},
	"float":   {featuredomain.FieldTypeNumber, "limit"},
	"boolean": {featuredomain.FieldTypeBoolean, "enabled"},
	"bool":    {featuredomain.FieldTypeBoolean, "enabled"},
	"string":  {featuredomain.FieldTypeString, "value"},
	"date":    {featuredomain.FieldTypeDate, "value"},
}

func (s *Service) Migrate(ctx context.Context, applicationIDRaw string) (*domain.MigrationReport, error) {
	applicationID, err := snowflake.ParseString(strings.TrimSpace(applicationIDRaw))
	if err != nil || applicationID == 0 {
		return nil, domain.ErrInvalidApplication
	}

	report := &domain.MigrationReport{
		RunID:         uuid.NewString(),
		ApplicationID: applicationID.String(),
	}
	log := s.log.With(
		zap.String("run_id", report.RunID),
		zap.String("application_id", applicationID.String()),
	)

	rows, err := s.repo.ListActiveByApplication(ctx, s.db, applicationID)
	if err != nil {
		return nil, err
	}
	report.RowsSeen = len(rows)

	// Group by feature name, case-insensitively. Ordering within a group
	// follows the repository's (feature_name, plan_id) sort.
	groups := make(map[string][]domain.LegacyFeatureValue)
	var groupOrder []string
	for _, row := range rows {
		key := strings.ToLower(strings.TrimSpace(row.FeatureName))
		if key == "" {
			report.RowsSkipped++
			log.Warn("legacy row has no feature name", zap.String("row_id", row.ID.String()))
			continue
		}
		if _, seen := groups[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], row)
	}

	now := time.Now().UTC()
	var migrated []snowflake.ID
	for _, key := range groupOrder {
		group := groups[key]
		feature, field, created, err := s.ensureFeatureAndField(ctx, applicationID, group[0], now)
		if err != nil {
			report.RowsSkipped += len(group)
			log.Warn("legacy group skipped",
				zap.String("feature_name", group[0].FeatureName),
				zap.Error(err),
			)
			continue
		}
		if created.feature {
			report.FeaturesCreated++
		}
		if created.field {
			report.FieldsCreated++
		}

		for _, row := range group {
			if err := s.migrateRow(ctx, feature, field, row, now, report); err != nil {
				report.RowsSkipped++
				log.Warn("legacy row skipped",
					zap.String("row_id", row.ID.String()),
					zap.Error(err),
				)
				continue
			}
			migrated = append(migrated, row.ID)
		}
	}

	if err := s.repo.MarkMigrated(ctx, s.db, migrated, now); err != nil {
		return nil, err
	}

	log.Info("legacy migration finished",
		zap.Int("rows_seen", report.RowsSeen),
		zap.Int("features_created", report.FeaturesCreated),
		zap.Int("fields_created", report.FieldsCreated),
		zap.Int("configs_upserted", report.ConfigsUpserted),
		zap.Int("rows_skipped", report.RowsSkipped),
	)
	return report, nil
}

func (s *Service) Cleanup(ctx context.Context, applicationIDRaw string) (int64, error) {
	applicationID, err := snowflake.ParseString(strings.TrimSpace(applicationIDRaw))
	if err != nil || applicationID == 0 {
		return 0, domain.ErrInvalidApplication
	}

	count, err := s.repo.DeactivateMigrated(ctx, s.db, applicationID, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	s.log.Info("legacy rows deactivated",
		zap.String("application_id", applicationID.String()),
		zap.Int64("count", count),
	)
	return count, nil
}

type createdFlags struct {
	feature bool
	field   bool
}

// ensureFeatureAndField probes by name before creating anything, which is
// what makes re-runs produce identical counts. The probe is always scoped to
// the application: two tenants migrating the same name get distinct features.
func (s *Service) ensureFeatureAndField(ctx context.Context, applicationID snowflake.ID, sample domain.LegacyFeatureValue, now time.Time) (*featuredomain.Feature, *featuredomain.CustomField, createdFlags, error) {
	var created createdFlags

	name := strings.TrimSpace(sample.FeatureName)
	feature, err := s.featureRepo.FindByName(ctx, s.db, &applicationID, name)
	if err != nil {
		return nil, nil, created, err
	}
	if feature == nil {
		feature = &featuredomain.Feature{
			ID:            s.genID.Generate(),
			ApplicationID: &applicationID,
			Name:          name,
			Category:      inferCategory(name),
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.featureRepo.Create(ctx, s.db, feature); err != nil {
			return nil, nil, created, err
		}
		created.feature = true
	}

	mapping, ok := legacyTypes[strings.ToLower(strings.TrimSpace(sample.ValueType))]
	if !ok {
		mapping = legacyTypes["string"]
	}

	field, err := s.featureRepo.FindFieldByName(ctx, s.db, feature.ID, mapping.fieldName)
	if err != nil {
		return nil, nil, created, err
	}
	if field == nil {
		field = &featuredomain.CustomField{
			ID:        s.genID.Generate(),
			FeatureID: feature.ID,
			FieldName: mapping.fieldName,
			DataType:  mapping.dataType,
			Unit:      inferUnit(sample.Unit),
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.featureRepo.CreateField(ctx, s.db, field); err != nil {
			return nil, nil, created, err
		}
		created.field = true
	}

	return feature, field, created, nil
}

func (s *Service) migrateRow(ctx context.Context, feature *featuredomain.Feature, field *featuredomain.CustomField, row domain.LegacyFeatureValue, now time.Time, report *domain.MigrationReport) error {
	parsed, err := featuredomain.ParseFieldValue(field.DataType, row.Value)
	if err != nil {
		return err
	}

	status := inferStatus(field.DataType, parsed)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := s.planRepo.FindConfig(ctx, tx, row.PlanID, feature.ID)
		if err != nil {
			return err
		}
		if cfg == nil {
			cfg = &planconfigdomain.PlanFeatureConfig{
				ID:            s.genID.Generate(),
				PlanID:        row.PlanID,
				FeatureID:     feature.ID,
				ApplicationID: row.ApplicationID,
				Status:        status,
				Active:        true,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := s.planRepo.CreateConfig(ctx, tx, cfg); err != nil {
				return err
			}
		} else {
			cfg.Status = status
			cfg.Active = true
			cfg.UpdatedAt = now
			if err := s.planRepo.UpdateConfig(ctx, tx, cfg); err != nil {
				return err
			}
		}
		report.ConfigsUpserted++

		value := &planconfigdomain.CustomFieldValue{
			ID:            s.genID.Generate(),
			ConfigID:      cfg.ID,
			CustomFieldID: field.ID,
			PlanID:        row.PlanID,
			FeatureID:     feature.ID,
			ApplicationID: row.ApplicationID,
			RawValue:      parsed.Raw(),
			IsUnlimited:   parsed.IsUnlimited(),
			DisplayValue:  planconfigdomain.DisplayFieldValue(parsed, field.Unit, s.display.Current()),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.planRepo.UpsertValue(ctx, tx, value); err != nil {
			return err
		}
		report.ValuesUpserted++
		return nil
	})
}

func inferCategory(name string) featuredomain.Category {
	lowered := strings.ToLower(name)
	for _, candidate := range categoryKeywords {
		if strings.Contains(lowered, candidate.fragment) {
			return candidate.category
		}
	}
	return featuredomain.CategoryGeneral
}

func inferUnit(raw string) featuredomain.Unit {
	if unit, ok := legacyUnits[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return unit
	}
	return featuredomain.UnitNone
}

func inferStatus(dataType featuredomain.FieldType, value featuredomain.FieldValue) planconfigdomain.ConfigStatus {
	if dataType == featuredomain.FieldTypeBoolean {
		if value.Bool {
			return planconfigdomain.StatusEnabled
		}
		return planconfigdomain.StatusDisabled
	}
	if dataType == featuredomain.FieldTypeNumber {
		if value.IsUnlimited() {
			return planconfigdomain.StatusUnlimited
		}
		if value.Number == 0 {
			return planconfigdomain.StatusDisabled
		}
		return planconfigdomain.StatusLimited
	}
	return planconfigdomain.StatusEnabled
}
