package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/entitlement/internal/clock"
	"github.com/smallbiznis/entitlement/internal/consumption/domain"
	"github.com/smallbiznis/entitlement/internal/consumption/repository"
	planconfigdomain "github.com/smallbiznis/entitlement/internal/planconfig/domain"
	planconfigrepo "github.com/smallbiznis/entitlement/internal/planconfig/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	service domain.Service
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock

	planID        snowflake.ID
	featureID     snowflake.ID
	customFieldID snowflake.ID
	applicationID snowflake.ID
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func openTestDB(t *testing.T) *gorm.DB {
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
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	if err := db.AutoMigrate(
		&planconfigdomain.PlanFeatureConfig{},
		&planconfigdomain.CustomFieldValue{},
		&domain.SubscriptionConsumption{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// setupConsumptionService seeds one configured plan feature value with the
// given raw limit and returns a service wired to a fake clock.
func setupConsumptionService(t *testing.T, rawLimit string, isUnlimited bool) *fixture {
	t.Helper()

	node := mustNode(t)
	db := openTestDB(t)
	fakeClock := clock.NewFakeClock(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))

	f := &fixture{
		db:            db,
		node:          node,
		clock:         fakeClock,
		planID:        node.Generate(),
		featureID:     node.Generate(),
		customFieldID: node.Generate(),
		applicationID: node.Generate(),
	}

	configID := node.Generate()
	now := fakeClock.Now()
	if err := db.Create(&planconfigdomain.PlanFeatureConfig{
		ID:            configID,
		PlanID:        f.planID,
		FeatureID:     f.featureID,
		ApplicationID: f.applicationID,
		Status:        planconfigdomain.StatusLimited,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}).Error; err != nil {
		t.Fatalf("seed config: %v", err)
	}
	if err := db.Create(&planconfigdomain.CustomFieldValue{
		ID:            node.Generate(),
		ConfigID:      configID,
		CustomFieldID: f.customFieldID,
		PlanID:        f.planID,
		FeatureID:     f.featureID,
		ApplicationID: f.applicationID,
		RawValue:      rawLimit,
		IsUnlimited:   isUnlimited,
		DisplayValue:  rawLimit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}).Error; err != nil {
		t.Fatalf("seed value: %v", err)
	}

	f.service = New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fakeClock,
		Repo:     repository.Provide(),
		PlanRepo: planconfigrepo.Provide(),
	})
	return f
}

func (f *fixture) initialize(t *testing.T, subscriptionID snowflake.ID, period string) *domain.Response {
	t.Helper()
	resp, err := f.service.Initialize(context.Background(), domain.InitializeRequest{
		SubscriptionID: subscriptionID.String(),
		SubscriberID:   f.node.Generate().String(),
		PlanID:         f.planID.String(),
		FeatureID:      f.featureID.String(),
		CustomFieldID:  f.customFieldID.String(),
		Period:         period,
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return resp
}

func TestInitializeIdempotent(t *testing.T) {
	f := setupConsumptionService(t, "10", false)
	subscriptionID := f.node.Generate()

	first := f.initialize(t, subscriptionID, "monthly")
	second := f.initialize(t, subscriptionID, "monthly")

	if first.ID != second.ID {
		t.Fatalf("expected the same record, got %s vs %s", first.ID, second.ID)
	}
	if first.LimitValue != 10 {
		t.Fatalf("expected limit 10, got %v", first.LimitValue)
	}
	if first.Value != 0 {
		t.Fatalf("expected zero value, got %v", first.Value)
	}

	var count int64
	if err := f.db.Model(&domain.SubscriptionConsumption{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}
}

func TestInitializeWithoutConfiguredLimit(t *testing.T) {
	f := setupConsumptionService(t, "10", false)

	_, err := f.service.Initialize(context.Background(), domain.InitializeRequest{
		SubscriptionID: f.node.Generate().String(),
		SubscriberID:   f.node.Generate().String(),
		PlanID:         f.node.Generate().String(), // no value configured for this plan
		FeatureID:      f.featureID.String(),
		CustomFieldID:  f.customFieldID.String(),
		Period:         "monthly",
	})
	if !errors.Is(err, domain.ErrNoConfiguredLimit) {
		t.Fatalf("expected no_configured_limit, got %v", err)
	}
}

func TestInitializeUnlimitedSentinel(t *testing.T) {
	f := setupConsumptionService(t, "-1", false)

	resp := f.initialize(t, f.node.Generate(), "monthly")
	if !resp.IsUnlimited {
		t.Fatalf("expected unlimited record for raw -1")
	}
}

func TestIncrementRequiresInitialization(t *testing.T) {
	f := setupConsumptionService(t, "10", false)

	_, err := f.service.Increment(context.Background(), domain.IncrementRequest{
		SubscriptionID: f.node.Generate().String(),
		FeatureID:      f.featureID.String(),
		CustomFieldID:  f.customFieldID.String(),
		Period:         "monthly",
		Delta:          1,
	})
	if !errors.Is(err, domain.ErrNoCurrentRecord) {
		t.Fatalf("expected no_current_record, got %v", err)
	}
}

func TestIncrementRejectsNonPositiveDelta(t *testing.T) {
	f := setupConsumptionService(t, "10", false)
	subscriptionID := f.node.Generate()
	f.initialize(t, subscriptionID, "monthly")

	for _, delta := range []float64{0, -3} {
		_, err := f.service.Increment(context.Background(), domain.IncrementRequest{
			SubscriptionID: subscriptionID.String(),
			FeatureID:      f.featureID.String(),
			CustomFieldID:  f.customFieldID.String(),
			Period:         "monthly",
			Delta:          delta,
		})
		if !errors.Is(err, domain.ErrInvalidDelta) {
			t.Fatalf("delta %v: expected invalid_delta, got %v", delta, err)
		}
	}
}

func TestIncrementMarksExceededAndStaysSticky(t *testing.T) {
	f := setupConsumptionService(t, "10", false)
	subscriptionID := f.node.Generate()
	f.initialize(t, subscriptionID, "monthly")

	increment := func(delta float64) *domain.Response {
		t.Helper()
		resp, err := f.service.Increment(context.Background(), domain.IncrementRequest{
			SubscriptionID: subscriptionID.String(),
			FeatureID:      f.featureID.String(),
			CustomFieldID:  f.customFieldID.String(),
			Period:         "monthly",
			Delta:          delta,
		})
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		return resp
	}

	first := increment(7)
	if first.IsLimitExceeded {
		t.Fatalf("7 of 10 should not be exceeded")
	}

	second := increment(5)
	if second.Value != 12 {
		t.Fatalf("expected value 12, got %v", second.Value)
	}
	if !second.IsLimitExceeded {
		t.Fatalf("12 of 10 should be exceeded")
	}

	third := increment(1)
	if !third.IsLimitExceeded {
		t.Fatalf("exceeded flag must stay set until reset")
	}
}

func TestIncrementExactLimitNotExceeded(t *testing.T) {
	f := setupConsumptionService(t, "10", false)
	subscriptionID := f.node.Generate()
	f.initialize(t, subscriptionID, "monthly")

	resp, err := f.service.Increment(context.Background(), domain.IncrementRequest{
		SubscriptionID: subscriptionID.String(),
		FeatureID:      f.featureID.String(),
		CustomFieldID:  f.customFieldID.String(),
		Period:         "monthly",
		Delta:          10,
	})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if resp.IsLimitExceeded {
		t.Fatalf("reaching the limit exactly is not an overage")
	}
}

func TestUnlimitedNeverExceeds(t *testing.T) {
	f := setupConsumptionService(t, "-1", true)
	subscriptionID := f.node.Generate()
	f.initialize(t, subscriptionID, "monthly")

	resp, err := f.service.Increment(context.Background(), domain.IncrementRequest{
		SubscriptionID: subscriptionID.String(),
		FeatureID:      f.featureID.String(),
		CustomFieldID:  f.customFieldID.String(),
		Period:         "monthly",
		Delta:          1000000,
	})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if resp.IsLimitExceeded {
		t.Fatalf("unlimited records never exceed")
	}
}

func TestConcurrentIncrementsLoseNoUpdates(t *testing.T) {
	f := setupConsumptionService(t, "1000000", false)
	subscriptionID := f.node.Generate()
	f.initialize(t, subscriptionID, "monthly")

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := f.service.Increment(context.Background(), domain.IncrementRequest{
					SubscriptionID: subscriptionID.String(),
					FeatureID:      f.featureID.String(),
					CustomFieldID:  f.customFieldID.String(),
					Period:         "monthly",
					Delta:          2,
				})
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("increment: %v", err)
	}

	var record domain.SubscriptionConsumption
	if err := f.db.First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if want := float64(workers * perWorker * 2); record.Value != want {
		t.Fatalf("expected value %v, got %v", want, record.Value)
	}
}

func TestResetAdvancesWindowAndClearsFlags(t *testing.T) {
	f := setupConsumptionService(t, "10", false)
	subscriptionID := f.node.Generate()
	created := f.initialize(t, subscriptionID, "monthly")

	if _, err := f.service.Increment(context.Background(), domain.IncrementRequest{
		SubscriptionID: subscriptionID.String(),
		FeatureID:      f.featureID.String(),
		CustomFieldID:  f.customFieldID.String(),
		Period:         "monthly",
		Delta:          12,
	}); err != nil {
		t.Fatalf("increment: %v", err)
	}

	// Move past the window so the record is due.
	f.clock.Set(created.NextResetDate.Add(time.Hour))

	resp, err := f.service.Reset(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if resp.Value != 0 {
		t.Fatalf("expected zero value after reset, got %v", resp.Value)
	}
	if resp.IsLimitExceeded {
		t.Fatalf("exceeded flag must clear on reset")
	}
	if !resp.NextResetDate.After(f.clock.Now()) {
		t.Fatalf("next reset must move into the future, got %v", resp.NextResetDate)
	}
	if resp.LastResetDate == nil || !resp.LastResetDate.Equal(f.clock.Now()) {
		t.Fatalf("last reset date not recorded: %v", resp.LastResetDate)
	}
}

func TestResetSkipsRecordsNotYetDue(t *testing.T) {
	f := setupConsumptionService(t, "10", false)
	subscriptionID := f.node.Generate()
	created := f.initialize(t, subscriptionID, "monthly")

	if _, err := f.service.Increment(context.Background(), domain.IncrementRequest{
		SubscriptionID: subscriptionID.String(),
		FeatureID:      f.featureID.String(),
		CustomFieldID:  f.customFieldID.String(),
		Period:         "monthly",
		Delta:          3,
	}); err != nil {
		t.Fatalf("increment: %v", err)
	}

	resp, err := f.service.Reset(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if resp.Value != 3 {
		t.Fatalf("reset before due must leave the value alone, got %v", resp.Value)
	}
}

func TestFindDueForResetReturnsOnlyDueRecords(t *testing.T) {
	f := setupConsumptionService(t, "10", false)
	dueSub := f.node.Generate()
	freshSub := f.node.Generate()

	due := f.initialize(t, dueSub, "daily")
	f.initialize(t, freshSub, "monthly")

	f.clock.Set(due.NextResetDate.Add(time.Minute))

	records, err := f.service.FindDueForReset(context.Background(), 100)
	if err != nil {
		t.Fatalf("find due: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 due record, got %d", len(records))
	}
	if records[0].SubscriptionID != dueSub.String() {
		t.Fatalf("wrong record due: %s", records[0].SubscriptionID)
	}
}

func TestMonthlyWindowClampsEndOfMonth(t *testing.T) {
	f := setupConsumptionService(t, "10", false)
	f.clock.Set(time.Date(2025, time.January, 31, 9, 0, 0, 0, time.UTC))

	resp := f.initialize(t, f.node.Generate(), "monthly")

	want := time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC)
	if !resp.NextResetDate.Equal(want) {
		t.Fatalf("expected next reset %v, got %v", want, resp.NextResetDate)
	}
}

func TestLimitFrozenAfterPlanEdit(t *testing.T) {
	f := setupConsumptionService(t, "10", false)
	subscriptionID := f.node.Generate()
	created := f.initialize(t, subscriptionID, "monthly")

	// Raise the configured limit after the window opened.
	if err := f.db.Model(&planconfigdomain.CustomFieldValue{}).
		Where("plan_id = ? AND custom_field_id = ?", f.planID, f.customFieldID).
		Update("raw_value", "500").Error; err != nil {
		t.Fatalf("update plan value: %v", err)
	}

	resp, err := f.service.Increment(context.Background(), domain.IncrementRequest{
		SubscriptionID: subscriptionID.String(),
		FeatureID:      f.featureID.String(),
		CustomFieldID:  f.customFieldID.String(),
		Period:         "monthly",
		Delta:          11,
	})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if !resp.IsLimitExceeded {
		t.Fatalf("limit snapshot from %s must still enforce", created.PeriodStart)
	}
}
