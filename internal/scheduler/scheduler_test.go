package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/entitlement/internal/clock"
	consumptiondomain "github.com/smallbiznis/entitlement/internal/consumption/domain"
	"go.uber.org/zap"
)

// stubConsumptionService serves queued batches of due records and tracks
// which IDs got reset.
type stubConsumptionService struct {
	consumptiondomain.Service

	batches [][]consumptiondomain.Response
	resets  []string
	failIDs map[string]error
	findErr error
}

func (s *stubConsumptionService) FindDueForReset(ctx context.Context, limit int) ([]consumptiondomain.Response, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func (s *stubConsumptionService) Reset(ctx context.Context, consumptionID string) (*consumptiondomain.Response, error) {
	if err, ok := s.failIDs[consumptionID]; ok {
		return nil, err
	}
	s.resets = append(s.resets, consumptionID)
	return &consumptiondomain.Response{ID: consumptionID}, nil
}

func due(ids ...string) []consumptiondomain.Response {
	batch := make([]consumptiondomain.Response, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, consumptiondomain.Response{ID: id, SubscriptionID: "sub-" + id})
	}
	return batch
}

func newTestScheduler(t *testing.T, svc consumptiondomain.Service) *Scheduler {
	t.Helper()
	sched, err := New(Params{
		Log:            zap.NewNop(),
		Clock:          clock.NewFakeClock(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)),
		ConsumptionSvc: svc,
		Config:         Config{RunInterval: time.Minute, BatchSize: 2, JobTimeout: time.Second},
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop(), Clock: clock.NewFakeClock(time.Now())})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	def := DefaultConfig()
	if cfg.RunInterval != def.RunInterval || cfg.BatchSize != def.BatchSize || cfg.JobTimeout != def.JobTimeout {
		t.Fatalf("zero config must take defaults, got %+v", cfg)
	}

	custom := Config{RunInterval: time.Hour}.withDefaults()
	if custom.RunInterval != time.Hour || custom.BatchSize != def.BatchSize {
		t.Fatalf("partial config must keep explicit values, got %+v", custom)
	}
}

func TestRunOnceResetsAllDueRecords(t *testing.T) {
	svc := &stubConsumptionService{
		batches: [][]consumptiondomain.Response{
			due("a", "b"),
			due("c"),
		},
	}
	sched := newTestScheduler(t, svc)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(svc.resets) != 3 {
		t.Fatalf("expected 3 resets, got %v", svc.resets)
	}
}

func TestRunOnceContinuesPastFailingRecord(t *testing.T) {
	resetErr := errors.New("boom")
	svc := &stubConsumptionService{
		batches: [][]consumptiondomain.Response{due("a", "b", "c")},
		failIDs: map[string]error{"b": resetErr},
	}
	sched := newTestScheduler(t, svc)

	err := sched.RunOnce(context.Background())
	if !errors.Is(err, resetErr) {
		t.Fatalf("expected joined reset error, got %v", err)
	}
	if len(svc.resets) != 2 {
		t.Fatalf("failure must not stop the batch, got %v", svc.resets)
	}
}

func TestRunOnceBailsWhenWholeBatchFails(t *testing.T) {
	resetErr := errors.New("boom")
	svc := &stubConsumptionService{
		batches: [][]consumptiondomain.Response{
			due("a", "b"),
			due("a", "b"),
			due("a", "b"),
		},
		failIDs: map[string]error{"a": resetErr, "b": resetErr},
	}
	sched := newTestScheduler(t, svc)

	err := sched.RunOnce(context.Background())
	if !errors.Is(err, resetErr) {
		t.Fatalf("expected reset error, got %v", err)
	}
	// The first all-failed batch ends the sweep instead of re-fetching the
	// same rows forever.
	if len(svc.batches) != 2 {
		t.Fatalf("sweep must stop after an all-failed batch, %d batches left", len(svc.batches))
	}
}

func TestRunOnceSurfacesLookupError(t *testing.T) {
	findErr := errors.New("db down")
	svc := &stubConsumptionService{findErr: findErr}
	sched := newTestScheduler(t, svc)

	if err := sched.RunOnce(context.Background()); !errors.Is(err, findErr) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestRunOnceSwallowsTimeout(t *testing.T) {
	svc := &stubConsumptionService{}
	sched := newTestScheduler(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sched.RunOnce(ctx); err != nil {
		t.Fatalf("canceled run must not surface an error, got %v", err)
	}
}
