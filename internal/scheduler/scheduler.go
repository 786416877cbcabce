package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/entitlement/internal/clock"
	consumptiondomain "github.com/smallbiznis/entitlement/internal/consumption/domain"
	obsmetrics "github.com/smallbiznis/entitlement/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log            *zap.Logger
	Clock          clock.Clock
	ConsumptionSvc consumptiondomain.Service
	Config         Config `optional:"true"`
}

// Scheduler drives the periodic reset sweep: find ledger records whose next
// reset has passed and reset each one. Every record is also guarded at the
// SQL level, so overlapping sweeps never double-reset.
type Scheduler struct {
	log            *zap.Logger
	cfg            Config
	clock          clock.Clock
	consumptionSvc consumptiondomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.ConsumptionSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:            p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:            p.Config.withDefaults(),
		clock:          p.Clock,
		consumptionSvc: p.ConsumptionSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	engineMetrics := obsmetrics.Engine()
	engineMetrics.IncSweepRun()

	err := fn(ctx)
	engineMetrics.ObserveSweepDuration(time.Since(start))
	if err == nil {
		return nil
	}

	engineMetrics.IncSweepError()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, "reset_consumptions", s.cfg.JobTimeout, s.ResetConsumptionsJob)
}

// ResetConsumptionsJob drains due records in batches until none remain.
// Individual reset failures are joined and reported, never fatal for the
// rest of the batch.
func (s *Scheduler) ResetConsumptionsJob(ctx context.Context) error {
	var jobErr error
	resets := 0

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		due, err := s.consumptionSvc.FindDueForReset(ctx, s.cfg.BatchSize)
		if err != nil {
			return errors.Join(jobErr, err)
		}
		if len(due) == 0 {
			break
		}

		progressed := false
		for _, record := range due {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}
			if _, err := s.consumptionSvc.Reset(ctx, record.ID); err != nil {
				jobErr = errors.Join(jobErr, err)
				s.log.Warn("reset failed",
					zap.String("consumption_id", record.ID),
					zap.String("subscription_id", record.SubscriptionID),
					zap.Error(err),
				)
				continue
			}
			progressed = true
			resets++
		}

		// A batch where every reset failed would loop forever on the same
		// rows. Bail and let the next tick retry.
		if !progressed {
			break
		}
	}

	if resets > 0 {
		s.log.Info("reset sweep finished", zap.Int("resets", resets))
	}
	return jobErr
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
