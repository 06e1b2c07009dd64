// Package scheduler drives periodic billing issuance: once a calendar month
// closes, every active meter gets a billing for it. The scheduler never
// computes money itself; it only asks the billing service to issue, with the
// (meter, period) pair as the idempotency key.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/flowin/pdam/internal/billing/domain"
	"github.com/flowin/pdam/internal/clock"
	"github.com/flowin/pdam/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler requires db, log, billing service and clock")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	BillingSvc billingdomain.Service
	Clock      clock.Clock
	Config     Config `optional:"true"`
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	billingSvc billingdomain.Service
	clock      clock.Clock
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.BillingSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		billingSvc: p.BillingSvc,
		clock:      p.Clock,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				metrics.Scheduler().IncRunError()
				s.log.Error("scheduler run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce issues billings for the most recently closed period to every
// active meter that does not have one yet.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := s.clock.Now()
	period := billingdomain.PreviousPeriod(now)

	issued := 0
	skipped := 0
	failed := 0
	// Failed meters stay unbilled and would be re-fetched forever; remember
	// what this run already attempted.
	attempted := make(map[snowflake.ID]struct{})
	for {
		meterIDs, err := s.fetchMetersNeedingBilling(ctx, period, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(meterIDs) == 0 {
			break
		}

		progressed := false
		for _, meterID := range meterIDs {
			if _, done := attempted[meterID]; done {
				continue
			}
			attempted[meterID] = struct{}{}
			progressed = true

			_, err := s.billingSvc.Issue(ctx, billingdomain.IssueRequest{
				MeterID: meterID.String(),
				Period:  period,
			})
			switch {
			case err == nil:
				issued++
				metrics.Scheduler().IncBillingIssued()
			case errors.Is(err, billingdomain.ErrBillingExists):
				// Lost the race to a concurrent issuer; the period is covered.
				skipped++
				metrics.Scheduler().IncMeterSkipped()
			case errors.Is(err, billingdomain.ErrMeterInactive):
				skipped++
				metrics.Scheduler().IncMeterSkipped()
			default:
				// One broken meter must not starve the rest of the batch.
				failed++
				metrics.Scheduler().IncMeterFailed()
				s.log.Error("billing issuance failed",
					zap.String("meter_id", meterID.String()),
					zap.String("period", period),
					zap.Error(err),
				)
			}
		}

		if len(meterIDs) < s.cfg.BatchSize || !progressed {
			break
		}
	}

	metrics.Scheduler().IncRun()
	s.log.Info("scheduler run complete",
		zap.String("period", period),
		zap.Int("issued", issued),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}
