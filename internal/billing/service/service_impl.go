package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/billing/domain"
	"github.com/flowin/pdam/internal/billing/engine"
	"github.com/flowin/pdam/internal/clock"
	"github.com/flowin/pdam/internal/config"
	meterdomain "github.com/flowin/pdam/internal/meter/domain"
	tariffdomain "github.com/flowin/pdam/internal/tariff/domain"
	"github.com/flowin/pdam/pkg/db"
	"github.com/flowin/pdam/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       domain.Repository
	MeterRepo  meterdomain.Repository
	TariffRepo tariffdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	cfg        config.BillingConfig
	repo       domain.Repository
	meterRepo  meterdomain.Repository
	tariffRepo tariffdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Config.Billing,
		repo:       p.Repo,
		meterRepo:  p.MeterRepo,
		tariffRepo: p.TariffRepo,
	}
}

// Issue materializes the billing for one meter and period. The meter row is
// locked for the whole transaction, so concurrent issuance for the same
// meter serializes and the (meter, period) uniqueness check is atomic with
// the insert.
func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (domain.Billing, error) {
	meterID, err := parseID(req.MeterID)
	if err != nil {
		return domain.Billing{}, err
	}
	periodEnd, err := domain.PeriodEnd(req.Period)
	if err != nil {
		return domain.Billing{}, err
	}

	var billing domain.Billing
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meter, err := s.meterRepo.LockByID(ctx, tx, meterID)
		if err != nil {
			return err
		}
		if meter == nil {
			return meterdomain.ErrNotFound
		}
		if !meter.Active {
			return domain.ErrMeterInactive
		}

		group, err := s.tariffRepo.FindByID(ctx, tx, meter.TariffGroupID)
		if err != nil {
			return err
		}
		if group == nil {
			return tariffdomain.ErrNotFound
		}

		latest, err := s.repo.FindLatestByMeter(ctx, tx, meterID)
		if err != nil {
			return err
		}
		if latest != nil {
			// String compare is safe for YYYY-MM keys.
			if latest.Period == req.Period {
				return domain.ErrBillingExists
			}
			if latest.Period > req.Period {
				return domain.ErrInvalidPeriod
			}
		}

		previousReading := meter.InstallReading
		if latest != nil {
			previousReading = latest.CurrentReading
		}
		currentReading := previousReading
		if req.CurrentReading != nil {
			currentReading = *req.CurrentReading
		}

		breakdown, err := engine.ComputeCost(*group, previousReading, currentReading)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		arrears, penalty := engine.AccrueArrears(latest, s.cfg.PenaltyRateBps, now)

		billing = domain.Billing{
			ID:              s.genID.Generate(),
			MeterID:         meter.ID,
			Period:          req.Period,
			PreviousReading: previousReading,
			CurrentReading:  currentReading,
			Consumption:     breakdown.Consumption,
			VolumetricCost:  breakdown.VolumetricCost,
			FixedCharge:     breakdown.FixedCharge,
			Arrears:         arrears,
			Penalty:         penalty,
			Total:           breakdown.Total,
			DueDate:         periodEnd.AddDate(0, 0, s.cfg.DueGraceDays),
			Status:          domain.BillingStatusUnpaid,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.Insert(ctx, tx, &billing); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrBillingExists
			}
			return err
		}

		// The meter's running balance tracks each billing's own charge and
		// freshly accrued penalty; the carried arrears are already in it.
		return s.repo.AdjustMeterBalance(ctx, tx, meter.ID, billing.Total+billing.Penalty)
	})
	if err != nil {
		return domain.Billing{}, err
	}

	s.log.Info("billing issued",
		zap.String("billing_id", billing.ID.String()),
		zap.String("meter_id", billing.MeterID.String()),
		zap.String("period", billing.Period),
		zap.Int64("total", billing.Total),
	)
	return billing, nil
}

// Settle records payment for one billing. Settling an already-paid billing
// is an idempotent no-op.
func (s *Service) Settle(ctx context.Context, req domain.SettleRequest) (domain.Billing, error) {
	billingID, err := parseID(req.BillingID)
	if err != nil {
		return domain.Billing{}, err
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		return domain.Billing{}, domain.ErrInvalidMethod
	}

	var settled domain.Billing
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		billing, err := s.repo.FindByID(ctx, tx, billingID)
		if err != nil {
			return err
		}
		if billing == nil {
			return domain.ErrNotFound
		}

		// Serialize against issuance and concurrent settlement on the same
		// meter, then re-read: the first read predates the lock, so a rival
		// settlement may have committed in between.
		if _, err := s.meterRepo.LockByID(ctx, tx, billing.MeterID); err != nil {
			return err
		}
		billing, err = s.repo.FindByID(ctx, tx, billingID)
		if err != nil {
			return err
		}
		if billing == nil {
			return domain.ErrNotFound
		}

		if billing.Status == domain.BillingStatusPaid {
			settled = *billing
			return nil
		}

		now := s.clock.Now()
		billing.Status = domain.BillingStatusPaid
		billing.PaymentMethod = &method
		billing.PaidAt = &now
		if err := s.repo.MarkPaid(ctx, tx, billing); err != nil {
			return err
		}
		if err := s.repo.AdjustMeterBalance(ctx, tx, billing.MeterID, -(billing.Total + billing.Penalty)); err != nil {
			return err
		}
		settled = *billing
		return nil
	})
	if err != nil {
		return domain.Billing{}, err
	}
	return settled, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Billing, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Billing{}, err
	}

	billing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Billing{}, err
	}
	if billing == nil {
		return domain.Billing{}, domain.ErrNotFound
	}
	return *billing, nil
}

func (s *Service) ListByMeter(ctx context.Context, req domain.ListByMeterRequest) (domain.ListBillingResponse, error) {
	meterID, err := parseID(req.MeterID)
	if err != nil {
		return domain.ListBillingResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListByMeter(ctx, s.db, meterID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListBillingResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(billing *domain.Billing) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        billing.ID.String(),
			CreatedAt: billing.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	billings := make([]domain.Billing, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		billings = append(billings, *item)
	}

	resp := domain.ListBillingResponse{Billings: billings}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
