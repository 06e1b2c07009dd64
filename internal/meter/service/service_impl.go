package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/actor"
	conndomain "github.com/flowin/pdam/internal/connection/domain"
	"github.com/flowin/pdam/internal/meter/domain"
	"github.com/flowin/pdam/internal/observability/metrics"
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
	Repo       domain.Repository
	ConnRepo   conndomain.Repository
	TariffRepo tariffdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	connRepo   conndomain.Repository
	tariffRepo tariffdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("meter.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		connRepo:   p.ConnRepo,
		tariffRepo: p.TariffRepo,
	}
}

// Provision finalizes a settled application by minting its meter. The
// application row is locked for the whole transaction so the workflow
// precondition, the uniqueness check, and the insert are atomic.
func (s *Service) Provision(ctx context.Context, req domain.ProvisionRequest) (domain.Meter, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Meter{}, err
	}

	applicationID, err := parseID(req.ApplicationID)
	if err != nil {
		return domain.Meter{}, err
	}
	tariffGroupID, err := parseID(req.TariffGroupID)
	if err != nil {
		return domain.Meter{}, domain.ErrUnknownTariffGroup
	}
	meterNumber := strings.TrimSpace(req.MeterNumber)
	if meterNumber == "" {
		return domain.Meter{}, domain.ErrInvalidMeterNumber
	}
	accountNumber := strings.TrimSpace(req.AccountNumber)
	if accountNumber == "" {
		return domain.Meter{}, domain.ErrInvalidAccountNumber
	}
	if req.InstallReading < 0 {
		return domain.Meter{}, domain.ErrInvalidReading
	}

	var meter domain.Meter
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.connRepo.LockByID(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if app == nil {
			return conndomain.ErrNotFound
		}
		if app.State != conndomain.StateEstimateSettled {
			return domain.ErrWorkflowNotReady
		}

		// Locked, not just read: tariff deletion takes the same lock, so the
		// group cannot vanish between this check and the insert.
		group, err := s.tariffRepo.LockByID(ctx, tx, tariffGroupID)
		if err != nil {
			return err
		}
		if group == nil {
			return domain.ErrUnknownTariffGroup
		}

		collisions, err := s.repo.CountCollisions(ctx, tx, meterNumber, accountNumber)
		if err != nil {
			return err
		}
		if collisions > 0 {
			return domain.ErrDuplicateMeter
		}

		now := time.Now().UTC()
		meter = domain.Meter{
			ID:             s.genID.Generate(),
			ApplicationID:  app.ID,
			TariffGroupID:  group.ID,
			MeterNumber:    meterNumber,
			AccountNumber:  accountNumber,
			Active:         true,
			InstallReading: req.InstallReading,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.repo.Insert(ctx, tx, &meter); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateMeter
			}
			return err
		}

		app.State = conndomain.StateMeterAssigned
		app.MeterID = &meter.ID
		app.Completed = true
		return s.connRepo.Update(ctx, tx, app)
	})
	if err != nil {
		metrics.Workflow().IncTransition("assign_meter", "error")
		return domain.Meter{}, err
	}

	metrics.Workflow().IncTransition("assign_meter", "ok")
	s.log.Info("meter provisioned",
		zap.String("meter_id", meter.ID.String()),
		zap.String("application_id", meter.ApplicationID.String()),
		zap.String("meter_number", meter.MeterNumber),
	)
	return meter, nil
}

// Retariff re-binds the meter to another tariff group. Future billings pick
// up the new prices; issued billings are never recalculated.
func (s *Service) Retariff(ctx context.Context, req domain.RetariffRequest) (domain.Meter, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Meter{}, err
	}

	meterID, err := parseID(req.MeterID)
	if err != nil {
		return domain.Meter{}, err
	}
	tariffGroupID, err := parseID(req.TariffGroupID)
	if err != nil {
		return domain.Meter{}, domain.ErrUnknownTariffGroup
	}

	var updated domain.Meter
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meter, err := s.repo.FindByID(ctx, tx, meterID)
		if err != nil {
			return err
		}
		if meter == nil {
			return domain.ErrNotFound
		}

		group, err := s.tariffRepo.LockByID(ctx, tx, tariffGroupID)
		if err != nil {
			return err
		}
		if group == nil {
			return domain.ErrUnknownTariffGroup
		}

		if err := s.repo.UpdateTariffGroup(ctx, tx, meter.ID, group.ID); err != nil {
			return err
		}
		meter.TariffGroupID = group.ID
		updated = *meter
		return nil
	})
	if err != nil {
		return domain.Meter{}, err
	}
	return updated, nil
}

func (s *Service) SetActive(ctx context.Context, req domain.SetActiveRequest) (domain.Meter, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Meter{}, err
	}

	meterID, err := parseID(req.MeterID)
	if err != nil {
		return domain.Meter{}, err
	}

	var updated domain.Meter
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meter, err := s.repo.FindByID(ctx, tx, meterID)
		if err != nil {
			return err
		}
		if meter == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.SetActive(ctx, tx, meter.ID, req.Active); err != nil {
			return err
		}
		meter.Active = req.Active
		updated = *meter
		return nil
	})
	if err != nil {
		return domain.Meter{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Meter, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Meter{}, err
	}

	meter, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Meter{}, err
	}
	if meter == nil {
		return domain.Meter{}, domain.ErrNotFound
	}
	return *meter, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMeterRequest) (domain.ListMeterResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, req.Active, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListMeterResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(meter *domain.Meter) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        meter.ID.String(),
			CreatedAt: meter.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	meters := make([]domain.Meter, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		meters = append(meters, *item)
	}

	resp := domain.ListMeterResponse{Meters: meters}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) requireAdmin(ctx context.Context) error {
	act, ok := actor.FromContext(ctx)
	if !ok || !act.IsAdmin() {
		return conndomain.ErrUnauthorized
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
