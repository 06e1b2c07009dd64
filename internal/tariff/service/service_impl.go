package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/tariff/domain"
	"github.com/flowin/pdam/pkg/db"
	"github.com/flowin/pdam/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tariff.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTariffGroupRequest) (domain.TariffGroup, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.TariffGroup{}, domain.ErrInvalidName
	}
	if req.PriceBelow10 <= 0 || req.PriceAbove10 <= 0 || req.FixedCharge < 0 {
		return domain.TariffGroup{}, domain.ErrInvalidPrice
	}

	now := time.Now().UTC()
	group := domain.TariffGroup{
		ID:           s.genID.Generate(),
		Name:         name,
		PriceBelow10: req.PriceBelow10,
		PriceAbove10: req.PriceAbove10,
		FixedCharge:  req.FixedCharge,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &group); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.TariffGroup{}, domain.ErrNameExists
		}
		return domain.TariffGroup{}, err
	}

	return group, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateTariffGroupRequest) (domain.TariffGroup, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.TariffGroup{}, err
	}

	var updated domain.TariffGroup
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if group == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			group.Name = name
		}
		if req.PriceBelow10 != nil {
			group.PriceBelow10 = *req.PriceBelow10
		}
		if req.PriceAbove10 != nil {
			group.PriceAbove10 = *req.PriceAbove10
		}
		if req.FixedCharge != nil {
			group.FixedCharge = *req.FixedCharge
		}
		if group.PriceBelow10 <= 0 || group.PriceAbove10 <= 0 || group.FixedCharge < 0 {
			return domain.ErrInvalidPrice
		}
		group.UpdatedAt = time.Now().UTC()

		if err := s.repo.Update(ctx, tx, group); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrNameExists
			}
			return err
		}
		updated = *group
		return nil
	})
	if err != nil {
		return domain.TariffGroup{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.TariffGroup, error) {
	id, err := s.parseID(rawID)
	if err != nil {
		return domain.TariffGroup{}, err
	}

	group, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.TariffGroup{}, err
	}
	if group == nil {
		return domain.TariffGroup{}, domain.ErrNotFound
	}
	return *group, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTariffGroupRequest) (domain.ListTariffGroupResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListTariffGroupResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(group *domain.TariffGroup) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        group.ID.String(),
			CreatedAt: group.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	groups := make([]domain.TariffGroup, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		groups = append(groups, *item)
	}

	resp := domain.ListTariffGroupResponse{TariffGroups: groups}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// Delete removes a tariff group. The group row is locked for the whole
// transaction; meter provisioning takes the same lock, so the reference count
// check and the delete cannot interleave with a concurrent provision.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := s.parseID(rawID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if group == nil {
			return domain.ErrNotFound
		}

		count, err := s.repo.CountMeters(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrInUse
		}

		return s.repo.Delete(ctx, tx, id)
	})
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
