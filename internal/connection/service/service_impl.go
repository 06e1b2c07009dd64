package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/actor"
	"github.com/flowin/pdam/internal/connection/domain"
	"github.com/flowin/pdam/internal/observability/metrics"
	"github.com/flowin/pdam/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("connection.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitApplicationRequest) (domain.ConnectionApplication, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.ConnectionApplication{}, err
	}

	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return domain.ConnectionApplication{}, domain.ErrInvalidCustomer
	}
	for _, doc := range []string{
		req.IdentityNumber, req.IdentityDocURL,
		req.FamilyCardNumber, req.FamilyCardDocURL,
		req.BuildingPermitNumber, req.BuildingPermitDocURL,
	} {
		if strings.TrimSpace(doc) == "" {
			return domain.ConnectionApplication{}, domain.ErrMissingDocument
		}
	}
	if strings.TrimSpace(req.Address) == "" {
		return domain.ConnectionApplication{}, domain.ErrInvalidAddress
	}
	if req.BuildingAreaM2 <= 0 {
		return domain.ConnectionApplication{}, domain.ErrInvalidBuildingArea
	}

	now := time.Now().UTC()
	app := domain.ConnectionApplication{
		ID:                   s.genID.Generate(),
		CustomerID:           customerID,
		State:                domain.StateSubmitted,
		IdentityNumber:       strings.TrimSpace(req.IdentityNumber),
		IdentityDocURL:       strings.TrimSpace(req.IdentityDocURL),
		FamilyCardNumber:     strings.TrimSpace(req.FamilyCardNumber),
		FamilyCardDocURL:     strings.TrimSpace(req.FamilyCardDocURL),
		BuildingPermitNumber: strings.TrimSpace(req.BuildingPermitNumber),
		BuildingPermitDocURL: strings.TrimSpace(req.BuildingPermitDocURL),
		Address:              strings.TrimSpace(req.Address),
		Village:              strings.TrimSpace(req.Village),
		District:             strings.TrimSpace(req.District),
		City:                 strings.TrimSpace(req.City),
		BuildingAreaM2:       req.BuildingAreaM2,
		Metadata:             datatypes.JSONMap{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Insert(ctx, s.db, &app); err != nil {
		return domain.ConnectionApplication{}, err
	}

	s.log.Info("application submitted",
		zap.String("application_id", app.ID.String()),
		zap.String("customer_id", app.CustomerID.String()),
	)
	return app, nil
}

func (s *Service) UpdateSurveyNotes(ctx context.Context, req domain.UpdateSurveyNotesRequest) (domain.SurveyRecord, error) {
	act, err := s.requireActor(ctx)
	if err != nil {
		return domain.SurveyRecord{}, err
	}

	id, err := parseID(req.ApplicationID)
	if err != nil {
		return domain.SurveyRecord{}, err
	}

	var updated domain.SurveyRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if app == nil {
			return domain.ErrNotFound
		}
		if !act.IsAdmin() && !isAssignedTechnician(act, app) {
			return domain.ErrUnauthorized
		}

		survey, err := s.repo.FindSurveyByApplication(ctx, tx, id)
		if err != nil {
			return err
		}
		if survey == nil {
			return domain.ErrSurveyNotFound
		}

		if err := s.repo.UpdateSurveyNotes(ctx, tx, survey.ID, req.Notes); err != nil {
			return err
		}
		survey.Notes = req.Notes
		updated = *survey
		return nil
	})
	if err != nil {
		return domain.SurveyRecord{}, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.ApplicationDetail, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.ApplicationDetail{}, err
	}

	app, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ApplicationDetail{}, err
	}
	if app == nil {
		return domain.ApplicationDetail{}, domain.ErrNotFound
	}

	detail := domain.ApplicationDetail{ConnectionApplication: *app}
	if app.SurveyID != nil {
		detail.Survey, err = s.repo.FindSurveyByApplication(ctx, s.db, id)
		if err != nil {
			return domain.ApplicationDetail{}, err
		}
	}
	if app.EstimateID != nil {
		detail.Estimate, err = s.repo.FindEstimateByID(ctx, s.db, *app.EstimateID)
		if err != nil {
			return domain.ApplicationDetail{}, err
		}
	}
	return detail, nil
}

func (s *Service) List(ctx context.Context, req domain.ListApplicationRequest) (domain.ListApplicationResponse, error) {
	filter := domain.ListApplicationFilter{}
	if state := strings.TrimSpace(req.State); state != "" {
		if !domain.ApplicationState(state).Valid() {
			return domain.ListApplicationResponse{}, domain.ErrCorruptState
		}
		filter.State = domain.ApplicationState(state)
	}
	if customer := strings.TrimSpace(req.Customer); customer != "" {
		id, err := parseID(customer)
		if err != nil {
			return domain.ListApplicationResponse{}, domain.ErrInvalidCustomer
		}
		filter.CustomerID = id.String()
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListApplicationResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(app *domain.ConnectionApplication) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        app.ID.String(),
			CreatedAt: app.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	apps := make([]domain.ConnectionApplication, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		apps = append(apps, *item)
	}

	resp := domain.ListApplicationResponse{Applications: apps}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// transition serializes on the application row and applies fn to it. fn
// returns false to commit nothing (idempotent no-op); otherwise the mutated
// application is written back in the same transaction.
func (s *Service) transition(ctx context.Context, rawID, op string, fn func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error)) (domain.ConnectionApplication, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.ConnectionApplication{}, err
	}

	var snapshot domain.ConnectionApplication
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if app == nil {
			return domain.ErrNotFound
		}
		if !app.State.Valid() {
			return domain.ErrCorruptState
		}

		changed, err := fn(tx, app)
		if err != nil {
			return err
		}
		if changed {
			if err := s.repo.Update(ctx, tx, app); err != nil {
				return err
			}
		}
		snapshot = *app
		return nil
	})
	if err != nil {
		metrics.Workflow().IncTransition(op, "error")
		return domain.ConnectionApplication{}, err
	}

	metrics.Workflow().IncTransition(op, "ok")
	s.log.Info("workflow transition",
		zap.String("op", op),
		zap.String("application_id", snapshot.ID.String()),
		zap.String("state", string(snapshot.State)),
	)
	return snapshot, nil
}

func (s *Service) requireActor(ctx context.Context) (actor.Actor, error) {
	act, ok := actor.FromContext(ctx)
	if !ok {
		return actor.Actor{}, domain.ErrUnauthorized
	}
	return act, nil
}

func (s *Service) requireAdmin(ctx context.Context) (actor.Actor, error) {
	act, err := s.requireActor(ctx)
	if err != nil {
		return actor.Actor{}, err
	}
	if !act.IsAdmin() {
		return actor.Actor{}, domain.ErrUnauthorized
	}
	return act, nil
}

func isAssignedTechnician(act actor.Actor, app *domain.ConnectionApplication) bool {
	return act.IsTechnician() && app.TechnicianID != nil && *app.TechnicianID == act.ID
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
