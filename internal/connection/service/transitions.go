package service

import (
	"context"
	"strings"
	"time"

	"github.com/flowin/pdam/internal/connection/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// recordNote keeps a verification note on the application's metadata. Notes
// are informational; an empty note leaves the metadata untouched.
func recordNote(app *domain.ConnectionApplication, key, note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if app.Metadata == nil {
		app.Metadata = datatypes.JSONMap{}
	}
	app.Metadata[key] = note
}

// VerifyByAdmin moves a submitted application to admin-verified. Re-invoking
// on an already-verified application is a no-op success: unreliable clients
// retry this command.
func (s *Service) VerifyByAdmin(ctx context.Context, req domain.VerifyRequest) (domain.ConnectionApplication, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.ConnectionApplication{}, err
	}

	return s.transition(ctx, req.ApplicationID, "verify_by_admin", func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error) {
		if app.State == domain.StateRejected {
			return false, domain.NewStateError("verify_by_admin", app.State, domain.StateSubmitted)
		}
		if app.AdminVerified {
			return false, nil
		}
		if app.State != domain.StateSubmitted {
			return false, domain.NewStateError("verify_by_admin", app.State, domain.StateSubmitted)
		}
		app.State = domain.StateAdminVerified
		app.AdminVerified = true
		recordNote(app, "admin_verification_note", req.Note)
		return true, nil
	})
}

// AssignTechnician records the technician on an admin-verified application.
// Re-assignment before technician verification overwrites the previous
// assignment; it is a correction, not a new record.
func (s *Service) AssignTechnician(ctx context.Context, req domain.AssignTechnicianRequest) (domain.ConnectionApplication, error) {
	admin, err := s.requireAdmin(ctx)
	if err != nil {
		return domain.ConnectionApplication{}, err
	}

	technicianID, err := parseID(req.TechnicianID)
	if err != nil {
		return domain.ConnectionApplication{}, domain.ErrInvalidTechnician
	}

	return s.transition(ctx, req.ApplicationID, "assign_technician", func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error) {
		if app.State != domain.StateAdminVerified && app.State != domain.StateTechnicianAssigned {
			return false, domain.NewStateError("assign_technician", app.State, domain.StateAdminVerified, domain.StateTechnicianAssigned)
		}
		now := time.Now().UTC()
		adminID := admin.ID
		app.State = domain.StateTechnicianAssigned
		app.TechnicianID = &technicianID
		app.AssignedAt = &now
		app.AssignedBy = &adminID
		return true, nil
	})
}

// UnassignTechnician clears the assignment and returns to admin-verified.
func (s *Service) UnassignTechnician(ctx context.Context, req domain.UnassignTechnicianRequest) (domain.ConnectionApplication, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.ConnectionApplication{}, err
	}

	return s.transition(ctx, req.ApplicationID, "unassign_technician", func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error) {
		if app.State != domain.StateTechnicianAssigned {
			return false, domain.NewStateError("unassign_technician", app.State, domain.StateTechnicianAssigned)
		}
		app.State = domain.StateAdminVerified
		app.TechnicianID = nil
		app.AssignedAt = nil
		app.AssignedBy = nil
		return true, nil
	})
}

// VerifyByTechnician is executed by the assigned technician, or by an admin
// override.
func (s *Service) VerifyByTechnician(ctx context.Context, req domain.VerifyRequest) (domain.ConnectionApplication, error) {
	act, err := s.requireActor(ctx)
	if err != nil {
		return domain.ConnectionApplication{}, err
	}

	return s.transition(ctx, req.ApplicationID, "verify_by_technician", func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error) {
		if app.State != domain.StateTechnicianAssigned {
			return false, domain.NewStateError("verify_by_technician", app.State, domain.StateTechnicianAssigned)
		}
		if !act.IsAdmin() && !isAssignedTechnician(act, app) {
			return false, domain.ErrUnauthorized
		}
		app.State = domain.StateTechnicianVerified
		app.TechnicianVerified = true
		recordNote(app, "technician_verification_note", req.Note)
		return true, nil
	})
}

// RecordSurvey creates the field survey and completes the survey stage.
func (s *Service) RecordSurvey(ctx context.Context, req domain.RecordSurveyRequest) (domain.ConnectionApplication, error) {
	act, err := s.requireActor(ctx)
	if err != nil {
		return domain.ConnectionApplication{}, err
	}

	if req.PipeDiameterMM <= 0 {
		return domain.ConnectionApplication{}, domain.ErrInvalidDiameter
	}
	if req.OccupantCount <= 0 {
		return domain.ConnectionApplication{}, domain.ErrInvalidOccupants
	}
	for _, doc := range []string{req.NetworkDocURL, req.TankPositionDocURL, req.MeterPositionDocURL} {
		if strings.TrimSpace(doc) == "" {
			return domain.ConnectionApplication{}, domain.ErrMissingSurveyDoc
		}
	}

	return s.transition(ctx, req.ApplicationID, "record_survey", func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error) {
		if app.State != domain.StateTechnicianVerified {
			return false, domain.NewStateError("record_survey", app.State, domain.StateTechnicianVerified)
		}
		if !act.IsAdmin() && !isAssignedTechnician(act, app) {
			return false, domain.ErrUnauthorized
		}

		now := time.Now().UTC()
		survey := domain.SurveyRecord{
			ID:                   s.genID.Generate(),
			ApplicationID:        app.ID,
			RecordedBy:           act.ID,
			PipeDiameterMM:       req.PipeDiameterMM,
			OccupantCount:        req.OccupantCount,
			Latitude:             req.Latitude,
			Longitude:            req.Longitude,
			StructuralCompliance: req.StructuralCompliance,
			Notes:                req.Notes,
			NetworkDocURL:        strings.TrimSpace(req.NetworkDocURL),
			TankPositionDocURL:   strings.TrimSpace(req.TankPositionDocURL),
			MeterPositionDocURL:  strings.TrimSpace(req.MeterPositionDocURL),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := s.repo.InsertSurvey(ctx, tx, &survey); err != nil {
			return false, err
		}

		app.State = domain.StateSurveyCompleted
		app.SurveyID = &survey.ID
		return true, nil
	})
}

// CreateEstimate issues the installation cost proposal (RAB).
func (s *Service) CreateEstimate(ctx context.Context, req domain.CreateEstimateRequest) (domain.ConnectionApplication, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.ConnectionApplication{}, err
	}

	if req.TotalCost <= 0 {
		return domain.ConnectionApplication{}, domain.ErrInvalidCost
	}
	if strings.TrimSpace(req.DocumentURL) == "" {
		return domain.ConnectionApplication{}, domain.ErrMissingEstimateDoc
	}

	return s.transition(ctx, req.ApplicationID, "create_estimate", func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error) {
		if app.State != domain.StateSurveyCompleted {
			return false, domain.NewStateError("create_estimate", app.State, domain.StateSurveyCompleted)
		}

		now := time.Now().UTC()
		estimate := domain.CostEstimate{
			ID:            s.genID.Generate(),
			ApplicationID: app.ID,
			TotalCost:     req.TotalCost,
			DocumentURL:   strings.TrimSpace(req.DocumentURL),
			Notes:         req.Notes,
			Status:        domain.EstimateStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.InsertEstimate(ctx, tx, &estimate); err != nil {
			return false, err
		}

		app.State = domain.StateEstimateCreated
		app.EstimateID = &estimate.ID
		return true, nil
	})
}

// SettleEstimate records payment of the pending estimate. Settlement is
// terminal for the estimate and unlocks meter creation.
func (s *Service) SettleEstimate(ctx context.Context, req domain.SettleEstimateRequest) (domain.ConnectionApplication, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.ConnectionApplication{}, err
	}

	method := strings.TrimSpace(req.Method)
	if method == "" {
		return domain.ConnectionApplication{}, domain.ErrInvalidMethod
	}

	return s.transition(ctx, req.ApplicationID, "settle_estimate", func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error) {
		if app.State != domain.StateEstimateCreated {
			return false, domain.NewStateError("settle_estimate", app.State, domain.StateEstimateCreated)
		}
		if app.EstimateID == nil {
			return false, domain.ErrEstimateNotFound
		}

		estimate, err := s.repo.FindEstimateByID(ctx, tx, *app.EstimateID)
		if err != nil {
			return false, err
		}
		if estimate == nil {
			return false, domain.ErrEstimateNotFound
		}

		now := time.Now().UTC()
		estimate.Status = domain.EstimateStatusSettlement
		estimate.PaymentMethod = &method
		estimate.PaidAt = &now
		if err := s.repo.UpdateEstimate(ctx, tx, estimate); err != nil {
			return false, err
		}

		app.State = domain.StateEstimateSettled
		return true, nil
	})
}

// CloseEstimate records a cancelled or expired outcome and returns the
// application to survey-completed so a new estimate can be issued. The survey
// is preserved; the dead estimate keeps its terminal status on record.
func (s *Service) CloseEstimate(ctx context.Context, req domain.CloseEstimateRequest) (domain.ConnectionApplication, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.ConnectionApplication{}, err
	}

	if req.Outcome != domain.EstimateStatusCancelled && req.Outcome != domain.EstimateStatusExpired {
		return domain.ConnectionApplication{}, domain.ErrInvalidOutcome
	}

	return s.transition(ctx, req.ApplicationID, "close_estimate", func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error) {
		if app.State != domain.StateEstimateCreated {
			return false, domain.NewStateError("close_estimate", app.State, domain.StateEstimateCreated)
		}
		if app.EstimateID == nil {
			return false, domain.ErrEstimateNotFound
		}

		estimate, err := s.repo.FindEstimateByID(ctx, tx, *app.EstimateID)
		if err != nil {
			return false, err
		}
		if estimate == nil {
			return false, domain.ErrEstimateNotFound
		}

		estimate.Status = req.Outcome
		if err := s.repo.UpdateEstimate(ctx, tx, estimate); err != nil {
			return false, err
		}

		app.State = domain.StateSurveyCompleted
		app.EstimateID = nil
		return true, nil
	})
}

// Reject terminates the application from any non-terminal state and voids
// in-progress survey and estimate records.
func (s *Service) Reject(ctx context.Context, req domain.RejectRequest) (domain.ConnectionApplication, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.ConnectionApplication{}, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.ConnectionApplication{}, domain.ErrInvalidReason
	}

	return s.transition(ctx, req.ApplicationID, "reject", func(tx *gorm.DB, app *domain.ConnectionApplication) (bool, error) {
		if app.State.Terminal() {
			return false, domain.NewStateError("reject", app.State,
				domain.StateSubmitted, domain.StateAdminVerified, domain.StateTechnicianAssigned,
				domain.StateTechnicianVerified, domain.StateSurveyCompleted,
				domain.StateEstimateCreated, domain.StateEstimateSettled)
		}

		if err := s.repo.VoidChildren(ctx, tx, app.ID); err != nil {
			return false, err
		}

		app.State = domain.StateRejected
		app.RejectionReason = &reason
		return true, nil
	})
}
