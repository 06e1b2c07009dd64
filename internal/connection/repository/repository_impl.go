package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/connection/domain"
	"github.com/flowin/pdam/pkg/db/option"
	"github.com/flowin/pdam/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const applicationColumns = `id, customer_id, state,
	identity_number, identity_doc_url, family_card_number, family_card_doc_url,
	building_permit_number, building_permit_doc_url,
	address, village, district, city, building_area_m2,
	admin_verified, technician_verified, technician_id, assigned_at, assigned_by,
	survey_id, estimate_id, meter_id, rejection_reason, completed, metadata,
	created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, app *domain.ConnectionApplication) error {
	return db.WithContext(ctx).Create(app).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ConnectionApplication, error) {
	return r.findByID(ctx, db, id, false)
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ConnectionApplication, error) {
	return r.findByID(ctx, db, id, true)
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, id snowflake.ID, lock bool) (*domain.ConnectionApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM connection_applications WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	var app domain.ConnectionApplication
	err := db.WithContext(ctx).Raw(query, id).Scan(&app).Error
	if err != nil {
		return nil, err
	}
	if app.ID == 0 {
		return nil, nil
	}
	return &app, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, app *domain.ConnectionApplication) error {
	app.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`UPDATE connection_applications
		 SET state = ?, admin_verified = ?, technician_verified = ?,
		     technician_id = ?, assigned_at = ?, assigned_by = ?,
		     survey_id = ?, estimate_id = ?, meter_id = ?,
		     rejection_reason = ?, completed = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		app.State,
		app.AdminVerified,
		app.TechnicianVerified,
		app.TechnicianID,
		app.AssignedAt,
		app.AssignedBy,
		app.SurveyID,
		app.EstimateID,
		app.MeterID,
		app.RejectionReason,
		app.Completed,
		app.Metadata,
		app.UpdatedAt,
		app.ID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListApplicationFilter, page pagination.Pagination) ([]*domain.ConnectionApplication, error) {
	var apps []*domain.ConnectionApplication
	stmt := db.WithContext(ctx).Model(&domain.ConnectionApplication{})
	if filter.State != "" {
		stmt = stmt.Where("state = ?", filter.State)
	}
	if filter.CustomerID != "" {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *repo) InsertSurvey(ctx context.Context, db *gorm.DB, survey *domain.SurveyRecord) error {
	return db.WithContext(ctx).Create(survey).Error
}

func (r *repo) FindSurveyByApplication(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) (*domain.SurveyRecord, error) {
	var survey domain.SurveyRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, application_id, recorded_by, pipe_diameter_mm, occupant_count,
		        latitude, longitude, structural_compliance, notes,
		        network_doc_url, tank_position_doc_url, meter_position_doc_url,
		        voided, created_at, updated_at
		 FROM survey_records WHERE application_id = ?`,
		applicationID,
	).Scan(&survey).Error
	if err != nil {
		return nil, err
	}
	if survey.ID == 0 {
		return nil, nil
	}
	return &survey, nil
}

func (r *repo) UpdateSurveyNotes(ctx context.Context, db *gorm.DB, surveyID snowflake.ID, notes string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE survey_records SET notes = ?, updated_at = ? WHERE id = ?`,
		notes,
		time.Now().UTC(),
		surveyID,
	).Error
}

func (r *repo) InsertEstimate(ctx context.Context, db *gorm.DB, estimate *domain.CostEstimate) error {
	return db.WithContext(ctx).Create(estimate).Error
}

func (r *repo) FindEstimateByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CostEstimate, error) {
	var estimate domain.CostEstimate
	err := db.WithContext(ctx).Raw(
		`SELECT id, application_id, total_cost, document_url, notes,
		        status, payment_method, paid_at, voided, created_at, updated_at
		 FROM cost_estimates WHERE id = ?`,
		id,
	).Scan(&estimate).Error
	if err != nil {
		return nil, err
	}
	if estimate.ID == 0 {
		return nil, nil
	}
	return &estimate, nil
}

func (r *repo) UpdateEstimate(ctx context.Context, db *gorm.DB, estimate *domain.CostEstimate) error {
	estimate.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`UPDATE cost_estimates
		 SET status = ?, payment_method = ?, paid_at = ?, voided = ?, updated_at = ?
		 WHERE id = ?`,
		estimate.Status,
		estimate.PaymentMethod,
		estimate.PaidAt,
		estimate.Voided,
		estimate.UpdatedAt,
		estimate.ID,
	).Error
}

func (r *repo) VoidChildren(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) error {
	now := time.Now().UTC()
	if err := db.WithContext(ctx).Exec(
		`UPDATE survey_records SET voided = TRUE, updated_at = ? WHERE application_id = ?`,
		now,
		applicationID,
	).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`UPDATE cost_estimates SET voided = TRUE, updated_at = ? WHERE application_id = ? AND status = ?`,
		now,
		applicationID,
		domain.EstimateStatusPending,
	).Error
}
