package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, app *ConnectionApplication) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ConnectionApplication, error)
	// LockByID loads the application row under FOR UPDATE so concurrent
	// transitions on the same application serialize.
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ConnectionApplication, error)
	Update(ctx context.Context, db *gorm.DB, app *ConnectionApplication) error
	List(ctx context.Context, db *gorm.DB, filter ListApplicationFilter, page pagination.Pagination) ([]*ConnectionApplication, error)

	InsertSurvey(ctx context.Context, db *gorm.DB, survey *SurveyRecord) error
	FindSurveyByApplication(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) (*SurveyRecord, error)
	UpdateSurveyNotes(ctx context.Context, db *gorm.DB, surveyID snowflake.ID, notes string) error

	InsertEstimate(ctx context.Context, db *gorm.DB, estimate *CostEstimate) error
	FindEstimateByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CostEstimate, error)
	UpdateEstimate(ctx context.Context, db *gorm.DB, estimate *CostEstimate) error

	// VoidChildren flags any in-progress survey and estimate rows when the
	// application is rejected.
	VoidChildren(ctx context.Context, db *gorm.DB, applicationID snowflake.ID) error
}
