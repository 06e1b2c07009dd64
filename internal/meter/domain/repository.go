package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, meter *Meter) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Meter, error)
	// LockByID loads the meter row under FOR UPDATE so billing issuance for
	// the same meter serializes.
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Meter, error)
	List(ctx context.Context, db *gorm.DB, active *bool, page pagination.Pagination) ([]*Meter, error)
	// CountCollisions counts meters whose meter number or account number
	// matches case-insensitively; called under the provisioning transaction
	// so the check and the insert are atomic.
	CountCollisions(ctx context.Context, db *gorm.DB, meterNumber, accountNumber string) (int64, error)
	UpdateTariffGroup(ctx context.Context, db *gorm.DB, id, tariffGroupID snowflake.ID) error
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error
}
