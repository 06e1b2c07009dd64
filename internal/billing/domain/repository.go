package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, billing *Billing) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Billing, error)
	// FindLatestByMeter returns the billing with the highest period for the
	// meter, or nil when none exists yet.
	FindLatestByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (*Billing, error)
	ListByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID, page pagination.Pagination) ([]*Billing, error)
	MarkPaid(ctx context.Context, db *gorm.DB, billing *Billing) error
	// LockMeterBalance locks the meter row and adjusts its running unpaid
	// balance by delta.
	AdjustMeterBalance(ctx context.Context, db *gorm.DB, meterID snowflake.ID, delta int64) error
}
