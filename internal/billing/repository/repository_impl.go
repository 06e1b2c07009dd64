package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/billing/domain"
	"github.com/flowin/pdam/pkg/db/option"
	"github.com/flowin/pdam/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const billingColumns = `id, meter_id, period, previous_reading, current_reading, consumption,
	volumetric_cost, fixed_charge, arrears, penalty, total,
	due_date, status, payment_method, paid_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, billing *domain.Billing) error {
	return db.WithContext(ctx).Create(billing).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Billing, error) {
	var billing domain.Billing
	err := db.WithContext(ctx).Raw(
		`SELECT `+billingColumns+` FROM billings WHERE id = ?`,
		id,
	).Scan(&billing).Error
	if err != nil {
		return nil, err
	}
	if billing.ID == 0 {
		return nil, nil
	}
	return &billing, nil
}

func (r *repo) FindLatestByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (*domain.Billing, error) {
	var billing domain.Billing
	err := db.WithContext(ctx).Raw(
		`SELECT `+billingColumns+` FROM billings
		 WHERE meter_id = ?
		 ORDER BY period DESC
		 LIMIT 1`,
		meterID,
	).Scan(&billing).Error
	if err != nil {
		return nil, err
	}
	if billing.ID == 0 {
		return nil, nil
	}
	return &billing, nil
}

func (r *repo) ListByMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID, page pagination.Pagination) ([]*domain.Billing, error) {
	var billings []*domain.Billing
	stmt := db.WithContext(ctx).
		Model(&domain.Billing{}).
		Where("meter_id = ?", meterID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&billings).Error
	if err != nil {
		return nil, err
	}
	return billings, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, billing *domain.Billing) error {
	billing.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`UPDATE billings
		 SET status = ?, payment_method = ?, paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		billing.Status,
		billing.PaymentMethod,
		billing.PaidAt,
		billing.UpdatedAt,
		billing.ID,
	).Error
}

func (r *repo) AdjustMeterBalance(ctx context.Context, db *gorm.DB, meterID snowflake.ID, delta int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meters SET unpaid_usage = unpaid_usage + ?, updated_at = ? WHERE id = ?`,
		delta,
		time.Now().UTC(),
		meterID,
	).Error
}
