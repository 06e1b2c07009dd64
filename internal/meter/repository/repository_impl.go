package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/meter/domain"
	"github.com/flowin/pdam/pkg/db/option"
	"github.com/flowin/pdam/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, meter *domain.Meter) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meters (id, application_id, tariff_group_id, meter_number, account_number,
		                     active, install_reading, unpaid_usage, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meter.ID,
		meter.ApplicationID,
		meter.TariffGroupID,
		meter.MeterNumber,
		meter.AccountNumber,
		meter.Active,
		meter.InstallReading,
		meter.UnpaidUsage,
		meter.CreatedAt,
		meter.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Meter, error) {
	return r.findByID(ctx, db, id, false)
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Meter, error) {
	return r.findByID(ctx, db, id, true)
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, id snowflake.ID, lock bool) (*domain.Meter, error) {
	query := `SELECT id, application_id, tariff_group_id, meter_number, account_number,
	                 active, install_reading, unpaid_usage, created_at, updated_at
	          FROM meters WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	var meter domain.Meter
	err := db.WithContext(ctx).Raw(query, id).Scan(&meter).Error
	if err != nil {
		return nil, err
	}
	if meter.ID == 0 {
		return nil, nil
	}
	return &meter, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, active *bool, page pagination.Pagination) ([]*domain.Meter, error) {
	var meters []*domain.Meter
	stmt := db.WithContext(ctx).Model(&domain.Meter{})
	if active != nil {
		stmt = stmt.Where("active = ?", *active)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&meters).Error
	if err != nil {
		return nil, err
	}
	return meters, nil
}

func (r *repo) CountCollisions(ctx context.Context, db *gorm.DB, meterNumber, accountNumber string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM meters
		 WHERE LOWER(meter_number) = LOWER(?) OR LOWER(account_number) = LOWER(?)`,
		meterNumber,
		accountNumber,
	).Scan(&count).Error
	return count, err
}

func (r *repo) UpdateTariffGroup(ctx context.Context, db *gorm.DB, id, tariffGroupID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meters SET tariff_group_id = ?, updated_at = ? WHERE id = ?`,
		tariffGroupID,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meters SET active = ?, updated_at = ? WHERE id = ?`,
		active,
		time.Now().UTC(),
		id,
	).Error
}
