package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/tariff/domain"
	"github.com/flowin/pdam/pkg/db/option"
	"github.com/flowin/pdam/pkg/db/pagination"
	pkgrepository "github.com/flowin/pdam/pkg/repository"
	"gorm.io/gorm"
)

// Tariff groups are plain CRUD rows, so the simple paths go through the
// generic store instead of hand-written SQL.
type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, group *domain.TariffGroup) error {
	return pkgrepository.ProvideStore[domain.TariffGroup](db).Create(ctx, group)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TariffGroup, error) {
	return pkgrepository.ProvideStore[domain.TariffGroup](db).FindOne(ctx, &domain.TariffGroup{ID: id})
}

// LockByID pins the group row for the transaction. Delete and meter
// provisioning both take this lock so a provision cannot bind a meter to a
// group that is being removed.
func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.TariffGroup, error) {
	var group domain.TariffGroup
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price_below_10, price_above_10, fixed_charge, created_at, updated_at
		 FROM tariff_groups WHERE id = ? FOR UPDATE`,
		id,
	).Scan(&group).Error
	if err != nil {
		return nil, err
	}
	if group.ID == 0 {
		return nil, nil
	}
	return &group, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*domain.TariffGroup, error) {
	return pkgrepository.ProvideStore[domain.TariffGroup](db).Find(
		ctx,
		&domain.TariffGroup{},
		option.ApplyPagination(page),
		option.WithOrder("created_at desc, id desc"),
	)
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, group *domain.TariffGroup) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tariff_groups
		 SET name = ?, price_below_10 = ?, price_above_10 = ?, fixed_charge = ?, updated_at = ?
		 WHERE id = ?`,
		group.Name,
		group.PriceBelow10,
		group.PriceAbove10,
		group.FixedCharge,
		group.UpdatedAt,
		group.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM tariff_groups WHERE id = ?`, id).Error
}

func (r *repo) CountMeters(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM meters WHERE tariff_group_id = ?`,
		id,
	).Scan(&count).Error
	return count, err
}
