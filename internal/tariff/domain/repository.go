package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, group *TariffGroup) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TariffGroup, error)
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TariffGroup, error)
	List(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*TariffGroup, error)
	Update(ctx context.Context, db *gorm.DB, group *TariffGroup) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	CountMeters(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
