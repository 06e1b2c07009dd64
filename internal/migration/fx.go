package migration

import (
	"github.com/flowin/pdam/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migration",
	fx.Invoke(Run),
)

// Run applies migrations on startup. Only postgres is migrated automatically;
// other dialects are expected to be provisioned externally.
func Run(cfg config.Config, gormDB *gorm.DB, log *zap.Logger) error {
	if cfg.DBType != "postgres" {
		log.Info("skipping automatic migrations", zap.String("db_type", cfg.DBType))
		return nil
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	if err := RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}
