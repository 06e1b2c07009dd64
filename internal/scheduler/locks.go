package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// fetchMetersNeedingBilling claims a batch of active meters that have no
// billing for the period. FOR UPDATE SKIP LOCKED keeps concurrent scheduler
// instances off each other's batches; the (meter, period) unique index makes
// losing a claim harmless.
func (s *Scheduler) fetchMetersNeedingBilling(ctx context.Context, period string, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		limit = s.cfg.BatchSize
	}

	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var rows []struct {
		ID snowflake.ID
	}
	err := s.db.WithContext(claimCtx).Transaction(func(tx *gorm.DB) error {
		return tx.WithContext(claimCtx).Raw(
			`SELECT m.id
			 FROM meters m
			 WHERE m.active = ?
			   AND NOT EXISTS (
			       SELECT 1 FROM billings b
			       WHERE b.meter_id = m.id AND b.period = ?
			   )
			 ORDER BY m.id
			 LIMIT ?
			 FOR UPDATE SKIP LOCKED`,
			true,
			period,
			limit,
		).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
