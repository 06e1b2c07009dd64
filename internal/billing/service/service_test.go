package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/billing/domain"
	"github.com/flowin/pdam/internal/billing/repository"
	"github.com/flowin/pdam/internal/clock"
	"github.com/flowin/pdam/internal/config"
	meterdomain "github.com/flowin/pdam/internal/meter/domain"
	meterrepository "github.com/flowin/pdam/internal/meter/repository"
	tariffdomain "github.com/flowin/pdam/internal/tariff/domain"
	tariffrepository "github.com/flowin/pdam/internal/tariff/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// sqlite has no row locks; strip the clauses so the postgres SQL runs.
	stripLocks := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			sql = strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			sql = strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(sql)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_strip_locks", stripLocks))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_strip_locks_row", stripLocks))

	require.NoError(t, db.AutoMigrate(
		&tariffdomain.TariffGroup{},
		&meterdomain.Meter{},
		&domain.Billing{},
	))
	return db
}

func newTestService(t *testing.T, fake *clock.FakeClock) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db := newTestDB(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Config: config.Config{
			Billing: config.BillingConfig{
				DueGraceDays:   20,
				PenaltyRateBps: 200,
			},
		},
		Repo:       repository.Provide(),
		MeterRepo:  meterrepository.Provide(),
		TariffRepo: tariffrepository.Provide(),
	})
	return svc, db, node
}

func seedMeter(t *testing.T, db *gorm.DB, node *snowflake.Node, installReading int64) meterdomain.Meter {
	t.Helper()

	now := time.Now().UTC()
	group := tariffdomain.TariffGroup{
		ID:           node.Generate(),
		Name:         fmt.Sprintf("residential-%d", node.Generate()),
		PriceBelow10: 5000,
		PriceAbove10: 8000,
		FixedCharge:  10000,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, db.Create(&group).Error)

	meter := meterdomain.Meter{
		ID:             node.Generate(),
		ApplicationID:  node.Generate(),
		TariffGroupID:  group.ID,
		MeterNumber:    fmt.Sprintf("MTR-%d", node.Generate()),
		AccountNumber:  fmt.Sprintf("ACC-%d", node.Generate()),
		Active:         true,
		InstallReading: installReading,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, db.Create(&meter).Error)
	return meter
}

func meterBalance(t *testing.T, db *gorm.DB, id snowflake.ID) int64 {
	t.Helper()

	var meter meterdomain.Meter
	require.NoError(t, db.First(&meter, "id = ?", id).Error)
	return meter.UnpaidUsage
}

func TestIssue_FirstBilling(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 1200)

	reading := int64(1250)
	billing, err := svc.Issue(context.Background(), domain.IssueRequest{
		MeterID:        meter.ID.String(),
		Period:         "2025-01",
		CurrentReading: &reading,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1200), billing.PreviousReading)
	assert.Equal(t, int64(1250), billing.CurrentReading)
	assert.Equal(t, int64(50), billing.Consumption)
	assert.Equal(t, int64(370000), billing.VolumetricCost)
	assert.Equal(t, int64(10000), billing.FixedCharge)
	assert.Equal(t, int64(380000), billing.Total)
	assert.Zero(t, billing.Arrears)
	assert.Zero(t, billing.Penalty)
	assert.Equal(t, domain.BillingStatusUnpaid, billing.Status)
	// Period end (Feb 1) plus the 20-day grace window.
	assert.Equal(t, time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC), billing.DueDate)

	assert.Equal(t, int64(380000), meterBalance(t, db, meter.ID))
}

func TestIssue_DuplicatePeriod(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 0)

	_, err := svc.Issue(context.Background(), domain.IssueRequest{MeterID: meter.ID.String(), Period: "2025-01"})
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), domain.IssueRequest{MeterID: meter.ID.String(), Period: "2025-01"})
	assert.ErrorIs(t, err, domain.ErrBillingExists)

	// The failed attempt must not touch the running balance.
	assert.Equal(t, int64(10000), meterBalance(t, db, meter.ID))
}

func TestIssue_EarlierPeriodRejected(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 0)

	_, err := svc.Issue(context.Background(), domain.IssueRequest{MeterID: meter.ID.String(), Period: "2025-02"})
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), domain.IssueRequest{MeterID: meter.ID.String(), Period: "2025-01"})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestIssue_InactiveMeter(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 0)
	require.NoError(t, db.Exec(`UPDATE meters SET active = ? WHERE id = ?`, false, meter.ID).Error)

	_, err := svc.Issue(context.Background(), domain.IssueRequest{MeterID: meter.ID.String(), Period: "2025-01"})
	assert.ErrorIs(t, err, domain.ErrMeterInactive)
}

func TestIssue_ReadingRollback(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 1200)

	reading := int64(1100)
	_, err := svc.Issue(context.Background(), domain.IssueRequest{
		MeterID:        meter.ID.String(),
		Period:         "2025-01",
		CurrentReading: &reading,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidReading)
}

func TestIssue_InvalidPeriodKey(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 0)

	_, err := svc.Issue(context.Background(), domain.IssueRequest{MeterID: meter.ID.String(), Period: "Jan-2025"})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestIssue_ArrearsAndPenaltyAccrue(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 1200)

	reading := int64(1250)
	first, err := svc.Issue(context.Background(), domain.IssueRequest{
		MeterID:        meter.ID.String(),
		Period:         "2025-01",
		CurrentReading: &reading,
	})
	require.NoError(t, err)
	require.Equal(t, int64(380000), first.Total)

	// Past the January due date with nothing paid; February closes without a
	// recorded reading, so it bills zero consumption at the minimum charge.
	fake.Advance(31 * 24 * time.Hour) // 2025-03-04

	second, err := svc.Issue(context.Background(), domain.IssueRequest{
		MeterID: meter.ID.String(),
		Period:  "2025-02",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1250), second.PreviousReading)
	assert.Equal(t, int64(1250), second.CurrentReading)
	assert.Zero(t, second.Consumption)
	assert.Equal(t, int64(10000), second.Total)
	assert.Equal(t, int64(380000), second.Arrears)
	// 380000 * 200bps = 7600.
	assert.Equal(t, int64(7600), second.Penalty)
	assert.Equal(t, int64(380000+10000+7600), second.TotalOutstanding())

	// Balance: first total + second total + second penalty.
	assert.Equal(t, int64(380000+10000+7600), meterBalance(t, db, meter.ID))
}

func TestSettle(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 1200)

	reading := int64(1250)
	billing, err := svc.Issue(context.Background(), domain.IssueRequest{
		MeterID:        meter.ID.String(),
		Period:         "2025-01",
		CurrentReading: &reading,
	})
	require.NoError(t, err)
	require.Equal(t, int64(380000), meterBalance(t, db, meter.ID))

	settled, err := svc.Settle(context.Background(), domain.SettleRequest{
		BillingID: billing.ID.String(),
		Method:    "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BillingStatusPaid, settled.Status)
	require.NotNil(t, settled.PaidAt)
	require.NotNil(t, settled.PaymentMethod)
	assert.Equal(t, "bank_transfer", *settled.PaymentMethod)
	assert.Zero(t, meterBalance(t, db, meter.ID))

	// Settling twice is a no-op, not a double credit.
	again, err := svc.Settle(context.Background(), domain.SettleRequest{
		BillingID: billing.ID.String(),
		Method:    "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BillingStatusPaid, again.Status)
	assert.Equal(t, "bank_transfer", *again.PaymentMethod)
	assert.Zero(t, meterBalance(t, db, meter.ID))
}

func TestSettle_Validation(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, _, node := newTestService(t, fake)

	_, err := svc.Settle(context.Background(), domain.SettleRequest{
		BillingID: node.Generate().String(),
		Method:    "",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMethod)

	_, err = svc.Settle(context.Background(), domain.SettleRequest{
		BillingID: node.Generate().String(),
		Method:    "cash",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByMeter(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 0)

	_, err := svc.Issue(context.Background(), domain.IssueRequest{MeterID: meter.ID.String(), Period: "2025-01"})
	require.NoError(t, err)
	fake.Advance(31 * 24 * time.Hour)
	_, err = svc.Issue(context.Background(), domain.IssueRequest{MeterID: meter.ID.String(), Period: "2025-02"})
	require.NoError(t, err)

	resp, err := svc.ListByMeter(context.Background(), domain.ListByMeterRequest{MeterID: meter.ID.String()})
	require.NoError(t, err)
	assert.Len(t, resp.Billings, 2)
}

func TestSettle_ConcurrentSettlementIsNoOp(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))
	svc, db, node := newTestService(t, fake)
	meter := seedMeter(t, db, node, 1200)

	reading := int64(1250)
	billing, err := svc.Issue(context.Background(), domain.IssueRequest{
		MeterID:        meter.ID.String(),
		Period:         "2025-01",
		CurrentReading: &reading,
	})
	require.NoError(t, err)

	// A rival settlement commits at the moment this one reaches the meter
	// lock, the point where postgres would serialize the two transactions.
	var rivalDone bool
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("rival_settlement", func(d *gorm.DB) {
		if rivalDone || !strings.Contains(d.Statement.SQL.String(), "FROM meters WHERE id") {
			return
		}
		rivalDone = true
		now := time.Now().UTC()
		_, err := d.Statement.ConnPool.ExecContext(d.Statement.Context,
			`UPDATE billings SET status = ?, payment_method = ?, paid_at = ?, updated_at = ? WHERE id = ?`,
			string(domain.BillingStatusPaid), "bank_transfer", now, now, int64(billing.ID))
		require.NoError(t, err)
		_, err = d.Statement.ConnPool.ExecContext(d.Statement.Context,
			`UPDATE meters SET unpaid_usage = unpaid_usage - ? WHERE id = ?`,
			billing.Total+billing.Penalty, int64(meter.ID))
		require.NoError(t, err)
	}))

	settled, err := svc.Settle(context.Background(), domain.SettleRequest{
		BillingID: billing.ID.String(),
		Method:    "cash",
	})
	require.NoError(t, err)
	require.True(t, rivalDone)

	// The loser observes the committed settlement: no second deduction, and
	// the rival's payment method survives.
	assert.Equal(t, domain.BillingStatusPaid, settled.Status)
	require.NotNil(t, settled.PaymentMethod)
	assert.Equal(t, "bank_transfer", *settled.PaymentMethod)
	assert.Equal(t, int64(0), meterBalance(t, db, meter.ID))
}
