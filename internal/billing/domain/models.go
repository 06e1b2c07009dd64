// Package domain contains billing entities and the billing period helpers.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

type BillingStatus string

const (
	BillingStatusUnpaid BillingStatus = "unpaid"
	BillingStatusPaid   BillingStatus = "paid"
)

// Billing is one period's computed charge for a meter. Monetary fields are
// immutable once issued; corrections require a new, explicitly reversing
// record. Only payment settlement mutates status, paid-at and method.
type Billing struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	MeterID snowflake.ID `gorm:"not null;uniqueIndex:idx_billings_meter_period" json:"meter_id"`
	// Period is the calendar month being billed, formatted YYYY-MM.
	Period string `gorm:"not null;uniqueIndex:idx_billings_meter_period" json:"period"`

	PreviousReading int64 `gorm:"not null" json:"previous_reading"`
	CurrentReading  int64 `gorm:"not null" json:"current_reading"`
	Consumption     int64 `gorm:"not null" json:"consumption"`

	VolumetricCost int64 `gorm:"not null" json:"volumetric_cost"`
	FixedCharge    int64 `gorm:"not null" json:"fixed_charge"`
	// Arrears is the unpaid balance carried from the previous period.
	Arrears int64 `gorm:"not null;default:0" json:"arrears"`
	// Penalty is the late charge accrued on that balance.
	Penalty int64 `gorm:"not null;default:0" json:"penalty"`
	// Total is the current period's own charge: volumetric + fixed.
	Total int64 `gorm:"not null" json:"total"`

	DueDate       time.Time     `gorm:"not null" json:"due_date"`
	Status        BillingStatus `gorm:"type:text;not null" json:"status"`
	PaymentMethod *string       `json:"payment_method,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Billing) TableName() string { return "billings" }

// TotalOutstanding is everything owed on this billing: the period's own
// charge plus the carried balance and its penalty.
func (b Billing) TotalOutstanding() int64 {
	return b.Total + b.Arrears + b.Penalty
}

// Overdue reports whether the billing is unpaid past its due date.
func (b Billing) Overdue(now time.Time) bool {
	return b.Status != BillingStatusPaid && now.After(b.DueDate)
}

// CostBreakdown is the output of the tariff calculation. All values are
// integer minor currency units.
type CostBreakdown struct {
	Consumption    int64 `json:"consumption"`
	VolumetricCost int64 `json:"volumetric_cost"`
	FixedCharge    int64 `json:"fixed_charge"`
	Total          int64 `json:"total"`
}

const periodLayout = "2006-01"

// ParsePeriod validates a YYYY-MM period key and returns the period start.
func ParsePeriod(period string) (time.Time, error) {
	start, err := time.Parse(periodLayout, period)
	if err != nil {
		return time.Time{}, ErrInvalidPeriod
	}
	return start.UTC(), nil
}

// PeriodOf formats the period key containing t.
func PeriodOf(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

// PeriodEnd returns the first instant after the billing period.
func PeriodEnd(period string) (time.Time, error) {
	start, err := ParsePeriod(period)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 1, 0), nil
}

// PreviousPeriod returns the period key of the calendar month before t.
func PreviousPeriod(t time.Time) string {
	year, month, _ := t.UTC().Date()
	return fmt.Sprintf("%04d-%02d", yearOf(year, month), monthOf(month))
}

func yearOf(year int, month time.Month) int {
	if month == time.January {
		return year - 1
	}
	return year
}

func monthOf(month time.Month) time.Month {
	if month == time.January {
		return time.December
	}
	return month - 1
}

var (
	ErrInvalidReading = errors.New("invalid_reading")
	ErrInvalidPeriod  = errors.New("invalid_period")
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidMethod  = errors.New("invalid_payment_method")
	ErrBillingExists  = errors.New("billing_exists")
	ErrNotFound       = errors.New("billing_not_found")
	ErrMeterInactive  = errors.New("meter_inactive")
)
