// Package domain contains the provisioned meter entity.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Meter is the billable endpoint bound to exactly one application and one
// tariff group. Identity and application link are immutable; the tariff
// binding may be changed administratively.
type Meter struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	ApplicationID snowflake.ID `gorm:"not null;uniqueIndex" json:"application_id"`
	TariffGroupID snowflake.ID `gorm:"not null;index" json:"tariff_group_id"`

	MeterNumber   string `gorm:"not null" json:"meter_number"`
	AccountNumber string `gorm:"not null" json:"account_number"`

	Active bool `gorm:"not null;default:true" json:"active"`
	// InstallReading is the register value at installation; the first billing
	// period uses it as the previous reading.
	InstallReading int64 `gorm:"not null;default:0" json:"install_reading"`
	// UnpaidUsage is the running unpaid balance in minor currency units.
	UnpaidUsage int64 `gorm:"not null;default:0" json:"unpaid_usage"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Meter) TableName() string { return "meters" }
