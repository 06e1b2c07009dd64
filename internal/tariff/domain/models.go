// Package domain contains the tariff catalog entities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TierThresholdM3 is the consumption threshold separating the two volumetric
// price tiers.
const TierThresholdM3 int64 = 10

// TariffGroup is a named pricing tier. Prices are integer minor currency
// units per cubic meter; FixedCharge is a flat monthly amount.
type TariffGroup struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"not null;uniqueIndex" json:"name"`
	PriceBelow10 int64        `gorm:"column:price_below_10;not null" json:"price_below_10"`
	PriceAbove10 int64        `gorm:"column:price_above_10;not null" json:"price_above_10"`
	FixedCharge  int64        `gorm:"not null;default:0" json:"fixed_charge"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TariffGroup) TableName() string { return "tariff_groups" }
