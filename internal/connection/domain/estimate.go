package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type EstimateStatus string

const (
	EstimateStatusPending    EstimateStatus = "pending"
	EstimateStatusSettlement EstimateStatus = "settlement"
	EstimateStatusCancelled  EstimateStatus = "cancelled"
	EstimateStatusExpired    EstimateStatus = "expired"
)

// CostEstimate (RAB) is the installation cost proposal a customer must pay
// before meter installation. Only its payment status and paid-at mutate;
// settlement is terminal and unlocks meter creation. A cancelled or expired
// estimate stays on record while the application returns to survey-completed
// so a fresh estimate can be issued.
type CostEstimate struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	ApplicationID snowflake.ID `gorm:"not null;index" json:"application_id"`

	TotalCost   int64  `gorm:"not null" json:"total_cost"`
	DocumentURL string `gorm:"not null" json:"document_url"`
	Notes       string `json:"notes"`

	Status        EstimateStatus `gorm:"type:text;not null" json:"status"`
	PaymentMethod *string        `json:"payment_method,omitempty"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`

	Voided    bool      `gorm:"not null;default:false" json:"voided"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CostEstimate) TableName() string { return "cost_estimates" }
