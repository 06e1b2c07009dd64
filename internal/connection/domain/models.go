// Package domain contains the service-connection application entities and
// the workflow state definitions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ApplicationState is the single source of truth for workflow progress.
// The legacy admin_verified / technician_verified booleans are persisted as
// projections of the state for external consumers.
type ApplicationState string

const (
	StateSubmitted          ApplicationState = "submitted"
	StateAdminVerified      ApplicationState = "admin_verified"
	StateTechnicianAssigned ApplicationState = "technician_assigned"
	StateTechnicianVerified ApplicationState = "technician_verified"
	StateSurveyCompleted    ApplicationState = "survey_completed"
	StateEstimateCreated    ApplicationState = "estimate_created"
	StateEstimateSettled    ApplicationState = "estimate_settled"
	StateMeterAssigned      ApplicationState = "meter_assigned"
	StateRejected           ApplicationState = "rejected"
)

// Terminal reports whether no further transition may leave the state.
func (s ApplicationState) Terminal() bool {
	return s == StateMeterAssigned || s == StateRejected
}

// Valid reports whether the value is a known state. Persisted rows outside
// this set indicate corruption and are treated as programming errors.
func (s ApplicationState) Valid() bool {
	switch s {
	case StateSubmitted, StateAdminVerified, StateTechnicianAssigned,
		StateTechnicianVerified, StateSurveyCompleted, StateEstimateCreated,
		StateEstimateSettled, StateMeterAssigned, StateRejected:
		return true
	default:
		return false
	}
}

// ConnectionApplication is a customer's request for a new water service
// connection. Mutated only through workflow transitions; terminal once a
// meter is bound or the application is rejected.
type ConnectionApplication struct {
	ID         snowflake.ID     `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID     `gorm:"not null;index" json:"customer_id"`
	State      ApplicationState `gorm:"type:text;not null;index" json:"state"`

	IdentityNumber       string `gorm:"not null" json:"identity_number"`
	IdentityDocURL       string `gorm:"not null" json:"identity_doc_url"`
	FamilyCardNumber     string `gorm:"not null" json:"family_card_number"`
	FamilyCardDocURL     string `gorm:"not null" json:"family_card_doc_url"`
	BuildingPermitNumber string `gorm:"not null" json:"building_permit_number"`
	BuildingPermitDocURL string `gorm:"not null" json:"building_permit_doc_url"`

	Address        string `gorm:"not null" json:"address"`
	Village        string `json:"village"`
	District       string `json:"district"`
	City           string `json:"city"`
	BuildingAreaM2 int    `gorm:"not null" json:"building_area_m2"`

	AdminVerified      bool          `gorm:"not null;default:false" json:"admin_verified"`
	TechnicianVerified bool          `gorm:"not null;default:false" json:"technician_verified"`
	TechnicianID       *snowflake.ID `gorm:"index" json:"technician_id,omitempty"`
	AssignedAt         *time.Time    `json:"assigned_at,omitempty"`
	AssignedBy         *snowflake.ID `json:"assigned_by,omitempty"`

	SurveyID   *snowflake.ID `json:"survey_id,omitempty"`
	EstimateID *snowflake.ID `json:"estimate_id,omitempty"`
	MeterID    *snowflake.ID `json:"meter_id,omitempty"`

	RejectionReason *string           `json:"rejection_reason,omitempty"`
	Completed       bool              `gorm:"not null;default:false" json:"completed"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ConnectionApplication) TableName() string { return "connection_applications" }
