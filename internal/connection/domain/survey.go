package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SurveyRecord is the field survey for one application. Created once when the
// application reaches technician verification; immutable afterwards except
// for the notes field.
type SurveyRecord struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	ApplicationID snowflake.ID `gorm:"not null;uniqueIndex" json:"application_id"`
	RecordedBy    snowflake.ID `gorm:"not null" json:"recorded_by"`

	PipeDiameterMM       int     `gorm:"not null" json:"pipe_diameter_mm"`
	OccupantCount        int     `gorm:"not null" json:"occupant_count"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	StructuralCompliance bool    `gorm:"not null" json:"structural_compliance"`
	Notes                string  `json:"notes"`

	NetworkDocURL       string `gorm:"not null" json:"network_doc_url"`
	TankPositionDocURL  string `gorm:"not null" json:"tank_position_doc_url"`
	MeterPositionDocURL string `gorm:"not null" json:"meter_position_doc_url"`

	Voided    bool      `gorm:"not null;default:false" json:"voided"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (SurveyRecord) TableName() string { return "survey_records" }
