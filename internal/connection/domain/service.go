package domain

import (
	"context"

	"github.com/flowin/pdam/pkg/db/pagination"
)

type SubmitApplicationRequest struct {
	CustomerID           string
	IdentityNumber       string
	IdentityDocURL       string
	FamilyCardNumber     string
	FamilyCardDocURL     string
	BuildingPermitNumber string
	BuildingPermitDocURL string
	Address              string
	Village              string
	District             string
	City                 string
	BuildingAreaM2       int
}

type VerifyRequest struct {
	ApplicationID string
	Note          string
}

type AssignTechnicianRequest struct {
	ApplicationID string
	TechnicianID  string
}

type UnassignTechnicianRequest struct {
	ApplicationID string
}

type RecordSurveyRequest struct {
	ApplicationID        string
	PipeDiameterMM       int
	OccupantCount        int
	Latitude             float64
	Longitude            float64
	StructuralCompliance bool
	Notes                string
	NetworkDocURL        string
	TankPositionDocURL   string
	MeterPositionDocURL  string
}

type CreateEstimateRequest struct {
	ApplicationID string
	TotalCost     int64
	DocumentURL   string
	Notes         string
}

type SettleEstimateRequest struct {
	ApplicationID string
	Method        string
}

// CloseEstimateRequest records a cancelled or expired estimate outcome,
// returning the application to survey-completed for re-issuance.
type CloseEstimateRequest struct {
	ApplicationID string
	Outcome       EstimateStatus
}

type RejectRequest struct {
	ApplicationID string
	Reason        string
}

type UpdateSurveyNotesRequest struct {
	ApplicationID string
	Notes         string
}

type ListApplicationRequest struct {
	PageToken string
	PageSize  int32
	State     string
	Customer  string
}

type ListApplicationFilter struct {
	State      ApplicationState
	CustomerID string
}

type ListApplicationResponse struct {
	pagination.PageInfo
	Applications []ConnectionApplication `json:"applications"`
}

// ApplicationDetail is the query snapshot with the owned records embedded.
// The meter is referenced by id only; its snapshot lives in the meter domain.
type ApplicationDetail struct {
	ConnectionApplication
	Survey   *SurveyRecord `json:"survey,omitempty"`
	Estimate *CostEstimate `json:"estimate,omitempty"`
}

// Service is the workflow command/query contract. Every command reads the
// acting identity from the context and validates the current state before
// mutating; out-of-order calls fail with ErrPreconditionFailed.
type Service interface {
	Submit(context.Context, SubmitApplicationRequest) (ConnectionApplication, error)
	VerifyByAdmin(context.Context, VerifyRequest) (ConnectionApplication, error)
	AssignTechnician(context.Context, AssignTechnicianRequest) (ConnectionApplication, error)
	UnassignTechnician(context.Context, UnassignTechnicianRequest) (ConnectionApplication, error)
	VerifyByTechnician(context.Context, VerifyRequest) (ConnectionApplication, error)
	RecordSurvey(context.Context, RecordSurveyRequest) (ConnectionApplication, error)
	CreateEstimate(context.Context, CreateEstimateRequest) (ConnectionApplication, error)
	SettleEstimate(context.Context, SettleEstimateRequest) (ConnectionApplication, error)
	CloseEstimate(context.Context, CloseEstimateRequest) (ConnectionApplication, error)
	Reject(context.Context, RejectRequest) (ConnectionApplication, error)
	UpdateSurveyNotes(context.Context, UpdateSurveyNotesRequest) (SurveyRecord, error)
	GetByID(context.Context, string) (ApplicationDetail, error)
	List(context.Context, ListApplicationRequest) (ListApplicationResponse, error)
}
