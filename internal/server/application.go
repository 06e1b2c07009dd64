package server

import (
	"net/http"
	"strings"

	conndomain "github.com/flowin/pdam/internal/connection/domain"
	"github.com/gin-gonic/gin"
)

type submitApplicationRequest struct {
	CustomerID           string `json:"customer_id"`
	IdentityNumber       string `json:"identity_number"`
	IdentityDocURL       string `json:"identity_doc_url"`
	FamilyCardNumber     string `json:"family_card_number"`
	FamilyCardDocURL     string `json:"family_card_doc_url"`
	BuildingPermitNumber string `json:"building_permit_number"`
	BuildingPermitDocURL string `json:"building_permit_doc_url"`
	Address              string `json:"address"`
	Village              string `json:"village"`
	District             string `json:"district"`
	City                 string `json:"city"`
	BuildingAreaM2       int    `json:"building_area_m2"`
}

type verifyApplicationRequest struct {
	Note string `json:"note"`
}

type assignTechnicianRequest struct {
	TechnicianID string `json:"technician_id"`
}

type recordSurveyRequest struct {
	PipeDiameterMM       int     `json:"pipe_diameter_mm"`
	OccupantCount        int     `json:"occupant_count"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	StructuralCompliance bool    `json:"structural_compliance"`
	Notes                string  `json:"notes"`
	NetworkDocURL        string  `json:"network_doc_url"`
	TankPositionDocURL   string  `json:"tank_position_doc_url"`
	MeterPositionDocURL  string  `json:"meter_position_doc_url"`
}

type createEstimateRequest struct {
	TotalCost   int64  `json:"total_cost"`
	DocumentURL string `json:"document_url"`
	Notes       string `json:"notes"`
}

type settleEstimateRequest struct {
	Method string `json:"method"`
}

type closeEstimateRequest struct {
	Outcome string `json:"outcome"`
}

type rejectApplicationRequest struct {
	Reason string `json:"reason"`
}

type updateSurveyNotesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) SubmitApplication(c *gin.Context) {
	var req submitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.Submit(c.Request.Context(), conndomain.SubmitApplicationRequest{
		CustomerID:           strings.TrimSpace(req.CustomerID),
		IdentityNumber:       strings.TrimSpace(req.IdentityNumber),
		IdentityDocURL:       strings.TrimSpace(req.IdentityDocURL),
		FamilyCardNumber:     strings.TrimSpace(req.FamilyCardNumber),
		FamilyCardDocURL:     strings.TrimSpace(req.FamilyCardDocURL),
		BuildingPermitNumber: strings.TrimSpace(req.BuildingPermitNumber),
		BuildingPermitDocURL: strings.TrimSpace(req.BuildingPermitDocURL),
		Address:              strings.TrimSpace(req.Address),
		Village:              strings.TrimSpace(req.Village),
		District:             strings.TrimSpace(req.District),
		City:                 strings.TrimSpace(req.City),
		BuildingAreaM2:       req.BuildingAreaM2,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListApplications(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
		State     string `form:"state"`
		Customer  string `form:"customer"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.List(c.Request.Context(), conndomain.ListApplicationRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
		State:     strings.TrimSpace(query.State),
		Customer:  strings.TrimSpace(query.Customer),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetApplicationByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.applicationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyApplicationByAdmin(c *gin.Context) {
	var req verifyApplicationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.VerifyByAdmin(c.Request.Context(), conndomain.VerifyRequest{
		ApplicationID: strings.TrimSpace(c.Param("id")),
		Note:          strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AssignTechnician(c *gin.Context) {
	var req assignTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.AssignTechnician(c.Request.Context(), conndomain.AssignTechnicianRequest{
		ApplicationID: strings.TrimSpace(c.Param("id")),
		TechnicianID:  strings.TrimSpace(req.TechnicianID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnassignTechnician(c *gin.Context) {
	resp, err := s.applicationSvc.UnassignTechnician(c.Request.Context(), conndomain.UnassignTechnicianRequest{
		ApplicationID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyApplicationByTechnician(c *gin.Context) {
	var req verifyApplicationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.VerifyByTechnician(c.Request.Context(), conndomain.VerifyRequest{
		ApplicationID: strings.TrimSpace(c.Param("id")),
		Note:          strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecordSurvey(c *gin.Context) {
	var req recordSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.RecordSurvey(c.Request.Context(), conndomain.RecordSurveyRequest{
		ApplicationID:        strings.TrimSpace(c.Param("id")),
		PipeDiameterMM:       req.PipeDiameterMM,
		OccupantCount:        req.OccupantCount,
		Latitude:             req.Latitude,
		Longitude:            req.Longitude,
		StructuralCompliance: req.StructuralCompliance,
		Notes:                strings.TrimSpace(req.Notes),
		NetworkDocURL:        strings.TrimSpace(req.NetworkDocURL),
		TankPositionDocURL:   strings.TrimSpace(req.TankPositionDocURL),
		MeterPositionDocURL:  strings.TrimSpace(req.MeterPositionDocURL),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateSurveyNotes(c *gin.Context) {
	var req updateSurveyNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.UpdateSurveyNotes(c.Request.Context(), conndomain.UpdateSurveyNotesRequest{
		ApplicationID: strings.TrimSpace(c.Param("id")),
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateEstimate(c *gin.Context) {
	var req createEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.CreateEstimate(c.Request.Context(), conndomain.CreateEstimateRequest{
		ApplicationID: strings.TrimSpace(c.Param("id")),
		TotalCost:     req.TotalCost,
		DocumentURL:   strings.TrimSpace(req.DocumentURL),
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SettleEstimate(c *gin.Context) {
	var req settleEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.SettleEstimate(c.Request.Context(), conndomain.SettleEstimateRequest{
		ApplicationID: strings.TrimSpace(c.Param("id")),
		Method:        strings.TrimSpace(req.Method),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CloseEstimate(c *gin.Context) {
	var req closeEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.CloseEstimate(c.Request.Context(), conndomain.CloseEstimateRequest{
		ApplicationID: strings.TrimSpace(c.Param("id")),
		Outcome:       conndomain.EstimateStatus(strings.TrimSpace(req.Outcome)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectApplication(c *gin.Context) {
	var req rejectApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.Reject(c.Request.Context(), conndomain.RejectRequest{
		ApplicationID: strings.TrimSpace(c.Param("id")),
		Reason:        strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isApplicationValidationError(err error) bool {
	switch err {
	case conndomain.ErrInvalidID,
		conndomain.ErrInvalidCustomer,
		conndomain.ErrMissingDocument,
		conndomain.ErrInvalidAddress,
		conndomain.ErrInvalidBuildingArea,
		conndomain.ErrInvalidTechnician,
		conndomain.ErrInvalidDiameter,
		conndomain.ErrInvalidOccupants,
		conndomain.ErrMissingSurveyDoc,
		conndomain.ErrInvalidCost,
		conndomain.ErrMissingEstimateDoc,
		conndomain.ErrInvalidMethod,
		conndomain.ErrInvalidOutcome,
		conndomain.ErrInvalidReason:
		return true
	default:
		return false
	}
}
