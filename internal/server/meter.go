package server

import (
	"net/http"
	"strings"

	meterdomain "github.com/flowin/pdam/internal/meter/domain"
	"github.com/gin-gonic/gin"
)

type provisionMeterRequest struct {
	MeterNumber    string `json:"meter_number"`
	AccountNumber  string `json:"account_number"`
	TariffGroupID  string `json:"tariff_group_id"`
	InstallReading int64  `json:"install_reading"`
}

type retariffMeterRequest struct {
	TariffGroupID string `json:"tariff_group_id"`
}

type setMeterActiveRequest struct {
	Active *bool `json:"active"`
}

// ProvisionMeter creates the physical meter for a settled application and
// completes the workflow.
func (s *Server) ProvisionMeter(c *gin.Context) {
	var req provisionMeterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.meterSvc.Provision(c.Request.Context(), meterdomain.ProvisionRequest{
		ApplicationID:  strings.TrimSpace(c.Param("id")),
		MeterNumber:    strings.TrimSpace(req.MeterNumber),
		AccountNumber:  strings.TrimSpace(req.AccountNumber),
		TariffGroupID:  strings.TrimSpace(req.TariffGroupID),
		InstallReading: req.InstallReading,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMeters(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
		Active    string `form:"active"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.meterSvc.List(c.Request.Context(), meterdomain.ListMeterRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
		Active:    active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMeterByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.meterSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RetariffMeter(c *gin.Context) {
	var req retariffMeterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.meterSvc.Retariff(c.Request.Context(), meterdomain.RetariffRequest{
		MeterID:       strings.TrimSpace(c.Param("id")),
		TariffGroupID: strings.TrimSpace(req.TariffGroupID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetMeterActive(c *gin.Context) {
	var req setMeterActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.meterSvc.SetActive(c.Request.Context(), meterdomain.SetActiveRequest{
		MeterID: strings.TrimSpace(c.Param("id")),
		Active:  *req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isMeterValidationError(err error) bool {
	switch err {
	case meterdomain.ErrInvalidID,
		meterdomain.ErrInvalidMeterNumber,
		meterdomain.ErrInvalidAccountNumber,
		meterdomain.ErrInvalidReading,
		meterdomain.ErrUnknownTariffGroup:
		return true
	default:
		return false
	}
}
