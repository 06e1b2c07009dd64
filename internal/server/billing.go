package server

import (
	"net/http"
	"strings"

	billingdomain "github.com/flowin/pdam/internal/billing/domain"
	"github.com/gin-gonic/gin"
)

type issueBillingRequest struct {
	MeterID        string `json:"meter_id"`
	Period         string `json:"period"`
	CurrentReading *int64 `json:"current_reading,omitempty"`
}

type settleBillingRequest struct {
	Method string `json:"method"`
}

func (s *Server) IssueBilling(c *gin.Context) {
	var req issueBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.Issue(c.Request.Context(), billingdomain.IssueRequest{
		MeterID:        strings.TrimSpace(req.MeterID),
		Period:         strings.TrimSpace(req.Period),
		CurrentReading: req.CurrentReading,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBillingByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.billingSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SettleBilling(c *gin.Context) {
	var req settleBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.Settle(c.Request.Context(), billingdomain.SettleRequest{
		BillingID: strings.TrimSpace(c.Param("id")),
		Method:    strings.TrimSpace(req.Method),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBillingsByMeter(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.ListByMeter(c.Request.Context(), billingdomain.ListByMeterRequest{
		MeterID:   strings.TrimSpace(c.Param("id")),
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isBillingValidationError(err error) bool {
	switch err {
	case billingdomain.ErrInvalidID,
		billingdomain.ErrInvalidReading,
		billingdomain.ErrInvalidPeriod,
		billingdomain.ErrInvalidMethod:
		return true
	default:
		return false
	}
}
