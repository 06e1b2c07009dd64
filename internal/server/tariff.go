package server

import (
	"net/http"
	"strings"

	tariffdomain "github.com/flowin/pdam/internal/tariff/domain"
	"github.com/gin-gonic/gin"
)

type createTariffGroupRequest struct {
	Name         string `json:"name"`
	PriceBelow10 int64  `json:"price_below_10"`
	PriceAbove10 int64  `json:"price_above_10"`
	FixedCharge  int64  `json:"fixed_charge"`
}

type updateTariffGroupRequest struct {
	Name         *string `json:"name,omitempty"`
	PriceBelow10 *int64  `json:"price_below_10,omitempty"`
	PriceAbove10 *int64  `json:"price_above_10,omitempty"`
	FixedCharge  *int64  `json:"fixed_charge,omitempty"`
}

func (s *Server) CreateTariffGroup(c *gin.Context) {
	var req createTariffGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tariffSvc.Create(c.Request.Context(), tariffdomain.CreateTariffGroupRequest{
		Name:         strings.TrimSpace(req.Name),
		PriceBelow10: req.PriceBelow10,
		PriceAbove10: req.PriceAbove10,
		FixedCharge:  req.FixedCharge,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTariffGroups(c *gin.Context) {
	var query struct {
		PageToken string `form:"page_token"`
		PageSize  int32  `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tariffSvc.List(c.Request.Context(), tariffdomain.ListTariffGroupRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTariffGroupByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.tariffSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTariffGroup(c *gin.Context) {
	var req updateTariffGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tariffSvc.Update(c.Request.Context(), tariffdomain.UpdateTariffGroupRequest{
		ID:           strings.TrimSpace(c.Param("id")),
		Name:         trimStringPtr(req.Name),
		PriceBelow10: req.PriceBelow10,
		PriceAbove10: req.PriceAbove10,
		FixedCharge:  req.FixedCharge,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteTariffGroup(c *gin.Context) {
	if err := s.tariffSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func isTariffValidationError(err error) bool {
	switch err {
	case tariffdomain.ErrInvalidName,
		tariffdomain.ErrInvalidPrice,
		tariffdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
