package domain

import (
	"context"
	"errors"

	"github.com/flowin/pdam/pkg/db/pagination"
)

type CreateTariffGroupRequest struct {
	Name         string
	PriceBelow10 int64
	PriceAbove10 int64
	FixedCharge  int64
}

type UpdateTariffGroupRequest struct {
	ID           string
	Name         *string
	PriceBelow10 *int64
	PriceAbove10 *int64
	FixedCharge  *int64
}

type ListTariffGroupRequest struct {
	PageToken string
	PageSize  int32
}

type ListTariffGroupResponse struct {
	pagination.PageInfo
	TariffGroups []TariffGroup `json:"tariff_groups"`
}

type Service interface {
	Create(context.Context, CreateTariffGroupRequest) (TariffGroup, error)
	Update(context.Context, UpdateTariffGroupRequest) (TariffGroup, error)
	GetByID(context.Context, string) (TariffGroup, error)
	List(context.Context, ListTariffGroupRequest) (ListTariffGroupResponse, error)
	Delete(context.Context, string) error
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidPrice = errors.New("invalid_price")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNameExists   = errors.New("tariff_name_exists")
	ErrNotFound     = errors.New("tariff_not_found")
	ErrInUse        = errors.New("tariff_in_use")
)
