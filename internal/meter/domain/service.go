package domain

import (
	"context"
	"errors"

	"github.com/flowin/pdam/pkg/db/pagination"
)

type ProvisionRequest struct {
	ApplicationID  string
	MeterNumber    string
	AccountNumber  string
	TariffGroupID  string
	InstallReading int64
}

type RetariffRequest struct {
	MeterID       string
	TariffGroupID string
}

type SetActiveRequest struct {
	MeterID string
	Active  bool
}

type ListMeterRequest struct {
	PageToken string
	PageSize  int32
	Active    *bool
}

type ListMeterResponse struct {
	pagination.PageInfo
	Meters []Meter `json:"meters"`
}

// Service is the meter provisioner: Provision is the only path that creates
// a meter.
type Service interface {
	Provision(context.Context, ProvisionRequest) (Meter, error)
	Retariff(context.Context, RetariffRequest) (Meter, error)
	SetActive(context.Context, SetActiveRequest) (Meter, error)
	GetByID(context.Context, string) (Meter, error)
	List(context.Context, ListMeterRequest) (ListMeterResponse, error)
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidMeterNumber   = errors.New("invalid_meter_number")
	ErrInvalidAccountNumber = errors.New("invalid_account_number")
	ErrInvalidReading       = errors.New("invalid_install_reading")
	ErrDuplicateMeter       = errors.New("duplicate_meter")
	ErrUnknownTariffGroup   = errors.New("unknown_tariff_group")
	ErrWorkflowNotReady     = errors.New("workflow_not_ready")
	ErrNotFound             = errors.New("meter_not_found")
)
