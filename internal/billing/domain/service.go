package domain

import (
	"context"

	"github.com/flowin/pdam/pkg/db/pagination"
)

type IssueRequest struct {
	MeterID string
	Period  string
	// CurrentReading is the register value at the end of the period. When a
	// period closes without a recorded reading the scheduler issues with the
	// last known reading, producing a zero-consumption minimum bill.
	CurrentReading *int64
}

type SettleRequest struct {
	BillingID string
	Method    string
}

type ListByMeterRequest struct {
	MeterID   string
	PageToken string
	PageSize  int32
}

type ListBillingResponse struct {
	pagination.PageInfo
	Billings []Billing `json:"billings"`
}

// Service issues and settles billings. Issuance is at-most-once per meter
// and period; computed monetary fields never change after issuance.
type Service interface {
	Issue(context.Context, IssueRequest) (Billing, error)
	Settle(context.Context, SettleRequest) (Billing, error)
	GetByID(context.Context, string) (Billing, error)
	ListByMeter(context.Context, ListByMeterRequest) (ListBillingResponse, error)
}
