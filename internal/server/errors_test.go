package server

import (
	"errors"
	"net/http"
	"testing"

	billingdomain "github.com/flowin/pdam/internal/billing/domain"
	conndomain "github.com/flowin/pdam/internal/connection/domain"
	meterdomain "github.com/flowin/pdam/internal/meter/domain"
	tariffdomain "github.com/flowin/pdam/internal/tariff/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError_StateErrorCarriesStates(t *testing.T) {
	err := conndomain.NewStateError("create_estimate", conndomain.StateSubmitted, conndomain.StateSurveyCompleted)

	status, payload := mapError(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "precondition_failed", payload.Type)
	assert.Equal(t, []string{"survey_completed"}, payload.ExpectedStates)
	assert.Equal(t, "submitted", payload.ActualState)
}

func TestMapError_Statuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden_role", conndomain.ErrUnauthorized, http.StatusForbidden},
		{"application_not_found", conndomain.ErrNotFound, http.StatusNotFound},
		{"tariff_not_found", tariffdomain.ErrNotFound, http.StatusNotFound},
		{"meter_not_found", meterdomain.ErrNotFound, http.StatusNotFound},
		{"billing_not_found", billingdomain.ErrNotFound, http.StatusNotFound},
		{"duplicate_meter", meterdomain.ErrDuplicateMeter, http.StatusConflict},
		{"workflow_not_ready", meterdomain.ErrWorkflowNotReady, http.StatusConflict},
		{"billing_exists", billingdomain.ErrBillingExists, http.StatusConflict},
		{"meter_inactive", billingdomain.ErrMeterInactive, http.StatusConflict},
		{"tariff_in_use", tariffdomain.ErrInUse, http.StatusConflict},
		{"tariff_name_exists", tariffdomain.ErrNameExists, http.StatusConflict},
		{"validation_document", conndomain.ErrMissingDocument, http.StatusBadRequest},
		{"validation_period", billingdomain.ErrInvalidPeriod, http.StatusBadRequest},
		{"validation_price", tariffdomain.ErrInvalidPrice, http.StatusBadRequest},
		{"corrupt_state", conndomain.ErrCorruptState, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := mapError(tc.err)
			assert.Equal(t, tc.status, status)
		})
	}
}

func TestMapError_ValidationPayload(t *testing.T) {
	status, payload := mapError(meterdomain.ErrInvalidMeterNumber)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "invalid_meter_number", payload.Errors[0].Code)
		assert.Equal(t, "meter_number", payload.Errors[0].Field)
	}
}
