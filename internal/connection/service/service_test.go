package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/actor"
	"github.com/flowin/pdam/internal/connection/domain"
	"github.com/flowin/pdam/internal/connection/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	// sqlite has no row locks; strip the clauses so the postgres SQL runs.
	stripLocks := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			sql = strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			sql = strings.ReplaceAll(sql, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(sql)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_strip_locks", stripLocks))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_strip_locks_row", stripLocks))

	require.NoError(t, db.AutoMigrate(
		&domain.ConnectionApplication{},
		&domain.SurveyRecord{},
		&domain.CostEstimate{},
	))
	return db
}

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db := newTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, db, node
}

func adminCtx(node *snowflake.Node) context.Context {
	return actor.WithActor(context.Background(), actor.Actor{ID: node.Generate(), Role: actor.RoleAdmin})
}

func technicianCtx(id snowflake.ID) context.Context {
	return actor.WithActor(context.Background(), actor.Actor{ID: id, Role: actor.RoleTechnician})
}

func submitRequest() domain.SubmitApplicationRequest {
	return domain.SubmitApplicationRequest{
		CustomerID:           "1001",
		IdentityNumber:       "3275012345678901",
		IdentityDocURL:       "https://docs.example/ktp.pdf",
		FamilyCardNumber:     "3275019876543210",
		FamilyCardDocURL:     "https://docs.example/kk.pdf",
		BuildingPermitNumber: "IMB-2025-001",
		BuildingPermitDocURL: "https://docs.example/imb.pdf",
		Address:              "Jl. Merdeka 1",
		Village:              "Sukamaju",
		District:             "Cibinong",
		City:                 "Bogor",
		BuildingAreaM2:       120,
	}
}

func surveyRequest(appID string) domain.RecordSurveyRequest {
	return domain.RecordSurveyRequest{
		ApplicationID:        appID,
		PipeDiameterMM:       20,
		OccupantCount:        5,
		Latitude:             -6.48,
		Longitude:            106.85,
		StructuralCompliance: true,
		NetworkDocURL:        "https://docs.example/network.pdf",
		TankPositionDocURL:   "https://docs.example/tank.pdf",
		MeterPositionDocURL:  "https://docs.example/meter.pdf",
	}
}

// advanceToEstimateSettled walks one application through the full happy path
// up to estimate settlement and returns it.
func advanceToEstimateSettled(t *testing.T, svc domain.Service, node *snowflake.Node, admin context.Context) domain.ConnectionApplication {
	t.Helper()

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)

	techID := node.Generate()
	tech := technicianCtx(techID)

	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	_, err = svc.AssignTechnician(admin, domain.AssignTechnicianRequest{
		ApplicationID: app.ID.String(),
		TechnicianID:  techID.String(),
	})
	require.NoError(t, err)
	_, err = svc.VerifyByTechnician(tech, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	_, err = svc.RecordSurvey(tech, surveyRequest(app.ID.String()))
	require.NoError(t, err)
	_, err = svc.CreateEstimate(admin, domain.CreateEstimateRequest{
		ApplicationID: app.ID.String(),
		TotalCost:     1500000,
		DocumentURL:   "https://docs.example/rab.pdf",
	})
	require.NoError(t, err)
	settled, err := svc.SettleEstimate(admin, domain.SettleEstimateRequest{
		ApplicationID: app.ID.String(),
		Method:        "bank_transfer",
	})
	require.NoError(t, err)
	return settled
}

func TestWorkflow_HappyPath(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app := advanceToEstimateSettled(t, svc, node, admin)
	assert.Equal(t, domain.StateEstimateSettled, app.State)
	assert.True(t, app.AdminVerified)
	assert.True(t, app.TechnicianVerified)
	assert.NotNil(t, app.SurveyID)
	assert.NotNil(t, app.EstimateID)
	assert.False(t, app.State.Terminal())

	detail, err := svc.GetByID(admin, app.ID.String())
	require.NoError(t, err)
	require.NotNil(t, detail.Survey)
	require.NotNil(t, detail.Estimate)
	assert.Equal(t, domain.EstimateStatusSettlement, detail.Estimate.Status)
	assert.NotNil(t, detail.Estimate.PaidAt)
}

func TestVerifyByAdmin_Idempotent(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)

	first, err := svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StateAdminVerified, first.State)

	second, err := svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StateAdminVerified, second.State)
}

func TestTransition_OutOfOrder(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)

	_, err = svc.CreateEstimate(admin, domain.CreateEstimateRequest{
		ApplicationID: app.ID.String(),
		TotalCost:     1500000,
		DocumentURL:   "https://docs.example/rab.pdf",
	})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

	var stateErr *domain.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, domain.StateSubmitted, stateErr.Actual)
	assert.Contains(t, stateErr.Expected, domain.StateSurveyCompleted)
}

func TestVerifyByTechnician_Authorization(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)
	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)

	assignedID := node.Generate()
	_, err = svc.AssignTechnician(admin, domain.AssignTechnicianRequest{
		ApplicationID: app.ID.String(),
		TechnicianID:  assignedID.String(),
	})
	require.NoError(t, err)

	// A different technician may not verify.
	other := technicianCtx(node.Generate())
	_, err = svc.VerifyByTechnician(other, domain.VerifyRequest{ApplicationID: app.ID.String()})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// An admin override is allowed.
	verified, err := svc.VerifyByTechnician(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StateTechnicianVerified, verified.State)
}

func TestAssignTechnician_ReassignmentOverwrites(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)
	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)

	firstID := node.Generate()
	_, err = svc.AssignTechnician(admin, domain.AssignTechnicianRequest{
		ApplicationID: app.ID.String(),
		TechnicianID:  firstID.String(),
	})
	require.NoError(t, err)

	secondID := node.Generate()
	reassigned, err := svc.AssignTechnician(admin, domain.AssignTechnicianRequest{
		ApplicationID: app.ID.String(),
		TechnicianID:  secondID.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, reassigned.TechnicianID)
	assert.Equal(t, secondID, *reassigned.TechnicianID)
	assert.Equal(t, domain.StateTechnicianAssigned, reassigned.State)
}

func TestUnassignTechnician_ReturnsToAdminVerified(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)
	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	_, err = svc.AssignTechnician(admin, domain.AssignTechnicianRequest{
		ApplicationID: app.ID.String(),
		TechnicianID:  node.Generate().String(),
	})
	require.NoError(t, err)

	unassigned, err := svc.UnassignTechnician(admin, domain.UnassignTechnicianRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.StateAdminVerified, unassigned.State)
	assert.Nil(t, unassigned.TechnicianID)
	assert.Nil(t, unassigned.AssignedAt)
}

func TestCloseEstimate_ReopensSurveyCompleted(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)
	techID := node.Generate()
	tech := technicianCtx(techID)
	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	_, err = svc.AssignTechnician(admin, domain.AssignTechnicianRequest{
		ApplicationID: app.ID.String(),
		TechnicianID:  techID.String(),
	})
	require.NoError(t, err)
	_, err = svc.VerifyByTechnician(tech, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	_, err = svc.RecordSurvey(tech, surveyRequest(app.ID.String()))
	require.NoError(t, err)
	created, err := svc.CreateEstimate(admin, domain.CreateEstimateRequest{
		ApplicationID: app.ID.String(),
		TotalCost:     1500000,
		DocumentURL:   "https://docs.example/rab.pdf",
	})
	require.NoError(t, err)
	firstEstimateID := *created.EstimateID

	closed, err := svc.CloseEstimate(admin, domain.CloseEstimateRequest{
		ApplicationID: app.ID.String(),
		Outcome:       domain.EstimateStatusExpired,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateSurveyCompleted, closed.State)
	assert.Nil(t, closed.EstimateID)
	assert.NotNil(t, closed.SurveyID)

	// A fresh estimate can be issued; the dead one stays on record.
	reissued, err := svc.CreateEstimate(admin, domain.CreateEstimateRequest{
		ApplicationID: app.ID.String(),
		TotalCost:     1750000,
		DocumentURL:   "https://docs.example/rab-v2.pdf",
	})
	require.NoError(t, err)
	require.NotNil(t, reissued.EstimateID)
	assert.NotEqual(t, firstEstimateID, *reissued.EstimateID)
}

func TestCloseEstimate_InvalidOutcome(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)

	_, err = svc.CloseEstimate(admin, domain.CloseEstimateRequest{
		ApplicationID: app.ID.String(),
		Outcome:       domain.EstimateStatusSettlement,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
}

func TestReject_VoidsChildrenAndTerminates(t *testing.T) {
	svc, db, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)
	techID := node.Generate()
	tech := technicianCtx(techID)
	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	_, err = svc.AssignTechnician(admin, domain.AssignTechnicianRequest{
		ApplicationID: app.ID.String(),
		TechnicianID:  techID.String(),
	})
	require.NoError(t, err)
	_, err = svc.VerifyByTechnician(tech, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	_, err = svc.RecordSurvey(tech, surveyRequest(app.ID.String()))
	require.NoError(t, err)
	_, err = svc.CreateEstimate(admin, domain.CreateEstimateRequest{
		ApplicationID: app.ID.String(),
		TotalCost:     1500000,
		DocumentURL:   "https://docs.example/rab.pdf",
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(admin, domain.RejectRequest{
		ApplicationID: app.ID.String(),
		Reason:        "site not serviceable",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateRejected, rejected.State)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "site not serviceable", *rejected.RejectionReason)

	var survey domain.SurveyRecord
	require.NoError(t, db.Where("application_id = ?", app.ID).First(&survey).Error)
	assert.True(t, survey.Voided)

	var estimate domain.CostEstimate
	require.NoError(t, db.Where("application_id = ?", app.ID).First(&estimate).Error)
	assert.True(t, estimate.Voided)

	// Terminal: nothing moves after rejection.
	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	_, err = svc.Reject(admin, domain.RejectRequest{ApplicationID: app.ID.String(), Reason: "again"})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
}

func TestSubmit_Validation(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	req := submitRequest()
	req.FamilyCardDocURL = ""
	_, err := svc.Submit(admin, req)
	assert.ErrorIs(t, err, domain.ErrMissingDocument)

	req = submitRequest()
	req.Address = "  "
	_, err = svc.Submit(admin, req)
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	req = submitRequest()
	req.BuildingAreaM2 = 0
	_, err = svc.Submit(admin, req)
	assert.ErrorIs(t, err, domain.ErrInvalidBuildingArea)
}

func TestSubmit_RequiresAdmin(t *testing.T) {
	svc, _, node := newTestService(t)

	_, err := svc.Submit(technicianCtx(node.Generate()), submitRequest())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Submit(context.Background(), submitRequest())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRecordSurvey_Validation(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)

	req := surveyRequest(app.ID.String())
	req.PipeDiameterMM = 0
	_, err = svc.RecordSurvey(admin, req)
	assert.ErrorIs(t, err, domain.ErrInvalidDiameter)

	req = surveyRequest(app.ID.String())
	req.TankPositionDocURL = ""
	_, err = svc.RecordSurvey(admin, req)
	assert.ErrorIs(t, err, domain.ErrMissingSurveyDoc)
}

func TestUpdateSurveyNotes_AssignedTechnician(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)
	techID := node.Generate()
	tech := technicianCtx(techID)
	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	_, err = svc.AssignTechnician(admin, domain.AssignTechnicianRequest{
		ApplicationID: app.ID.String(),
		TechnicianID:  techID.String(),
	})
	require.NoError(t, err)
	_, err = svc.VerifyByTechnician(tech, domain.VerifyRequest{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	_, err = svc.RecordSurvey(tech, surveyRequest(app.ID.String()))
	require.NoError(t, err)

	updated, err := svc.UpdateSurveyNotes(tech, domain.UpdateSurveyNotesRequest{
		ApplicationID: app.ID.String(),
		Notes:         "pipe run crosses the neighbor's yard",
	})
	require.NoError(t, err)
	assert.Equal(t, "pipe run crosses the neighbor's yard", updated.Notes)

	_, err = svc.UpdateSurveyNotes(technicianCtx(node.Generate()), domain.UpdateSurveyNotesRequest{
		ApplicationID: app.ID.String(),
		Notes:         "should not land",
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGetByID_NotFound(t *testing.T) {
	svc, _, node := newTestService(t)

	_, err := svc.GetByID(adminCtx(node), node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_FiltersByState(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	first, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)
	_, err = svc.Submit(admin, submitRequest())
	require.NoError(t, err)
	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{ApplicationID: first.ID.String()})
	require.NoError(t, err)

	resp, err := svc.List(admin, domain.ListApplicationRequest{State: string(domain.StateSubmitted)})
	require.NoError(t, err)
	require.Len(t, resp.Applications, 1)
	assert.Equal(t, domain.StateSubmitted, resp.Applications[0].State)

	resp, err = svc.List(admin, domain.ListApplicationRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Applications, 2)
}

func TestVerify_NotesRecorded(t *testing.T) {
	svc, _, node := newTestService(t)
	admin := adminCtx(node)

	app, err := svc.Submit(admin, submitRequest())
	require.NoError(t, err)

	_, err = svc.VerifyByAdmin(admin, domain.VerifyRequest{
		ApplicationID: app.ID.String(),
		Note:          "documents complete",
	})
	require.NoError(t, err)

	techID := node.Generate()
	_, err = svc.AssignTechnician(admin, domain.AssignTechnicianRequest{
		ApplicationID: app.ID.String(),
		TechnicianID:  techID.String(),
	})
	require.NoError(t, err)
	_, err = svc.VerifyByTechnician(technicianCtx(techID), domain.VerifyRequest{
		ApplicationID: app.ID.String(),
		Note:          "site access confirmed",
	})
	require.NoError(t, err)

	detail, err := svc.GetByID(context.Background(), app.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "documents complete", detail.Metadata["admin_verification_note"])
	assert.Equal(t, "site access confirmed", detail.Metadata["technician_verification_note"])
}
