package server

import (
	"context"
	"net/http"
	"time"

	"github.com/flowin/pdam/internal/billing"
	billingdomain "github.com/flowin/pdam/internal/billing/domain"
	"github.com/flowin/pdam/internal/config"
	"github.com/flowin/pdam/internal/connection"
	conndomain "github.com/flowin/pdam/internal/connection/domain"
	"github.com/flowin/pdam/internal/meter"
	meterdomain "github.com/flowin/pdam/internal/meter/domain"
	"github.com/flowin/pdam/internal/tariff"
	tariffdomain "github.com/flowin/pdam/internal/tariff/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	tariff.Module,
	connection.Module,
	meter.Module,
	billing.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	applicationSvc conndomain.Service
	tariffSvc      tariffdomain.Service
	meterSvc       meterdomain.Service
	billingSvc     billingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	ApplicationSvc conndomain.Service
	TariffSvc      tariffdomain.Service
	MeterSvc       meterdomain.Service
	BillingSvc     billingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		applicationSvc: p.ApplicationSvc,
		tariffSvc:      p.TariffSvc,
		meterSvc:       p.MeterSvc,
		billingSvc:     p.BillingSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", ActorRequired())

	// -------- Applications --------
	api.POST("/applications", s.SubmitApplication)
	api.GET("/applications", s.ListApplications)
	api.GET("/applications/:id", s.GetApplicationByID)
	api.POST("/applications/:id/verify-admin", s.VerifyApplicationByAdmin)
	api.POST("/applications/:id/assign-technician", s.AssignTechnician)
	api.POST("/applications/:id/unassign-technician", s.UnassignTechnician)
	api.POST("/applications/:id/verify-technician", s.VerifyApplicationByTechnician)
	api.POST("/applications/:id/survey", s.RecordSurvey)
	api.PATCH("/applications/:id/survey/notes", s.UpdateSurveyNotes)
	api.POST("/applications/:id/estimate", s.CreateEstimate)
	api.POST("/applications/:id/estimate/settle", s.SettleEstimate)
	api.POST("/applications/:id/estimate/close", s.CloseEstimate)
	api.POST("/applications/:id/reject", s.RejectApplication)
	api.POST("/applications/:id/meter", s.ProvisionMeter)

	// -------- Tariff Groups --------
	api.GET("/tariff-groups", s.ListTariffGroups)
	api.POST("/tariff-groups", AdminRequired(), s.CreateTariffGroup)
	api.GET("/tariff-groups/:id", s.GetTariffGroupByID)
	api.PATCH("/tariff-groups/:id", AdminRequired(), s.UpdateTariffGroup)
	api.DELETE("/tariff-groups/:id", AdminRequired(), s.DeleteTariffGroup)

	// -------- Meters --------
	api.GET("/meters", s.ListMeters)
	api.GET("/meters/:id", s.GetMeterByID)
	api.POST("/meters/:id/retariff", s.RetariffMeter)
	api.POST("/meters/:id/status", s.SetMeterActive)
	api.GET("/meters/:id/billings", s.ListBillingsByMeter)

	// -------- Billings --------
	api.POST("/billings", AdminRequired(), s.IssueBilling)
	api.GET("/billings/:id", s.GetBillingByID)
	api.POST("/billings/:id/settle", AdminRequired(), s.SettleBilling)
}
