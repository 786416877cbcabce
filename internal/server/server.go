package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/entitlement/internal/config"
	"github.com/smallbiznis/entitlement/internal/consumption"
	consumptiondomain "github.com/smallbiznis/entitlement/internal/consumption/domain"
	"github.com/smallbiznis/entitlement/internal/feature"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/legacy"
	legacydomain "github.com/smallbiznis/entitlement/internal/legacy/domain"
	"github.com/smallbiznis/entitlement/internal/planconfig"
	planconfigdomain "github.com/smallbiznis/entitlement/internal/planconfig/domain"
	"github.com/smallbiznis/entitlement/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	feature.Module,
	planconfig.Module,
	consumption.Module,
	legacy.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(log))
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

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	featureSvc     featuredomain.Service
	planConfigSvc  planconfigdomain.Service
	consumptionSvc consumptiondomain.Service
	legacySvc      legacydomain.Service
	recordLimiter  *ratelimit.RecordLimiter
}

type ServerParams struct {
	fx.In

	Engine         *gin.Engine
	Config         config.Config
	FeatureSvc     featuredomain.Service
	PlanConfigSvc  planconfigdomain.Service
	ConsumptionSvc consumptiondomain.Service
	LegacySvc      legacydomain.Service
	RecordLimiter  *ratelimit.RecordLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:         p.Engine,
		cfg:            p.Config,
		featureSvc:     p.FeatureSvc,
		planConfigSvc:  p.PlanConfigSvc,
		consumptionSvc: p.ConsumptionSvc,
		legacySvc:      p.LegacySvc,
		recordLimiter:  p.RecordLimiter,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")
	v1.Use(ApplicationContextMiddleware())

	features := v1.Group("/features")
	{
		features.POST("", s.CreateFeature)
		features.GET("", s.ListFeatures)
		features.GET("/:id", s.GetFeature)
		features.PATCH("/:id", s.UpdateFeature)
		features.DELETE("/:id", s.DeactivateFeature)
		features.POST("/:id/fields", s.AddCustomField)
		features.GET("/:id/fields", s.ListCustomFields)
	}
	v1.PATCH("/fields/:id", s.UpdateCustomField)

	plans := v1.Group("/plans")
	{
		plans.PUT("/:plan_id/features", s.ConfigurePlanFeatures)
		plans.POST("/:plan_id/features", s.AddFeatureToPlan)
		plans.GET("/:plan_id/features", s.ResolvePlanFeatures)
		plans.PATCH("/:plan_id/features/:feature_id", s.UpdateFeatureConfiguration)
		plans.DELETE("/:plan_id/features/:feature_id", s.RemoveFeatureFromPlan)
		plans.POST("/:plan_id/features/reorder", s.ReorderFeatures)
	}

	consumptions := v1.Group("/consumptions")
	{
		consumptions.POST("/initialize", s.InitializeConsumption)
		consumptions.POST("/record", s.RecordRateLimitMiddleware(), s.RecordConsumption)
		consumptions.GET("/current", s.GetCurrentConsumption)
		consumptions.POST("/:id/reset", s.ResetConsumption)
	}
	v1.GET("/subscriptions/:id/consumptions", s.ListSubscriptionConsumptions)

	legacyGroup := v1.Group("/legacy")
	{
		legacyGroup.POST("/migrate", s.MigrateLegacy)
		legacyGroup.POST("/cleanup", s.CleanupLegacy)
	}
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
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
