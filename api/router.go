package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"reacher-incidents/api/middleware"
	"reacher-incidents/api/v1/checks"
	"reacher-incidents/api/v1/executions"
	"reacher-incidents/api/v1/health"
	"reacher-incidents/api/v1/owners"
	"reacher-incidents/api/v1/probe"
	"reacher-incidents/api/v1/timelines"
)

type Handlers struct {
	Health     *health.Handler
	Probe      *probe.Handler
	Timelines  *timelines.Handler
	Owners     *owners.Handler
	Executions *executions.Handler
	// Checks é opcional: só existe com Redis configurado
	Checks *checks.Handler
}

type Options struct {
	JWTSecret   []byte
	CORSOrigins []string
	Log         *zap.Logger
}

func NewRouter(h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())
	if opts.Log != nil {
		r.Use(middleware.Logger(opts.Log))
	}

	// Configuração básica de CORS
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: len(opts.CORSOrigins) > 0,
	}))

	SetupRoutes(r, h, opts.JWTSecret)
	return r
}

func SetupRoutes(r *gin.Engine, h Handlers, secret []byte) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.Health.GetHealth)
		v1.Any("/incoming/:secretKey", h.Probe.Incoming)

		auth := v1.Group("", middleware.Auth(secret))
		{
			auth.POST("/probe/results", h.Probe.PostResult)

			auth.POST("/timelines", h.Timelines.Insert)
			auth.DELETE("/timelines/:id", h.Timelines.Delete)

			auth.GET("/incidents/:id/status", h.Owners.IncidentStatus())
			auth.POST("/incidents/:id/acknowledge", h.Owners.AcknowledgeIncident())
			auth.POST("/incidents/:id/resolve", h.Owners.ResolveIncident())
			auth.POST("/alerts", h.Owners.CreateAlert)
			auth.GET("/alerts/:id/status", h.Owners.AlertStatus())
			auth.POST("/alerts/:id/acknowledge", h.Owners.AcknowledgeAlert())
			auth.POST("/alerts/:id/resolve", h.Owners.ResolveAlert())

			auth.POST("/maintenance", h.Owners.CreateMaintenance)
			auth.POST("/maintenance/:id/state", h.Owners.ChangeMaintenanceState)

			auth.GET("/execution-logs", h.Executions.List)

			if h.Checks != nil {
				auth.GET("/monitors/:id/checks", h.Checks.List)
			}
		}
	}
}

// StartServer serve até ctx acabar e então faz shutdown com prazo.
func StartServer(ctx context.Context, port string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
