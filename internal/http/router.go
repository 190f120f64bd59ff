package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/sosalert/internal/account"
	"github.com/geocoder89/sosalert/internal/config"
	"github.com/geocoder89/sosalert/internal/http/handlers"
	"github.com/geocoder89/sosalert/internal/http/middlewares"
	"github.com/geocoder89/sosalert/internal/observability"
	"github.com/geocoder89/sosalert/internal/sos"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Deps struct {
	Log         *slog.Logger
	Config      config.Config
	Accounts    *account.Service
	Coordinator *sos.Coordinator

	// optional
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Ping     func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(observability.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authHandler := handlers.NewAuthHandler(d.Accounts, d.Log)
	sosHandler := handlers.NewSOSHandler(d.Coordinator, d.Log)
	authMiddleware := middlewares.NewAuthMiddleware(d.Accounts)

	api := r.Group("/")
	api.Use(middlewares.MaxBodyBytes(d.Config.MaxBodyBytes))
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// identity comes from the body, not from a token
		api.POST("/send-sos", sosHandler.SendSOS)
	}

	r.GET("/me", authMiddleware.RequireAuth(), authHandler.Me)

	return r
}
