package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentacar/internal/infra/config"
	"rentacar/internal/infra/obs"
)

type ReservationHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Search(c *gin.Context)
	Confirm(c *gin.Context)
	Cancel(c *gin.Context)
	Activate(c *gin.Context)
	Complete(c *gin.Context)
}

type AvailabilityHTTP interface {
	Booked(c *gin.Context)
}

type CatalogHTTP interface {
	Vehicles(c *gin.Context)
	Customers(c *gin.Context)
	Quote(c *gin.Context)
}

type Handlers struct {
	Reservations ReservationHTTP
	Availability AvailabilityHTTP
	Catalog      CatalogHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the engine without touching the global gin mode.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", headerIdempotencyKey, obs.HeaderRequestID},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Location",
			obs.HeaderRequestID,
		},
		MaxAge: 12 * time.Hour,
	}))

	registerSwaggerRoutes(router)

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Reservations != nil {
		group := api.Group("/reservations")
		group.POST("", h.Reservations.Create)
		group.GET("", h.Reservations.Search)
		group.GET("/:id", h.Reservations.Get)
		group.POST("/:id/confirm", h.Reservations.Confirm)
		group.POST("/:id/cancel", h.Reservations.Cancel)
		group.POST("/:id/activate", h.Reservations.Activate)
		group.POST("/:id/complete", h.Reservations.Complete)
	}
	if h.Availability != nil {
		api.GET("/availability", h.Availability.Booked)
	}
	if h.Catalog != nil {
		api.GET("/vehicles", h.Catalog.Vehicles)
		api.GET("/customers", h.Catalog.Customers)
		api.POST("/quotes", h.Catalog.Quote)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
