package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Bookings     *BookingHandler
	Availability *AvailabilityHandler
	Calendar     *CalendarHandler
	// Auth guards every route except /healthz. Nil leaves them open.
	Auth       gin.HandlerFunc
	Logger     *slog.Logger
	Middleware []gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger))
	for _, mw := range cfg.Middleware {
		if mw != nil {
			router.Use(mw)
		}
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/")
	if cfg.Auth != nil {
		api.Use(cfg.Auth)
	}

	if cfg.Availability != nil {
		api.GET("/resources/:id/availability", cfg.Availability.Get)
	}
	if cfg.Bookings != nil {
		api.POST("/resources/:id/bookings", cfg.Bookings.Create)
		api.POST("/resources/:id/recurring-bookings", cfg.Bookings.CreateRecurring)
		api.DELETE("/bookings/:id", cfg.Bookings.Cancel)
	}
	if cfg.Calendar != nil {
		api.GET("/resources/:id/calendar.ics", cfg.Calendar.Export)
	}

	return router
}
