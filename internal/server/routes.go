package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mantonx/upnpcds/internal/api"
	cdserrors "github.com/mantonx/upnpcds/internal/errors"
	"github.com/mantonx/upnpcds/internal/middleware"
)

// setupRouter configures and returns the main router
func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(api.RequestIDKey))
	r.Use(api.ErrorMiddleware(s.logger))
	r.Use(middleware.RequestLogger(s.logger, api.RequestIDKey))
	r.Use(middleware.ErrorLogger(s.logger))

	// UPnP description and control
	r.GET(descriptionPath, s.handleDeviceDescription)
	r.GET(scpdPath, s.handleSCPD)
	r.POST(controlPath, s.handleControl)

	// Metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rescan := r.Group("/api")
	{
		rescan.GET("/health", s.handleHealth)
		rescan.POST("/refresh", s.handleRefresh)
		rescan.POST("/update", s.handleUpdate)
	}

	r.NoRoute(func(c *gin.Context) {
		api.RespondWithError(c, "Route not found", cdserrors.NotFound("route", nil).WithPath(c.Request.URL.Path))
	})

	return r
}

func (s *Server) handleDeviceDescription(c *gin.Context) {
	c.Data(http.StatusOK, "text/xml; charset=utf-8", s.description)
}

func (s *Server) handleSCPD(c *gin.Context) {
	c.Data(http.StatusOK, "text/xml; charset=utf-8", s.scpd)
}
