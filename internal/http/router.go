package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fleetguard/internal/http/middleware"
)

func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, env string, allowedOrigins []string) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{"Content-Type", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		corsCfg.AllowOrigins = allowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", handler.healthz)

	public := router.Group("/api/v1")
	{
		public.POST("/auth/login", handler.login)
		public.POST("/auth/demo", handler.demoLogin)
	}

	protected := router.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/events", handler.streamEvents)
		protected.GET("/checklist", handler.getChecklist)
		protected.GET("/vehicles/:id", handler.getVehicle)

		protected.POST("/sessions", handler.startSession)
		protected.GET("/sessions/current", handler.currentSession)
		protected.GET("/sessions/:handle", handler.getSession)
		protected.PUT("/sessions/:handle/status", handler.setItemStatus)
		protected.PUT("/sessions/:handle/comment", handler.setItemComment)
		protected.POST("/sessions/:handle/photos", handler.uploadPhoto)
		protected.DELETE("/sessions/:handle/photos/:index", handler.deletePhoto)
		protected.POST("/sessions/:handle/advance", handler.advance)
		protected.POST("/sessions/:handle/retreat", handler.retreat)
		protected.DELETE("/sessions/:handle", handler.cancelSession)

		protected.GET("/inspections", handler.listInspections)
		protected.GET("/inspections/:id", handler.getInspection)
		protected.GET("/inspections/:id/report", handler.downloadReport)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/stats", handler.getStats)
		admin.GET("/metrics", handler.getMetrics)

		admin.GET("/workers", handler.listWorkers)
		admin.GET("/workers/:id", handler.getWorker)
		admin.POST("/workers", handler.createWorker)
		admin.PUT("/workers/:id", handler.updateWorker)
		admin.DELETE("/workers/:id", handler.deleteWorker)

		admin.GET("/vehicles", handler.listVehicles)
		admin.POST("/vehicles", handler.createVehicle)
		admin.PUT("/vehicles/:id", handler.updateVehicle)
	}

	return router
}
