package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voucher-node/api/handlers"
	"voucher-node/internal/service"
)

func SetupRouter(svc *service.Service) *gin.Engine {
	router := gin.Default()

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	h := handlers.New(svc)

	router.POST("/vouchers", h.Issue)
	router.GET("/vouchers/:id", h.QueryStatus)
	router.PUT("/vouchers/:id/status", h.UpdateStatus)
	router.POST("/vouchers/validate", h.Validate)

	router.POST("/backups", h.Backup)
	router.GET("/backups", h.Restore)
	router.GET("/backups/exists", h.Exists)

	return router
}
