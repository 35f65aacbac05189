package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all the routes for the aggregation service.
// When jwtSecret is empty the refresh endpoint is open.
func RegisterRoutes(router *gin.Engine, api *API, jwtSecret string) {
	router.GET("/healthz", api.HealthHandler)
	router.GET("/ws", api.WebSocketHandler)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/news", api.GetNewsHandler)
		v1.GET("/patents", api.GetPatentsHandler)
		v1.GET("/deep-dive/:section/:period", api.DeepDiveHandler)
		v1.GET("/deep-dive/:section/:period/:itemId", api.DeepDiveHandler)
		v1.GET("/sweeps", api.GetSweepsHandler)
	}

	refresh := v1.Group("/refresh")
	if jwtSecret != "" {
		refresh.Use(AuthMiddleware(jwtSecret))
	}
	refresh.POST("", api.RefreshHandler)
}
