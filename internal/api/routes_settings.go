package api

import (
	"github.com/gin-gonic/gin"

	"github.com/siduri/siduri/internal/handlers"
)

func registerSettingsRoutes(api *gin.RouterGroup, deps Dependencies, requireAuth gin.HandlerFunc) {
	settingsHandler := handlers.NewSettingsHandler(deps.Settings)

	settings := api.Group("/settings/notifications")
	settings.Use(requireAuth)
	{
		settings.GET("", settingsHandler.List)
		settings.GET("/:channel", settingsHandler.Get)
		settings.POST("/:channel", settingsHandler.Save)
		settings.POST("/:channel/test", settingsHandler.Test)
	}
}
