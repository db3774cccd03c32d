package api

import (
	"github.com/gin-gonic/gin"

	"github.com/siduri/siduri/internal/handlers"
)

func registerVideoRoutes(api *gin.RouterGroup, deps Dependencies, requireAuth, optionalAuth gin.HandlerFunc) {
	videoHandler := handlers.NewVideoHandler(deps.Videos, deps.Shares)
	uploadHandler := handlers.NewUploadHandler(deps.Store)

	videos := api.Group("/videos")
	{
		videos.POST("", requireAuth, videoHandler.Create)
		videos.GET("", requireAuth, videoHandler.List)
		videos.DELETE("/:id", requireAuth, videoHandler.Delete)
		videos.POST("/:id/share", requireAuth, videoHandler.Share)

		// Public player routes; PATCH carries owner-only fields, so it
		// resolves the user when credentials are present.
		videos.GET("/:id", videoHandler.Get)
		videos.PATCH("/:id", optionalAuth, videoHandler.Patch)
	}

	api.POST("/upload/sign", requireAuth, uploadHandler.Sign)
}
