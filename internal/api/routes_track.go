package api

import (
	"github.com/gin-gonic/gin"

	"github.com/siduri/siduri/internal/handlers"
)

func registerTrackRoutes(r *gin.Engine, deps Dependencies) {
	trackHandler := handlers.NewTrackHandler(deps.Tracker, deps.Config.Server.SecureCookies)

	track := r.Group("/api/track")
	{
		track.POST("", trackHandler.Report)
		track.POST("/beacon", trackHandler.Beacon)
	}
}
