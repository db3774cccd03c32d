package api

import (
	"github.com/gin-gonic/gin"

	"github.com/siduri/siduri/internal/handlers"
)

func registerAuthRoutes(api *gin.RouterGroup, deps Dependencies, requireAuth gin.HandlerFunc) {
	authHandler := handlers.NewAuthHandler(
		deps.Credentials,
		deps.Sessions,
		deps.Resets,
		deps.Invites,
		deps.Config.Server.SecureCookies,
	)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.GET("/check-first-user", authHandler.CheckFirstUser)

		auth.POST("/logout", requireAuth, authHandler.Logout)
		auth.GET("/me", requireAuth, authHandler.Me)
		auth.POST("/refresh", requireAuth, authHandler.Refresh)

		auth.POST("/api-token", requireAuth, authHandler.CreateAPIToken)
		auth.GET("/api-tokens", requireAuth, authHandler.ListAPITokens)
		auth.DELETE("/api-tokens/:id", requireAuth, authHandler.RevokeAPIToken)

		auth.POST("/invitations", requireAuth, authHandler.CreateInvitation)
		auth.GET("/invitations", requireAuth, authHandler.ListInvitations)
	}
}
