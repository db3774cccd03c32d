package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/siduri/siduri/internal/app"
	iauth "github.com/siduri/siduri/internal/auth"
	"github.com/siduri/siduri/internal/handlers"
	"github.com/siduri/siduri/internal/middleware"
	"github.com/siduri/siduri/internal/services"
	"github.com/siduri/siduri/internal/storage"
)

// Dependencies bundles everything the router needs. Store may be nil when
// object storage is disabled; every other field is required.
type Dependencies struct {
	DB          *gorm.DB
	Config      *app.Config
	Credentials *iauth.CredentialService
	Sessions    *iauth.SessionService
	Resets      *iauth.PasswordResetService
	Invites     *iauth.InviteService
	Videos      *services.VideoService
	Shares      *services.ShareService
	Tracker     *services.TrackService
	Settings    *services.SettingsService
	Store       storage.ObjectStore
}

func (d Dependencies) validate() error {
	if d.DB == nil {
		return fmt.Errorf("database handle must be provided")
	}
	if d.Config == nil {
		return fmt.Errorf("config must be provided")
	}
	if d.Credentials == nil || d.Sessions == nil || d.Resets == nil || d.Invites == nil {
		return fmt.Errorf("auth services must be provided")
	}
	if d.Videos == nil || d.Shares == nil || d.Tracker == nil || d.Settings == nil {
		return fmt.Errorf("domain services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.Health(deps.DB))
	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.Auth(deps.Sessions)
	optionalAuth := middleware.OptionalAuth(deps.Sessions)

	// The player reports progress every few seconds, so tracking stays
	// outside the rate limiter; idempotent upserts absorb the volume.
	registerTrackRoutes(r, deps)

	api := r.Group("/api")
	api.Use(middleware.RateLimit(deps.Config.Server.RateLimit, time.Minute))

	registerAuthRoutes(api, deps, requireAuth)
	registerVideoRoutes(api, deps, requireAuth, optionalAuth)
	registerSettingsRoutes(api, deps, requireAuth)

	return r, nil
}
