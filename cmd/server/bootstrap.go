package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"

	"github.com/siduri/siduri/internal/api"
	"github.com/siduri/siduri/internal/app"
	"github.com/siduri/siduri/internal/app/maintenance"
	iauth "github.com/siduri/siduri/internal/auth"
	"github.com/siduri/siduri/internal/database"
	"github.com/siduri/siduri/internal/notify"
	"github.com/siduri/siduri/internal/services"
	"github.com/siduri/siduri/internal/storage"
	"github.com/siduri/siduri/pkg/logger"
	"github.com/siduri/siduri/pkg/mail"
	"github.com/siduri/siduri/pkg/token"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:     cfg.Auth.JWT.Secret,
		Issuer:     cfg.Auth.JWT.Issuer,
		SessionTTL: cfg.Auth.JWT.SessionTTL,
		APITTL:     cfg.Auth.JWT.APITTL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	lockout, err := iauth.NewLockoutTracker(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise lockout tracker: %w", err)
	}

	credentialSvc, err := iauth.NewCredentialService(stack.DB, lockout, iauth.CredentialConfig{
		AllowedEmailDomains: cfg.Auth.AllowedEmailDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise credential service: %w", err)
	}

	sessionSvc, err := iauth.NewSessionService(stack.DB, jwtSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	var mailer mail.Mailer
	if cfg.Email.SMTP.Enabled {
		mailer, err = mail.NewSMTPMailer(mail.SMTPSettings{
			Enabled:  true,
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			From:     cfg.Email.SMTP.From,
			UseTLS:   cfg.Email.SMTP.UseTLS,
			Timeout:  cfg.Email.SMTP.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		log.Info("smtp mailer enabled", zap.String("host", cfg.Email.SMTP.Host))
	}

	resetSvc, err := iauth.NewPasswordResetService(stack.DB, mailer, cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("initialise password reset service: %w", err)
	}

	inviteSvc, err := iauth.NewInviteService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise invite service: %w", err)
	}

	codec, err := token.NewCodec(cfg.Auth.TrackingSecret)
	if err != nil {
		return nil, fmt.Errorf("initialise tracking token codec: %w", err)
	}

	dispatcher, err := notify.NewDispatcher(stack.DB, mailer,
		notify.WithTimeout(cfg.Notifications.DispatchTimeout))
	if err != nil {
		return nil, fmt.Errorf("initialise notification dispatcher: %w", err)
	}

	var store storage.ObjectStore
	if cfg.Storage.Enabled {
		s3Store, storeErr := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:   cfg.Storage.Bucket,
			Region:   cfg.Storage.Region,
			Endpoint: cfg.Storage.Endpoint,
		})
		if storeErr != nil {
			return nil, fmt.Errorf("initialise object storage: %w", storeErr)
		}
		store = s3Store
		log.Info("object storage enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	videoSvc, err := services.NewVideoService(stack.DB, store)
	if err != nil {
		return nil, fmt.Errorf("initialise video service: %w", err)
	}

	shareSvc, err := services.NewShareService(stack.DB, codec, cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("initialise share service: %w", err)
	}

	trackSvc, err := services.NewTrackService(stack.DB, codec, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("initialise track service: %w", err)
	}

	settingsSvc, err := services.NewSettingsService(stack.DB, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("initialise settings service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(stack.DB)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:          stack.DB,
		Config:      cfg,
		Credentials: credentialSvc,
		Sessions:    sessionSvc,
		Resets:      resetSvc,
		Invites:     inviteSvc,
		Videos:      videoSvc,
		Shares:      shareSvc,
		Tracker:     trackSvc,
		Settings:    settingsSvc,
		Store:       store,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
