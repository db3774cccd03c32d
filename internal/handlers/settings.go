package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siduri/siduri/internal/models"
	"github.com/siduri/siduri/internal/services"
	apperrors "github.com/siduri/siduri/pkg/errors"
	"github.com/siduri/siduri/pkg/response"
)

// SettingsHandler exposes notification channel configuration.
type SettingsHandler struct {
	settings *services.SettingsService
}

// NewSettingsHandler wires the settings service into HTTP handlers.
func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GET /api/settings/notifications
func (h *SettingsHandler) List(c *gin.Context) {
	settings, err := h.settings.List(c.Request.Context())
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Listing failed"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"settings": settings})
}

// GET /api/settings/notifications/:channel
func (h *SettingsHandler) Get(c *gin.Context) {
	setting, err := h.settings.Get(c.Request.Context(), models.Channel(c.Param("channel")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"setting": setting})
}

type saveSettingRequest struct {
	Target    string `json:"target" validate:"max=1024"`
	Threshold int    `json:"notify_threshold" validate:"required,min=1,max=100"`
	Enabled   bool   `json:"enabled"`
}

// POST /api/settings/notifications/:channel
func (h *SettingsHandler) Save(c *gin.Context) {
	var req saveSettingRequest
	if !bindAndValidate(c, &req) {
		return
	}

	setting, err := h.settings.Save(c.Request.Context(), models.Channel(c.Param("channel")), services.SaveSettingInput{
		Target:    req.Target,
		Threshold: req.Threshold,
		Enabled:   req.Enabled,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"setting": setting})
}

// POST /api/settings/notifications/:channel/test
func (h *SettingsHandler) Test(c *gin.Context) {
	if err := h.settings.TestSend(c.Request.Context(), models.Channel(c.Param("channel"))); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Test notification sent"})
}
