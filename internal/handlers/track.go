package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siduri/siduri/internal/services"
	"github.com/siduri/siduri/pkg/logger"
	"github.com/siduri/siduri/pkg/response"
)

const (
	// TrackSessionCookieName identifies one playback session across reports.
	TrackSessionCookieName = "siduri_session"

	trackSessionMaxAge = 24 * 60 * 60
)

// TrackHandler ingests watch-progress reports from the player.
type TrackHandler struct {
	tracker       *services.TrackService
	secureCookies bool
}

// NewTrackHandler wires the track service into HTTP handlers.
func NewTrackHandler(tracker *services.TrackService, secureCookies bool) *TrackHandler {
	return &TrackHandler{tracker: tracker, secureCookies: secureCookies}
}

type trackRequest struct {
	VideoID     string `json:"videoId" validate:"required"`
	WatchSecs   int    `json:"watchSecs" validate:"min=0,max=86400"`
	ViewerToken string `json:"viewerToken"`
}

// POST /api/track
func (h *TrackHandler) Report(c *gin.Context) {
	var req trackRequest
	if !bindAndValidate(c, &req) {
		return
	}

	outcome, err := h.tracker.ProcessReport(c.Request.Context(), services.Report{
		VideoID:     req.VideoID,
		WatchSecs:   req.WatchSecs,
		ViewerToken: req.ViewerToken,
		SessionID:   h.sessionID(c, true),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tracked": outcome.Tracked})
}

// POST /api/track/beacon
// navigator.sendBeacon cannot read responses, so this always returns 204 and
// swallows every failure.
func (h *TrackHandler) Beacon(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusNoContent)
		return
	}

	_, err := h.tracker.ProcessReport(c.Request.Context(), services.Report{
		VideoID:     req.VideoID,
		WatchSecs:   req.WatchSecs,
		ViewerToken: req.ViewerToken,
		SessionID:   h.sessionID(c, false),
	})
	if err != nil {
		logger.WithModule("track").Debug("beacon report dropped", zap.Error(err))
	}

	c.Status(http.StatusNoContent)
}

// sessionID reads the playback-session cookie, minting one when absent. The
// beacon path cannot set cookies reliably, so it just generates a throwaway id.
func (h *TrackHandler) sessionID(c *gin.Context, setCookie bool) string {
	if id, err := c.Cookie(TrackSessionCookieName); err == nil && id != "" {
		return id
	}

	id := uuid.NewString()
	if setCookie {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(TrackSessionCookieName, id, trackSessionMaxAge, "/", "", h.secureCookies, true)
	}
	return id
}
