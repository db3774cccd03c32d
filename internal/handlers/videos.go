package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/siduri/siduri/internal/middleware"
	"github.com/siduri/siduri/internal/services"
	apperrors "github.com/siduri/siduri/pkg/errors"
	"github.com/siduri/siduri/pkg/response"
)

// VideoHandler exposes video CRUD and sharing.
type VideoHandler struct {
	videos *services.VideoService
	shares *services.ShareService
}

// NewVideoHandler wires the video and share services into HTTP handlers.
func NewVideoHandler(videos *services.VideoService, shares *services.ShareService) *VideoHandler {
	return &VideoHandler{videos: videos, shares: shares}
}

type createVideoRequest struct {
	Filename     string `json:"filename" validate:"required,max=255"`
	StorageKey   string `json:"storage_key" validate:"required,max=1024"`
	Title        string `json:"title" validate:"max=255"`
	DurationSecs *int   `json:"duration_secs"`
}

// POST /api/videos
func (h *VideoHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req createVideoRequest
	if !bindAndValidate(c, &req) {
		return
	}

	video, err := h.videos.Create(c.Request.Context(), user, services.CreateVideoInput{
		Filename:     req.Filename,
		StorageKey:   req.StorageKey,
		Title:        req.Title,
		DurationSecs: req.DurationSecs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"video": video})
}

// GET /api/videos
func (h *VideoHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	videos, err := h.videos.List(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Listing failed"))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"videos": videos})
}

// GET /api/videos/:id
// Public: recipients of tracking links load the player without an account.
func (h *VideoHandler) Get(c *gin.Context) {
	detail, err := h.videos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"video": detail})
}

type patchVideoRequest struct {
	Title        *string `json:"title" validate:"omitempty,max=255"`
	DurationSecs *int    `json:"duration_secs"`
}

// PATCH /api/videos/:id
// duration_secs is writable by anyone (the player reports it); title changes
// require the authenticated owner.
func (h *VideoHandler) Patch(c *gin.Context) {
	var req patchVideoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.Title == nil && req.DurationSecs == nil {
		response.Error(c, apperrors.NewBadRequest("nothing to update"))
		return
	}

	id := c.Param("id")

	if req.Title != nil {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			return
		}
		if err := h.videos.UpdateTitle(c.Request.Context(), user, id, *req.Title); err != nil {
			response.Error(c, err)
			return
		}
	}

	if req.DurationSecs != nil {
		if err := h.videos.UpdateDuration(c.Request.Context(), id, *req.DurationSecs); err != nil {
			response.Error(c, err)
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Video updated"})
}

// DELETE /api/videos/:id
func (h *VideoHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.videos.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Video deleted"})
}

type shareRequest struct {
	RecipientEmail string `json:"recipientEmail" validate:"required,email"`
	RecipientName  string `json:"recipientName" validate:"max=100"`
}

// POST /api/videos/:id/share
func (h *VideoHandler) Share(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	var req shareRequest
	if !bindAndValidate(c, &req) {
		return
	}

	trackingURL, err := h.shares.IssueTrackingToken(
		c.Request.Context(), c.Param("id"), user.ID, req.RecipientEmail, req.RecipientName)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"trackingUrl": trackingURL})
}
