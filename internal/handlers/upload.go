package handlers

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/siduri/siduri/internal/middleware"
	"github.com/siduri/siduri/internal/storage"
	apperrors "github.com/siduri/siduri/pkg/errors"
	"github.com/siduri/siduri/pkg/response"
)

// UploadHandler issues presigned upload URLs so video bytes go straight to
// object storage without passing through the API.
type UploadHandler struct {
	store storage.ObjectStore
}

// NewUploadHandler wires the object store into HTTP handlers.
func NewUploadHandler(store storage.ObjectStore) *UploadHandler {
	return &UploadHandler{store: store}
}

type signUploadRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"max=100"`
}

// POST /api/upload/sign
func (h *UploadHandler) Sign(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	if h.store == nil {
		response.Error(c, apperrors.New("STORAGE_DISABLED", "Object storage is not configured", http.StatusServiceUnavailable))
		return
	}

	var req signUploadRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ext := strings.ToLower(path.Ext(req.Filename))
	key := fmt.Sprintf("videos/%s/%s%s", user.ID, uuid.NewString(), ext)

	uploadURL, err := h.store.PresignPut(c.Request.Context(), key, req.ContentType, storage.DefaultURLExpiry)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "Signing failed"))
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"uploadUrl":  uploadURL,
		"storageKey": key,
	})
}
