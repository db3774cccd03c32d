package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	apperrors "github.com/siduri/siduri/pkg/errors"
	"github.com/siduri/siduri/pkg/response"
)

// Health returns a simple status payload useful for readiness checks. The
// database ping catches a corrupted or locked sqlite file early.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.Error(c, apperrors.New("UNHEALTHY", "Database unavailable", http.StatusServiceUnavailable))
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
