package handlers

import (
	"strconv"

	"campusfix/internal/middleware"
	contextutils "campusfix/internal/utils"

	"github.com/gin-gonic/gin"
)

// HandleAppError handles any AppError and sends appropriate HTTP response
func HandleAppError(c *gin.Context, err error) {
	middleware.HandleAppError(c, err)
}

// HandleValidationError handles input validation errors consistently
func HandleValidationError(c *gin.Context, field, reason string) {
	HandleAppError(c, contextutils.NewValidationError(field, reason))
}

// ParseIDParam reads a positive integer path parameter
func ParseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		HandleValidationError(c, name, "must be a positive integer")
		return 0, false
	}
	return id, true
}
