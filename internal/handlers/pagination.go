package handlers

import (
	"strconv"
	"strings"

	contextutils "campusfix/internal/utils"

	"github.com/gin-gonic/gin"
)

// ParseSkipLimit parses the skip/limit query params of a listing.
// Missing values take the defaults and limit is capped at maxLimit.
// Malformed or out-of-range values are a validation error.
func ParseSkipLimit(c *gin.Context, defaultLimit, maxLimit int) (int, int, error) {
	skip := 0
	if raw := strings.TrimSpace(c.Query("skip")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, contextutils.NewValidationError("skip", "must be a non-negative integer")
		}
		skip = v
	}

	limit := defaultLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return 0, 0, contextutils.NewValidationError("limit", "must be a positive integer")
		}
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return skip, limit, nil
}
