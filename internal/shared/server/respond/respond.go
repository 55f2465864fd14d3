// Package respond writes JSON success bodies and the shared error envelope
// {"error":{"code","message","details"}}.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tga-backend/internal/project"
	"tga-backend/internal/shared/telemetry"
)

// Problem is the body of every error response.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type envelope struct {
	Error Problem `json:"error"`
}

func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// Error aborts the request with the error envelope. Server-side failures are
// logged at error level, client mistakes at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	log := telemetry.Warn
	if status >= http.StatusInternalServerError {
		log = telemetry.Error
	}
	fields := map[string]any{
		"request_id": c.GetString("requestId"),
		"method":     c.Request.Method,
		"route":      c.FullPath(),
		"status":     status,
		"code":       code,
		"message":    message,
	}
	if id := c.Param("id"); id != "" {
		fields["resource_id"] = id
	}
	log("http.error", fields)

	c.AbortWithStatusJSON(status, envelope{Error: Problem{Code: code, Message: message, Details: details}})
}

// Invalid writes a 400 for a rejected project configuration, listing the
// offending fields when err carries them.
func Invalid(c *gin.Context, err error) {
	var verr *project.ValidationError
	if errors.As(err, &verr) {
		Error(c, http.StatusBadRequest, "validation_error", "invalid project configuration", verr.Issues)
		return
	}
	Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
}
