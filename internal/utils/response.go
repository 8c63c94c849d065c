package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"audioscribe/internal/apperr"
)

// Success writes the standard success envelope.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// Error renders err as {success:false, error, code, details?}. Errors that
// are not *apperr.Error become a generic internal error; their text is never
// sent to the client.
func Error(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err)
	}
	body := gin.H{
		"success": false,
		"error":   e.Message,
		"code":    e.Code,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	c.Error(err) //nolint:errcheck
	c.AbortWithStatusJSON(e.HTTPStatus, body)
}
