// Package httpapi holds the response conventions shared by every handler:
// {"data": ...} envelopes and the domain-error to status-code mapping.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus/internal/domain"
)

// Data writes a {"data": v} envelope.
func Data(c *gin.Context, status int, v any) {
	c.JSON(status, gin.H{"data": v})
}

// Message writes a mutation response with a human message and payload.
func Message(c *gin.Context, status int, msg string, v any) {
	c.JSON(status, gin.H{"message": msg, "data": v})
}

// Error maps a domain error onto an HTTP status. Conflicts are 409, validation
// failures 422 with the offending field, missing entities 404. Anything else is
// an opaque 500; the cause is left to the logger, not the client.
func Error(c *gin.Context, err error) {
	if de, ok := domain.As(err); ok {
		switch de.Kind {
		case domain.KindConflict:
			c.JSON(http.StatusConflict, gin.H{"error": de.Message})
		case domain.KindValidation:
			body := gin.H{"error": de.Message}
			if de.Field != "" {
				body["field"] = de.Field
			}
			c.JSON(http.StatusUnprocessableEntity, body)
		case domain.KindNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": de.Message})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// BadRequest reports a malformed request body or query.
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
