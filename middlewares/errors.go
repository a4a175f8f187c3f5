package middlewares

import (
	"net/http"

	"bookstore-service/services"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[string]int{
	"not_found":          http.StatusNotFound,
	"invalid_transition": http.StatusConflict,
	"conflict":           http.StatusConflict,
	"insufficient_stock": http.StatusBadRequest,
	"validation_error":   http.StatusBadRequest,
	"forbidden":          http.StatusForbidden,
	"unauthorized":       http.StatusUnauthorized,
}

// AbortWithError writes the JSON error body for err and stops the chain.
// Internal errors are recorded on the context for the request logger and
// reach the client only as a generic message.
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := services.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   kind,
			"message": "internal server error",
		})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": kind, "message": err.Error()})
}

// AbortWithValidation reports a request that failed binding.
func AbortWithValidation(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
}
