package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"

	"udaay-be/models"
)

// respondError maps domain errors onto the JSON envelope. Unknown errors are logged
// and reported as a plain 500.
func respondError(c *gin.Context, err error) {
	var te *models.TransitionError
	switch {
	case errors.As(err, &te):
		c.JSON(http.StatusConflict, gin.H{
			"success":       false,
			"message":       "Invalid status transition",
			"currentStatus": te.Current,
		})
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": publicMessage(err)})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": publicMessage(err)})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "You are not allowed to perform this action"})
	default:
		log.Error().
			Err(err).
			Interface("values", goerr.Values(err)).
			Str("path", c.FullPath()).
			Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
	}
}

// publicMessage is the outermost wrap message, e.g. "Invalid issue ID" out of
// "Invalid issue ID: invalid input".
func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 {
		msg = msg[:i]
	}
	if msg == "" {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
}
