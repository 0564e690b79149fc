package handlers

import (
	"net/http"

	"example.com/eventwave/internal/repositories"
	"example.com/eventwave/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// abortWithError writes {"error": ...} with a status derived from err
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case repositories.IsRecordNotFoundError(err):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidRadius),
		errors.Is(err, services.ErrUnknownCategory),
		errors.Is(err, services.ErrInvalidLocation):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
