package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nicoespa/MesaYa/internal/access"
	"github.com/nicoespa/MesaYa/internal/database"
	"github.com/nicoespa/MesaYa/internal/models"
	"github.com/nicoespa/MesaYa/internal/phone"
	"github.com/nicoespa/MesaYa/internal/queue"
	"github.com/nicoespa/MesaYa/internal/verify"
)

// respondError maps domain errors onto HTTP status codes. Anything
// unrecognized is a 500 with the detail kept out of the response.
func (s *Server) respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason, "field": verr.Field})
		return
	}

	var terr *models.InvalidTransitionError
	if errors.As(err, &terr) {
		c.JSON(http.StatusConflict, gin.H{"error": "invalid transition", "state": terr.From})
		return
	}

	var rerr *verify.RateLimitedError
	if errors.As(err, &rerr) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               "too many requests",
			"retry_after_seconds": int(rerr.RetryAfter.Seconds()),
		})
		return
	}

	switch {
	case errors.Is(err, phone.ErrInvalidPhone):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number", "field": "phone"})
	case errors.Is(err, queue.ErrUnknownStatusAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action", "field": "action"})
	case access.IsAccessDenied(err):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, queue.ErrNoOpenWaitlist):
		c.JSON(http.StatusNotFound, gin.H{"error": "no open waitlist"})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, database.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "concurrent modification"})
	default:
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
