package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stitchflow/labelrelay/internal/core"
)

// writeDomainError maps the closed set of domain errors onto HTTP statuses.
// The sentinel text doubles as the wire-level error code.
func writeDomainError(c *gin.Context, err error) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	}

	switch {
	case errors.Is(err, core.ErrSourceNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrPrinterNotFound), errors.Is(err, core.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrPrinterUnavailable),
		errors.Is(err, core.ErrDefaultPrinterMissing),
		errors.Is(err, core.ErrUnsupportedProtocol),
		errors.Is(err, core.ErrDefaultPrinterDisableBlocked),
		errors.Is(err, core.ErrDefaultPrinterDisabled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
