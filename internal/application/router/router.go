package router

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/service"
	"github.com/OpenBPLS/bpls/internal/auth"
	"github.com/OpenBPLS/bpls/internal/uploads"
	"github.com/OpenBPLS/bpls/internal/validation"
	"github.com/OpenBPLS/bpls/internal/wizard"
)

// writeError maps service, validation and wizard errors to HTTP responses.
// Persistence failures are already logged by the store and are shown with the
// generic retry message.
func writeError(c *gin.Context, err error) {
	var (
		subErr  *validation.SubmissionError
		missing *validation.MissingFieldsError
	)
	switch {
	case errors.As(err, &subErr):
		body := gin.H{"error": wizard.Message(subErr.Cause), "step": subErr.Step}
		if errors.As(subErr.Cause, &missing) {
			body["missingFields"] = missing.Fields
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &missing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":         err.Error(),
			"step":          missing.Step,
			"missingFields": missing.Fields,
		})
	case errors.Is(err, service.ErrPersistence):
		c.JSON(http.StatusInternalServerError, gin.H{"error": wizard.SaveFailedMessage})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, wizard.ErrNoSession), errors.Is(err, uploads.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotEditable),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, wizard.ErrSubmitted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, wizard.ErrInvalidStep):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, uploads.ErrTooLarge), errors.Is(err, uploads.ErrUnsupportedType), errors.Is(err, uploads.ErrEmptyFile):
		uploads.WriteError(c, err)
	default:
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// parseID reads a uuid path parameter, writing 400 when it is malformed.
func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ": " + err.Error()})
		return uuid.Nil, false
	}
	return id, true
}

// parsePaging reads the optional offset and limit query parameters.
func parsePaging(c *gin.Context) (offset, limit *int, ok bool) {
	if offset, ok = parseIntQuery(c, "offset"); !ok {
		return nil, nil, false
	}
	if limit, ok = parseIntQuery(c, "limit"); !ok {
		return nil, nil, false
	}
	return offset, limit, true
}

func parseIntQuery(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid '" + name + "' query parameter, must be an integer"})
		return nil, false
	}
	return &v, true
}

func userID(c *gin.Context) uuid.UUID {
	if authCtx := auth.GetAuthContext(c); authCtx != nil {
		return authCtx.UserID
	}
	return uuid.Nil
}
