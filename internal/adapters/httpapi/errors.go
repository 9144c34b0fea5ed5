package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/core/pipeline"
	"github.com/example/reelforge/internal/core/publish"
	"github.com/example/reelforge/internal/ports/primary"
	"github.com/example/reelforge/internal/ports/secondary"
)

var errRouteNotFound = errors.New("not found")

// ErrorModel is the body of every error response.
type ErrorModel struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, primary.ErrInvalidRequest), errors.As(err, &validationErrs):
		return http.StatusBadRequest
	case errors.Is(err, secondary.ErrNotFound), errors.Is(err, errRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidTransition),
		errors.Is(err, publish.ErrInvalidTransition),
		errors.Is(err, pipeline.ErrTaskAlreadyRunning),
		errors.Is(err, secondary.ErrStaleStatus):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		loggerFrom(c).Error("request failed", zap.Error(err))
		detail = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorModel{
		Status: status,
		Title:  http.StatusText(status),
		Detail: detail,
	}})
}
