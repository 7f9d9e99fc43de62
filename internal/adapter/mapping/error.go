package mapping

import (
	"context"
	"errors"
	"net/http"

	"github.com/eslsoft/tafsirnet/internal/entity"
)

// HTTPStatus maps domain errors to response codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, entity.ErrInvalidVerseRef), errors.Is(err, entity.ErrInvalidEntry),
		errors.Is(err, entity.ErrEmptyQuestion), errors.Is(err, entity.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrEmptyCorpus):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrDuplicateVerse):
		return http.StatusConflict
	case errors.Is(err, entity.ErrProviderNotEnabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrProviderFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"` // a later attempt may succeed
}

func ToErrorBody(err error) ErrorBody {
	status := HTTPStatus(err)
	return ErrorBody{
		Error: err.Error(),
		Retry: status == http.StatusBadGateway || status == http.StatusGatewayTimeout,
	}
}
