package api

import (
	"context"
	"errors"
	"net/http"

	"podcastflow/internal/services"
)

// HTTPStatus maps an error onto a response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds the error body for err. Server-side failures get
// a generic message so internals do not leak.
func NewErrorResponse(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	if IsClientError(err) {
		return ErrorResponse{Error: services.Message(err), Kind: services.Kind(err)}
	}
	return ErrorResponse{Error: http.StatusText(HTTPStatus(err)), Kind: services.Kind(err)}
}
