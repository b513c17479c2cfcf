package realtime

import (
	"errors"
	"net/http"

	"livegate/internal/core/domain"
	apperrors "livegate/pkg/errors"
)

// toAppError folds domain sentinels into the wire error taxonomy. The
// credential itself never appears in the message.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case domain.IsAuthenticationError(err):
		return apperrors.NewUnauthenticated(err.Error())
	case domain.IsAuthorizationError(err):
		return apperrors.NewForbidden(err.Error())
	case errors.Is(err, domain.ErrStreamNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrRoomNotFound):
		return apperrors.New(apperrors.ErrCodeNotFound, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrPublishConflict):
		return apperrors.NewConflict(err.Error())
	case errors.Is(err, domain.ErrEmptyMessage):
		return apperrors.NewInvalidInput(err.Error())
	default:
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal error", http.StatusInternalServerError)
	}
}
