package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrInternalServer    = errors.New("internal server error")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrMeetingNotFound   = errors.New("meeting not found")
	ErrMeetingInactive   = errors.New("meeting is not active")
	ErrNotOccupant       = errors.New("user is not an occupant of the meeting")
	ErrMessageNotFound   = errors.New("message not found")
	ErrContainerNotFound = errors.New("meeting container not found")
	ErrRateLimited       = errors.New("rate limit exceeded")

	// ErrMessageTooBig - единственная ошибка политики, которую нужно показать отправителю
	ErrMessageTooBig = errors.New("message too big")

	// Ошибки программиста: повторная регистрация
	ErrDuplicatePending = errors.New("message is already pending moderation")
	ErrDuplicateMeeting = errors.New("meeting is already registered")
)

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return apiErr.Code
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMeetingNotFound),
		errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrContainerNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotOccupant):
		return http.StatusForbidden
	case errors.Is(err, ErrMeetingInactive):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrMessageTooBig):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
