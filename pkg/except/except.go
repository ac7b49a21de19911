package except

import (
	"fmt"
	"net/http"
)

type ErrorReason string

const (
	ErrNotFound      ErrorReason = "NotFound"
	ErrConflict      ErrorReason = "Conflict"
	ErrInternalError ErrorReason = "InternalError"
	ErrUnavailable   ErrorReason = "Unavailable"
	ErrAlreadyExists ErrorReason = "AlreadyExists"
	ErrGone          ErrorReason = "Gone"
	ErrInvalid       ErrorReason = "Invalid"
	ErrBatch         ErrorReason = "Batch"
)

type ReasonedError interface {
	error
	Reason() ErrorReason
}

type dfhError struct {
	ErrReason ErrorReason
	Message   string
}

func (d *dfhError) Error() string {
	return d.Message
}

func (d *dfhError) Reason() ErrorReason {
	return d.ErrReason
}

func Reason(err error) ErrorReason {
	if err != nil {
		if v, ok := err.(ReasonedError); ok {
			return v.Reason()
		}
	}
	return ErrInternalError
}

func IsNotFound(err error) bool {
	return Reason(err) == ErrNotFound
}

func IsAlreadyExists(err error) bool {
	return Reason(err) == ErrAlreadyExists
}

func IsGone(err error) bool {
	return Reason(err) == ErrGone
}

func ToHttpStatus(err error) int {
	switch Reason(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrAlreadyExists:
		return http.StatusConflict
	case ErrConflict:
		return http.StatusConflict
	case ErrInvalid:
		return http.StatusBadRequest
	case ErrGone:
		return http.StatusGone
	case ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func NewError(msg string, reason ErrorReason, args ...interface{}) error {
	return &dfhError{
		ErrReason: reason,
		Message:   fmt.Sprintf(msg, args...),
	}
}
