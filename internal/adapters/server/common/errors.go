package common

import (
	"errors"
	"net/http"

	"github.com/hylla/ewtrail/internal/app"
)

// ErrInvalidRequest reports malformed transport input before it reaches the app.
var ErrInvalidRequest = errors.New("invalid request")

// ErrorInfo is the transport-neutral description of one failure.
type ErrorInfo struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DescribeError classifies err into a status, a kind code and app details.
// App error codes such as LOT_NOT_FOUND travel in details.reason.
func DescribeError(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{Status: http.StatusInternalServerError, Code: "internal", Message: "unknown error"}
	}
	info := ErrorInfo{Message: err.Error()}
	var appErr *app.Error
	if errors.As(err, &appErr) {
		info.Message = appErr.Message
		info.Details = map[string]any{"reason": appErr.Code}
		for k, v := range appErr.Details {
			info.Details[k] = v
		}
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		info.Status, info.Code = http.StatusBadRequest, "invalid_request"
		return info
	}
	switch kind := app.KindName(err); kind {
	case app.KindNotFound:
		info.Status, info.Code = http.StatusNotFound, kind
	case app.KindInvalidTransition, app.KindMismatch, app.KindPreconditionFailed, app.KindIntegrityViolation:
		info.Status, info.Code = http.StatusConflict, kind
	case app.KindInvalidInput:
		info.Status, info.Code = http.StatusBadRequest, "invalid_request"
	default:
		info.Status, info.Code = http.StatusInternalServerError, app.KindInternal
	}
	return info
}
