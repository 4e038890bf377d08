package common

import (
	"encoding/json"
	"go-auth-api/logger"
	"net/http"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var exposeDetail atomic.Bool

// ExposeErrorDetail controls whether the wrapped internal error is echoed
// in responses. Only enabled in development.
func ExposeErrorDetail(enabled bool) {
	exposeDetail.Store(enabled)
}

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) Send(w http.ResponseWriter) {
	body := errorResponse{Message: e.Message}

	if e.Err != nil {
		entry := logger.Log.WithFields(logrus.Fields{
			"status_code":    e.Code,
			"internal_error": e.Err.Error(),
		})
		if e.Code >= http.StatusInternalServerError {
			entry.Error(e.Message)
		} else {
			entry.Warn(e.Message)
		}
		if exposeDetail.Load() {
			body.Error = e.Err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.Code)
	json.NewEncoder(w).Encode(body)
}
