package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carefully-app/carefully-backend/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondAppError maps the error taxonomy onto status codes so the UI can
// distinguish a retryable oracle failure from bad input.
func RespondAppError(c *gin.Context, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(apperr.HTTPStatus(err), ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    apperr.CodeOf(err),
		},
	})
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
