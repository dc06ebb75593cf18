package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"librarian/library"
)

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps a domain error kind to an HTTP status. Anything that is not
// a domain error is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, library.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrIneligible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, library.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, library.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(),
			"request_id", c.GetString(requestIDKey), "err", err)
		c.JSON(status, errorBody{Error: "internal server error"})
		return
	}
	c.JSON(status, errorBody{Error: library.Reason(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: msg})
}
