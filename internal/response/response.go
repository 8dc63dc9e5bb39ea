package response

import (
	"github.com/labstack/echo/v4"
)

// Envelope is the uniform JSON shape every endpoint responds with.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// OK writes a success envelope with the given payload.
func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Fail writes a failure envelope. No internal details belong in message;
// callers log those separately.
func Fail(c echo.Context, status int, message string) error {
	return c.JSON(status, Envelope{Success: false, Data: nil, Message: message})
}
