package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CustomErrorHandler creates a custom error handler for Echo. Every
// error leaving a handler is logged and rendered as the JSON envelope
// the merchant API and the processor expect.
func CustomErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "Something went wrong. Please try again later."

	// Check if it's an Echo HTTPError
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			message = msg
		} else {
			switch code {
			case http.StatusNotFound:
				message = "Resource not found"
			case http.StatusForbidden:
				message = "You don't have permission to access this resource"
			case http.StatusUnauthorized:
				message = "Authentication required"
			case http.StatusBadRequest:
				message = "The request could not be processed"
			}
		}
	}

	// Log the error
	c.Logger().Error(err)

	if c.Response().Committed {
		return
	}
	if err := c.JSON(code, map[string]string{"error": message}); err != nil {
		c.Logger().Error(err)
	}
}
