package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"cryptopay_app/internal/models"
)

// MerchantContextKey is where RequireAPIKey stores the authenticated
// merchant for downstream handlers.
const MerchantContextKey = "merchant"

// RequireAPIKey returns a middleware that authenticates merchant API
// calls by the X-Api-Key header.
func RequireAPIKey(db *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := strings.TrimSpace(c.Request().Header.Get("X-Api-Key"))
			if apiKey == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "API key required")
			}

			var merchant models.Merchant
			err := db.WithContext(c.Request().Context()).
				Where("api_key = ?", apiKey).First(&merchant).Error
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "Failed to authenticate")
			}

			c.Set(MerchantContextKey, &merchant)
			return next(c)
		}
	}
}
