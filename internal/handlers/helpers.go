package handlers

import (
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"cryptopay_app/internal/middleware"
	"cryptopay_app/internal/models"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// merchantFromContext returns the merchant set by the API-key
// middleware, or nil outside authenticated routes.
func merchantFromContext(c echo.Context) *models.Merchant {
	if val := c.Get(middleware.MerchantContextKey); val != nil {
		if m, ok := val.(*models.Merchant); ok {
			return m
		}
	}
	return nil
}

// pageParams parses ?page and ?page_size with sane bounds.
func pageParams(c echo.Context) (page, pageSize int) {
	page = 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	pageSize = 20
	if ps, err := strconv.Atoi(c.QueryParam("page_size")); err == nil && ps > 0 && ps <= 100 {
		pageSize = ps
	}
	return page, pageSize
}
