package middleware

import (
	"net/http"

	"boilerplate/internal/apikey"

	"github.com/labstack/echo/v4"
)

const HeaderAPIKey = "x-api-key"

// APIKeyは署名付きx-api-keyを検証する。失敗は全部401。
func APIKey(v *apikey.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := v.Verify(c.Request().Header.Get(HeaderAPIKey)); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			return next(c)
		}
	}
}
