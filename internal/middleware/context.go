package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey    = "user_id"    // string
	CtxUserEmailKey = "user_email" // string
	CtxUserRoleKey  = "user_role"  // string
)

// 中身はhandlerのエラーハンドラーが封筒に詰める
var (
	ErrUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	ErrForbidden    = echo.NewHTTPError(http.StatusForbidden, "Forbidden: admin only")
)

var errNoUser = errors.New("no authenticated user in context")

// UserIDはAuthGateが入れたuser idを返す
func UserID(c echo.Context) (string, error) {
	id, ok := c.Get(CtxUserIDKey).(string)
	if !ok || id == "" {
		return "", errNoUser
	}
	return id, nil
}

func stringValue(c echo.Context, key string) *string {
	s, ok := c.Get(key).(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}
