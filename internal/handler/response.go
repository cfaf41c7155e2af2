package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"boilerplate/internal/logging"
	"boilerplate/internal/ratelimit"
	"boilerplate/internal/token"
	"boilerplate/internal/usecase"
	auth "boilerplate/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

// 全レスポンス共通の封筒
type Response struct {
	Success   bool   `json:"success"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Detail    any    `json:"detail,omitempty"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Response{
		Success:   true,
		Code:      status,
		Message:   message,
		Path:      c.Request().URL.Path,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      data,
	})
}

// errorをステータス・メッセージ・detailに変換する（変換はここだけ）
func translate(c echo.Context, err error) (int, string, any) {
	var limited *ratelimit.LimitedError
	if errors.As(err, &limited) {
		return http.StatusTooManyRequests, "Too many requests", limited.Detail()
	}

	switch {
	case errors.Is(err, auth.ErrValidation),
		errors.Is(err, auth.ErrInvalidEmailFormat),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, auth.ErrEmailAlreadyExists):
		return http.StatusConflict, err.Error(), nil
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password", nil
	case errors.Is(err, auth.ErrInvalidOrExpiredToken):
		return http.StatusUnauthorized, "Invalid or expired token", nil
	case errors.Is(err, auth.ErrUserInactive):
		return http.StatusForbidden, "User is inactive", nil
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "User not found", nil
	case errors.Is(err, token.ErrMissingSecret), errors.Is(err, auth.ErrEncryptionUnavailable):
		return http.StatusInternalServerError, "Server configuration error", err.Error()
	case errors.Is(err, echo.ErrNotFound):
		return http.StatusNotFound, fmt.Sprintf("Route %s %s not found", c.Request().Method, c.Request().URL.Path), nil
	}

	if he, ok := usecase.AsHTTPError(err); ok {
		return he.Status, he.Message, he.Detail
	}

	var eh *echo.HTTPError
	if errors.As(err, &eh) {
		msg := http.StatusText(eh.Code)
		if s, ok := eh.Message.(string); ok && s != "" {
			msg = s
		}
		return eh.Code, msg, nil
	}

	//500
	return http.StatusInternalServerError, "Internal server error", err.Error()
}

// ErrorHandlerはecho.HTTPErrorHandler。productionでは5xxのdetailを出さない。
func ErrorHandler(production bool, log logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message, detail := translate(c, err)
		if status >= http.StatusInternalServerError {
			log.Error(c.Request().Context(), "request failed", "path", c.Request().URL.Path, "error", err)
			if production {
				detail = nil
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, Response{
			Success:   false,
			Code:      status,
			Message:   message,
			Path:      c.Request().URL.Path,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Detail:    detail,
		})
	}
}

// 不正なリクエストボディ
var errInvalidBody = usecase.NewHTTPError(http.StatusBadRequest, "Invalid request body")
