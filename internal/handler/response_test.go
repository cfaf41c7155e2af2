package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boilerplate/internal/logging"
	"boilerplate/internal/ratelimit"
	"boilerplate/internal/token"
	"boilerplate/internal/usecase"
	auth "boilerplate/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", auth.ErrValidation, http.StatusBadRequest, "incomplete data"},
		{"email format", auth.ErrInvalidEmailFormat, http.StatusBadRequest, "invalid email format"},
		{"email taken", auth.ErrEmailAlreadyExists, http.StatusConflict, "email already exists"},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
		{"token", fmt.Errorf("wrap: %w", auth.ErrInvalidOrExpiredToken), http.StatusUnauthorized, "Invalid or expired token"},
		{"inactive", auth.ErrUserInactive, http.StatusForbidden, "User is inactive"},
		{"not found", auth.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{"missing secret", token.ErrMissingSecret, http.StatusInternalServerError, "Server configuration error"},
		{"http error", usecase.NewHTTPError(http.StatusBadGateway, "Failed to store object"), http.StatusBadGateway, "Failed to store object"},
		{"echo error", echo.NewHTTPError(http.StatusUnauthorized, "invalid signature"), http.StatusUnauthorized, "invalid signature"},
		{"limited", &ratelimit.LimitedError{RetryAfter: 42 * time.Second}, http.StatusTooManyRequests, "Too many requests"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	e := echo.New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), httptest.NewRecorder())
			status, msg, _ := translate(c, tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, msg)
		})
	}
}

func TestErrorHandler_HidesDetailInProduction(t *testing.T) {
	for _, prod := range []bool{false, true} {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/things", nil), rec)

		ErrorHandler(prod, logging.Nop())(errors.New("db exploded"), c)

		var body Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.False(t, body.Success)
		assert.Equal(t, "/api/v1/things", body.Path)
		if prod {
			assert.Nil(t, body.Detail)
		} else {
			assert.Equal(t, "db exploded", body.Detail)
		}
	}
}

func TestErrorHandler_RateLimitDetail(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil), rec)

	ErrorHandler(true, logging.Nop())(&ratelimit.LimitedError{RetryAfter: 37 * time.Second}, c)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "Please try again in 37 seconds", body.Detail)
}
