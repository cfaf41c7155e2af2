package handler

import (
	"net/http"
	"time"

	"boilerplate/internal/infra/cache"

	"github.com/labstack/echo/v4"
)

type HealthHandler struct {
	env   string
	guard *cache.Guard
}

func NewHealthHandler(env string, guard *cache.Guard) *HealthHandler {
	return &HealthHandler{env: env, guard: guard}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/health")
	})
}

// キャッシュが落ちていてもサービス自体はok（機能が縮退するだけ）
func (h *HealthHandler) Health(c echo.Context) error {
	state := "disabled"
	if h.guard != nil && h.guard.Client() != nil {
		state = "down"
		if h.guard.Available(c.Request().Context()) {
			state = "up"
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": h.env,
		"cache":       state,
	})
}
