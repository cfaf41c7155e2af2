package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// x-api-key の動作確認用
type ExampleHandler struct{}

func NewExampleHandler() *ExampleHandler {
	return &ExampleHandler{}
}

func (h *ExampleHandler) RegisterRoutes(g *echo.Group, apiKey echo.MiddlewareFunc) {
	ex := g.Group("/example")
	ex.GET("/public", h.Public)
	ex.GET("/protected", h.Protected, apiKey)
}

func (h *ExampleHandler) Public(c echo.Context) error {
	return respond(c, http.StatusOK, "This is a public endpoint", nil)
}

func (h *ExampleHandler) Protected(c echo.Context) error {
	return respond(c, http.StatusOK, "This is a protected endpoint", map[string]bool{"apiKeyVerified": true})
}
