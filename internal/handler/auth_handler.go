package handler

import (
	"net/http"

	"boilerplate/internal/middleware"
	auth "boilerplate/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	sessions *auth.SessionManager
}

// DIコンストラクタ
func NewAuthHandler(sessions *auth.SessionManager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// limitはIP単位のレート制限、gateはAuthGate
func (h *AuthHandler) RegisterRoutes(g *echo.Group, gate, limit echo.MiddlewareFunc) {
	a := g.Group("/auth")
	a.POST("/register", h.Register, limit)
	a.POST("/login", h.Login, limit)
	a.POST("/refresh-token", h.Refresh, limit)
	a.POST("/logout", h.Logout, gate)
	a.GET("/profile", h.Profile, gate)
}

// /auth/register のリクエストボディ。
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Photo    string `json:"photo"`
}

// /auth/login のリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RegisterはPOST /auth/registerのハンドラ（登録と同時にログイン）
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	out, err := h.sessions.Register(c.Request().Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
		Photo:    req.Photo,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User registered successfully", out)
}

// LoginはPOST /auth/login のハンドラ。
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	out, err := h.sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Login successful", out)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if req.RefreshToken == "" {
		return auth.ErrValidation
	}

	out, err := h.sessions.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Token refreshed successfully", out)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return middleware.ErrUnauthorized
	}
	if err := h.sessions.Logout(c.Request().Context(), userID); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Logout successful", nil)
}

func (h *AuthHandler) Profile(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return middleware.ErrUnauthorized
	}
	user, err := h.sessions.Profile(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile retrieved successfully", map[string]any{"user": user})
}
