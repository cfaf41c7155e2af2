package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"boilerplate/internal/domain/model"
	"boilerplate/internal/middleware"
	"boilerplate/internal/repository"
	"boilerplate/internal/usecase"
	auth "boilerplate/internal/usecase/auth_usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const defaultLogPageSize = 10

type AdminUserHandler struct {
	sessions *auth.SessionManager
	logs     repository.RequestLogRepository
	audits   repository.AuditLogRepository
}

func NewAdminUserHandler(sessions *auth.SessionManager, logs repository.RequestLogRepository, audits repository.AuditLogRepository) *AdminUserHandler {
	return &AdminUserHandler{sessions: sessions, logs: logs, audits: audits}
}

// /admin 配下は全部「AuthGate + ADMIN限定」
func (h *AdminUserHandler) RegisterRoutes(g *echo.Group, gate, adminOnly echo.MiddlewareFunc) {
	admin := g.Group("/admin", gate, adminOnly)

	admin.POST("/users/:id/force-logout", h.ForceLogout)
	admin.GET("/request-logs", h.RequestLogs)
	admin.GET("/audit-logs", h.AuditLogs)
}

func (h *AdminUserHandler) ForceLogout(c echo.Context) error {
	userID := c.Param("id")
	if _, err := uuid.Parse(userID); err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	actorID, err := middleware.UserID(c)
	if err != nil {
		return middleware.ErrUnauthorized
	}

	if err := h.sessions.ForceLogout(c.Request().Context(), actorID, userID); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User sessions revoked", map[string]any{"userId": userID})
}

type pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalData   int64 `json:"totalData"`
	Limit       int   `json:"limit"`
}

type requestLogPage struct {
	Items      []model.RequestLog `json:"items"`
	Pagination pagination         `json:"pagination"`
}

// GET /admin/request-logs?page&limit&userId&method&status&from&to
func (h *AdminUserHandler) RequestLogs(c echo.Context) error {
	page, err := intQuery(c, "page", 1)
	if err != nil || page < 1 {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	limit, err := intQuery(c, "limit", defaultLogPageSize)
	if err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	limit, _ = repository.NormalizePage(limit, 0)

	filter := repository.RequestLogFilter{Limit: limit, Offset: (page - 1) * limit}
	if v := c.QueryParam("userId"); v != "" {
		if _, err := uuid.Parse(v); err != nil {
			return usecase.NewHTTPError(http.StatusBadRequest, "invalid userId")
		}
		filter.UserID = &v
	}
	if v := c.QueryParam("method"); v != "" {
		m := strings.ToUpper(v)
		filter.Method = &m
	}
	if c.QueryParam("status") != "" {
		s, err := intQuery(c, "status", 0)
		if err != nil {
			return usecase.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		filter.Status = &s
	}
	if filter.CreatedFrom, err = timeQuery(c, "from"); err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid from")
	}
	if filter.CreatedTo, err = timeQuery(c, "to"); err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid to")
	}

	items, total, err := h.logs.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.RequestLog{}
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return respond(c, http.StatusOK, "Request logs retrieved successfully", requestLogPage{
		Items: items,
		Pagination: pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalData:   total,
			Limit:       limit,
		},
	})
}

// GET /admin/audit-logs?limit&offset&actorUserId&resourceId
func (h *AdminUserHandler) AuditLogs(c echo.Context) error {
	limit, err := intQuery(c, "limit", defaultLogPageSize)
	if err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		return usecase.NewHTTPError(http.StatusBadRequest, "invalid offset")
	}

	filter := repository.AuditLogFilter{Limit: limit, Offset: offset}
	if v := c.QueryParam("actorUserId"); v != "" {
		if _, err := uuid.Parse(v); err != nil {
			return usecase.NewHTTPError(http.StatusBadRequest, "invalid actorUserId")
		}
		filter.ActorUserID = &v
	}
	if v := c.QueryParam("resourceId"); v != "" {
		filter.ResourceID = &v
	}

	items, err := h.audits.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	if items == nil {
		items = []model.AuditLog{}
	}
	return respond(c, http.StatusOK, "Audit logs retrieved successfully", map[string]any{"items": items})
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// RFC3339
func timeQuery(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
