package middleware

import (
	"encoding/json"
	"strconv"
	"time"

	"boilerplate/internal/domain/model"
	"boilerplate/internal/logging"
	"boilerplate/internal/obs"

	"github.com/labstack/echo/v4"
)

// RequestRecorderはrequestlog.Writerが満たす
type RequestRecorder interface {
	Emit(entry model.RequestLog) bool
}

// Observeは1リクエストごとにアクセスログ・metrics・リクエストログを残す。
// ステータスを確定させるため、エラーはここでecho.Errorに流す。
func Observe(log logging.Logger, metrics *obs.Metrics, recorder RequestRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}

			start := time.Now()
			if metrics != nil {
				metrics.InFlightInc()
				defer metrics.InFlightDec()
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			latency := time.Since(start)

			// 未マッチのルートはパスをそのまま使わない（ラベルが増えすぎる）
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			if metrics != nil {
				metrics.ObserveRequest(req.Method, route, strconv.Itoa(status), latency.Seconds())
			}

			userID := stringValue(c, CtxUserIDKey)
			args := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"ip", c.RealIP(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if userID != nil {
				args = append(args, "user_id", *userID)
			}
			switch {
			case status >= 500:
				log.Error(req.Context(), "request", append(args, "error", err)...)
			case status >= 400:
				log.Warn(req.Context(), "request", args...)
			default:
				log.Info(req.Context(), "request", args...)
			}

			if recorder != nil {
				recorder.Emit(model.RequestLog{
					UserID:    userID,
					Email:     stringValue(c, CtxUserEmailKey),
					Role:      stringValue(c, CtxUserRoleKey),
					IP:        c.RealIP(),
					Method:    req.Method,
					Status:    status,
					Host:      req.Host,
					Path:      req.URL.Path,
					Data:      requestData(c, err),
					CreatedAt: start,
				})
			}
			return nil
		}
	}
}

// bodyは保存しない（パスワードが入る）。クエリとエラーだけ。
func requestData(c echo.Context, err error) string {
	data := map[string]any{}
	if q := c.QueryParams(); len(q) > 0 {
		data["query"] = q
	}
	if err != nil {
		data["error"] = err.Error()
	}
	if len(data) == 0 {
		return ""
	}
	b, mErr := json.Marshal(data)
	if mErr != nil {
		return ""
	}
	return string(b)
}
