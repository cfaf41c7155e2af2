package server

import (
	"time"

	"boilerplate/internal/handler"
	"boilerplate/internal/middleware"
	"boilerplate/internal/ratelimit"

	"github.com/labstack/echo/v4"
)

const (
	authLimitPrefix  = "rl:auth:"
	filesLimitPrefix = "rl:files:"
)

func (s *Server) routes(d Deps) {
	e := s.echo

	gate := middleware.AuthGate(d.Issuer, d.Sessions, s.log)
	authLimit := middleware.RateLimit(s.limiter(d, authLimitPrefix, int64(s.cfg.AuthRateLimitMaxRequests), ratelimit.ByIP))
	filesLimit := middleware.RateLimit(s.limiter(d, filesLimitPrefix, int64(s.cfg.RateLimitMaxRequests), ratelimit.ByUser))

	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
		d.Guard.OnStateChange(d.Metrics.SetCacheAvailable)
	}
	handler.NewHealthHandler(s.cfg.GoEnv, d.Guard).RegisterRoutes(e)

	api := e.Group("/api/v1")
	handler.NewAuthHandler(d.Manager).RegisterRoutes(api, gate, authLimit)
	handler.NewAdminUserHandler(d.Manager, d.RequestLogs, d.AuditLogs).RegisterRoutes(api, gate, middleware.AdminRoleGuard())
	handler.NewFileHandler(d.Files).RegisterRoutes(api, gate, filesLimit)
	handler.NewExampleHandler().RegisterRoutes(api, middleware.APIKey(d.APIKeys))
}

func (s *Server) limiter(d Deps, prefix string, max int64, mode ratelimit.Mode) *ratelimit.Limiter {
	l := ratelimit.New(ratelimit.Config{
		Prefix:        prefix,
		Window:        time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second,
		MaxRequests:   max,
		BlockDuration: time.Duration(s.cfg.RateLimitBlockSeconds) * time.Second,
		Mode:          mode,
	}, d.Counter, s.log)
	if d.Metrics != nil {
		l.OnBypass = d.Metrics.RateLimitBypassed
		l.OnReject = d.Metrics.RateLimitRejected
	}
	return l
}
