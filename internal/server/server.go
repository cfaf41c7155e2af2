package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"boilerplate/internal/apikey"
	"boilerplate/internal/config"
	"boilerplate/internal/handler"
	"boilerplate/internal/infra/cache"
	"boilerplate/internal/logging"
	"boilerplate/internal/middleware"
	"boilerplate/internal/obs"
	"boilerplate/internal/repository"
	"boilerplate/internal/token"
	"boilerplate/internal/usecase"
	auth "boilerplate/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

// Depsはmainで組み立てて渡す
type Deps struct {
	Issuer      *token.Issuer
	Guard       *cache.Guard
	Sessions    *cache.SessionCache
	Counter     *cache.Counter
	Manager     *auth.SessionManager
	Files       *usecase.FileUsecase
	RequestLogs repository.RequestLogRepository
	AuditLogs   repository.AuditLogRepository
	Recorder    middleware.RequestRecorder // nilなら保存しない
	APIKeys     *apikey.Verifier
	Metrics     *obs.Metrics
}

type Server struct {
	cfg  config.Config
	log  logging.Logger
	echo *echo.Echo
}

func New(cfg config.Config, log logging.Logger, d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(cfg.IsProduction(), log)

	e.IPExtractor = ipExtractor(cfg)

	// Recoverはpanicをエラーとして返し、Observeが500として記録する
	e.Use(echomw.RequestID())
	e.Use(middleware.Observe(log, d.Metrics, d.Recorder))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{DisableErrorHandler: true}))
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.Origins(),
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			echo.HeaderAuthorization, middleware.HeaderAPIKey,
		},
	}))
	e.Use(echomw.Gzip())
	e.Use(echomw.BodyLimit(cfg.BodyLimit))

	s := &Server{cfg: cfg, log: log, echo: e}
	s.routes(d)
	return s
}

// 信頼できるproxyが無ければ接続元のIPだけを使う
func ipExtractor(cfg config.Config) echo.IPExtractor {
	ranges, _ := cfg.ProxyRanges()
	if len(ranges) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range ranges {
		opts = append(opts, echo.TrustIPRange(r))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// テスト用
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Runはctxが終わるまで待ってからgraceful shutdownする
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", "addr", s.cfg.Addr())
		if err := s.echo.Start(s.cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info(shutdownCtx, "http server shutting down")
	return s.echo.Shutdown(shutdownCtx)
}
