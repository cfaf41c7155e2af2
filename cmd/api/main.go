package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boilerplate/internal/apikey"
	"boilerplate/internal/config"
	"boilerplate/internal/cryptox"
	"boilerplate/internal/infra/cache"
	"boilerplate/internal/infra/db"
	"boilerplate/internal/infra/memory"
	infraRepo "boilerplate/internal/infra/repository"
	"boilerplate/internal/infra/storage"
	"boilerplate/internal/logging"
	"boilerplate/internal/obs"
	"boilerplate/internal/repository"
	"boilerplate/internal/requestlog"
	"boilerplate/internal/server"
	"boilerplate/internal/token"
	"boilerplate/internal/usecase"
	auth "boilerplate/internal/usecase/auth_usecase"

	"github.com/joho/godotenv"
)

func main() {
	// .envは無くてもよい
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

type stores struct {
	users repository.UserRepository
	tx    repository.TransactionManager
	logs  repository.RequestLogRepository
	audit repository.AuditLogRepository
	close func() error
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.IsProduction())

	//DB接続（memoryならDB無しで起動）
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn(context.Background(), "db close failed", "error", err)
		}
	}()

	//Redis（無くても起動する）
	metrics := obs.NewMetrics()
	guard := cache.NewGuard(
		cache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisDialTimeout, cfg.RedisCommandTimeout),
		cfg.RedisProbeInterval, log,
	)
	defer guard.Close()
	if err := guard.Ping(ctx); err != nil {
		log.Warn(ctx, "redis unavailable at startup, running without session cache", "error", err)
	}
	sessions := cache.NewSessionCache(guard, log)

	//S3（未設定ならファイルAPIは503）
	var objects usecase.ObjectStore
	if cfg.S3Configured() {
		s3store, err := storage.NewS3Store(ctx, storage.Config{
			Endpoint:  cfg.S3Endpoint,
			UseSSL:    cfg.S3UseSSL,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			log.Warn(ctx, "object storage disabled", "error", err)
		} else {
			objects = s3store
		}
	}

	//電話番号の暗号化キー
	var sealer auth.FieldSealer
	if cfg.DataEncryptionKey != "" {
		s, err := cryptox.NewSealer(cfg.DataEncryptionKey)
		if err != nil {
			return fmt.Errorf("DATA_ENCRYPTION_KEY: %w", err)
		}
		sealer = s
	}

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret)
	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		log.Warn(ctx, "JWT_SECRET or JWT_REFRESH_SECRET is not set, token endpoints will fail")
	}

	manager := auth.NewSessionManager(
		st.users, st.tx, issuer, sessions,
		auth.NewBcryptPasswordHasher(cfg.BcryptCost), auth.NewBcryptPasswordVerifier(),
		sealer, auth.UUIDGenerator{}, auth.SystemClock{}, log,
	)

	//リクエストログ（非同期）
	writer := requestlog.NewWriter(st.logs, requestlog.DefaultQueueSize, log)
	writer.OnDrop = metrics.RequestLogDropped
	writer.Start()

	srv := server.New(cfg, log, server.Deps{
		Issuer:      issuer,
		Guard:       guard,
		Sessions:    sessions,
		Counter:     cache.NewCounter(guard),
		Manager:     manager,
		Files:       usecase.NewFileUsecase(objects, log),
		RequestLogs: st.logs,
		AuditLogs:   st.audit,
		Recorder:    writer,
		APIKeys:     apikey.NewVerifier(cfg.APIUserKey, cfg.APISecretKey),
		Metrics:     metrics,
	})

	runErr := srv.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := writer.Close(drainCtx); err != nil {
		log.Warn(drainCtx, "request log drain incomplete", "error", err)
	}
	return runErr
}

func openStores(ctx context.Context, cfg config.Config, log logging.Logger) (stores, error) {
	if cfg.DBDriver == "memory" {
		log.Warn(ctx, "using in-memory store, data is lost on restart")
		m := memory.NewStore()
		return stores{users: m.Users(), tx: m, logs: m.RequestLogs(), audit: m.AuditLogs(), close: func() error { return nil }}, nil
	}

	gdb, err := db.Connect(ctx, cfg)
	if err != nil {
		return stores{}, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return stores{}, err
	}
	if err := db.MigrateUp(ctx, sqlDB); err != nil {
		_ = db.Close(gdb)
		return stores{}, err
	}

	return stores{
		users: infraRepo.NewUserGormRepository(gdb),
		tx:    infraRepo.NewTxManagerGorm(gdb),
		logs:  infraRepo.NewRequestLogGormRepository(gdb),
		audit: infraRepo.NewAuditLogGormRepository(gdb),
		close: func() error { return db.Close(gdb) },
	}, nil
}
