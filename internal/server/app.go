// Package server initializes and runs the main application server:
// database and migrations, object storage, fanout transports, core
// services, and the HTTP endpoint, with graceful shutdown on signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/spaceshare/internal/logging"
	"github.com/dmitrijs2005/spaceshare/internal/server/chat"
	"github.com/dmitrijs2005/spaceshare/internal/server/config"
	"github.com/dmitrijs2005/spaceshare/internal/server/httpapi"
	"github.com/dmitrijs2005/spaceshare/internal/server/push"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/groups"
	"github.com/dmitrijs2005/spaceshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/spaceshare/internal/server/services"
	"github.com/dmitrijs2005/spaceshare/internal/server/storage"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config *config.Config
	logger logging.Logger
	server *httpapi.Server
	db     *sql.DB
}

// NewApp wires the whole server together from configuration.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := storage.NewS3BlobStore(ctx, storage.S3Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		return nil, fmt.Errorf("nats connect error: %w", err)
	}
	pushSink := push.NewNatsSink(nc)

	chatSink := chat.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaChatTopic)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	groupRepo := groups.NewCachedRepository(repos.Groups(db), rdb, cfg.MembersCacheTTL)

	reconciler := services.NewReconciler(db, repos)
	dispatcher := services.NewFanoutDispatcher(db, repos, groupRepo, chatSink, pushSink, logger)
	attach := services.NewAttachmentService(db, repos, blobs, reconciler, dispatcher, groupRepo, logger)
	entities := services.NewEntityService(db, repos)
	devices := services.NewDeviceService(db, repos)

	handler := httpapi.NewHandler(entities, attach, devices)
	server := httpapi.NewServer(cfg.EndpointAddrHTTP, cfg.SecretKey, handler)

	return &App{config: cfg, logger: logger, server: server, db: db}, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	if cfg.Development {
		return logging.NewDevelopmentZapLogger()
	}
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a shutdown signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server stopped", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
