package main

//	@title			Todo API
//	@version		1.0
//	@description	Task management API with a stateless AI chat assistant.
//	@schemes		http https
//	@BasePath		/api

//  Bearer at user level
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				User JWT (e.g. "Bearer eyJhbGciOi...")

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evotodo/todo-api/internal/bootstrap"
	"github.com/evotodo/todo-api/internal/config"
	"github.com/evotodo/todo-api/internal/infra/cache"
	dbpkg "github.com/evotodo/todo-api/internal/infra/db"
	"github.com/evotodo/todo-api/internal/infra/queue"
	"github.com/evotodo/todo-api/internal/modules/chat"
	"github.com/evotodo/todo-api/internal/modules/handler"
	"github.com/evotodo/todo-api/internal/pkg/utils/tokens"
	"github.com/evotodo/todo-api/internal/router"
	"github.com/evotodo/todo-api/internal/telemetry"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// build dependency injection container
	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer func() { _ = log.Sync() }()
	db := do.MustInvoke[*gorm.DB](inj)
	rdb := do.MustInvoke[*redis.Client](inj)

	// Setup OpenTelemetry tracing (using configuration system)
	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg)
	if err != nil {
		log.Sugar().Warnw("failed to setup tracing, continuing without tracing", "err", err)
	} else if telemetry.Enabled(cfg) {
		log.Sugar().Infow("OpenTelemetry tracing enabled", "endpoint", cfg.Telemetry.OtlpEndpoint)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				log.Sugar().Errorw("failed to shutdown tracer", "err", err)
			}
		}()

		// Register GORM OpenTelemetry plugin after tracer provider is set
		if err := dbpkg.RegisterOpenTelemetryPlugin(db); err != nil {
			log.Sugar().Warnw("failed to register GORM OpenTelemetry plugin, continuing without database tracing", "err", err)
		}
		// Register Redis OpenTelemetry plugin after tracer provider is set
		if err := cache.RegisterOpenTelemetryPlugin(rdb); err != nil {
			log.Sugar().Warnw("failed to register Redis OpenTelemetry plugin, continuing without Redis tracing", "err", err)
		}
	}

	if conn := do.MustInvoke[*amqp.Connection](inj); conn != nil {
		defer func() { _ = conn.Close() }()
	}
	if pub := do.MustInvoke[*queue.Publisher](inj); pub != nil {
		defer func() {
			if err := pub.Close(); err != nil {
				log.Sugar().Warnw("close publisher", "err", err)
			}
		}()
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	// init gin
	gin.SetMode(cfg.App.Env)

	engine := router.NewRouter(router.RouterDeps{
		Config:      cfg,
		Log:         log,
		Verifier:    do.MustInvoke[*tokens.Verifier](inj),
		TaskHandler: do.MustInvoke[*handler.TaskHandler](inj),
		ChatHandler: do.MustInvoke[*handler.ChatHandler](inj),
	})

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	// no WriteTimeout: chat streams stay open for the whole turn
	srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Sugar().Infow("starting http server", "addr", addr)
		log.Sugar().Infow("swagger url", "url", addr+"/swagger/index.html")
		log.Sugar().Infow("chat backend", "backend", do.MustInvoke[*chat.Orchestrator](inj).BackendName())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Sugar().Fatalw("listen error", "err", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Sugar().Errorw("server shutdown", "err", err)
	}
	log.Sugar().Info("server exited")
}
