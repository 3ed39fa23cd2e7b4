package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/evotodo/todo-api/internal/config"
	"github.com/evotodo/todo-api/internal/infra/blob"
	"github.com/evotodo/todo-api/internal/infra/cache"
	"github.com/evotodo/todo-api/internal/infra/db"
	"github.com/evotodo/todo-api/internal/infra/httpclient"
	"github.com/evotodo/todo-api/internal/infra/llm"
	"github.com/evotodo/todo-api/internal/infra/logger"
	"github.com/evotodo/todo-api/internal/infra/queue"
	"github.com/evotodo/todo-api/internal/modules/chat"
	"github.com/evotodo/todo-api/internal/modules/handler"
	"github.com/evotodo/todo-api/internal/modules/model"
	"github.com/evotodo/todo-api/internal/modules/repo"
	"github.com/evotodo/todo-api/internal/modules/service"
	"github.com/evotodo/todo-api/internal/modules/tool"
	"github.com/evotodo/todo-api/internal/pkg/utils/tokens"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BuildContainer registers every provider. Optional infrastructure (Redis,
// RabbitMQ, S3, the model backend) resolves to nil when it is not
// configured and its consumers degrade instead of failing.
func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		// [optional] auto migrate
		if cfg.Database.AutoMigrate {
			if err := d.AutoMigrate(model.All()...); err != nil {
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cache.New(cfg), nil
	})

	// RabbitMQ Connection
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RabbitMQ.URL == "" {
			return nil, nil
		}
		return amqp.Dial(cfg.RabbitMQ.URL)
	})
	do.Provide(inj, func(i *do.Injector) (*queue.Publisher, error) {
		conn := do.MustInvoke[*amqp.Connection](i)
		if conn == nil {
			return nil, nil
		}
		return queue.NewPublisher(conn, do.MustInvoke[*zap.Logger](i))
	})

	// S3
	do.Provide(inj, func(i *do.Injector) (*blob.S3Deps, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return blob.NewS3(context.Background(), cfg)
	})
	// get presign expire duration
	do.Provide(inj, func(i *do.Injector) (func() time.Duration, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return func() time.Duration {
			if cfg.S3.PresignExpireSec <= 0 {
				return 15 * time.Minute
			}
			return time.Duration(cfg.S3.PresignExpireSec) * time.Second
		}, nil
	})

	// outbound HTTP + model backend
	do.Provide(inj, func(i *do.Injector) (*http.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return httpclient.New(cfg.Chat.ModelTimeout(), do.MustInvoke[*zap.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*llm.Backend, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return llm.New(cfg, do.MustInvoke[*http.Client](i)), nil
	})

	// auth
	do.Provide(inj, func(i *do.Injector) (*tokens.Verifier, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.Auth.JWTSecret == "" {
			return nil, fmt.Errorf("auth.jwtSecret is required")
		}
		return tokens.NewVerifier(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.LeewaySec)*time.Second), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.TaskRepo, error) {
		return repo.NewTaskRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ConversationRepo, error) {
		return repo.NewConversationRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.TaskService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		deps := service.TaskServiceDeps{
			Exchange:      cfg.RabbitMQ.Exchange,
			PresignExpire: do.MustInvoke[func() time.Duration](i),
		}
		if pub := do.MustInvoke[*queue.Publisher](i); pub != nil {
			deps.Events = pub
		}
		if s3 := do.MustInvoke[*blob.S3Deps](i); s3 != nil {
			deps.Snapshots = s3
		}
		if rdb := do.MustInvoke[*redis.Client](i); rdb != nil {
			deps.Stats = cache.NewJSONCache(rdb, "stats:", cfg.Redis.StatsTTL())
		}
		return service.NewTaskService(do.MustInvoke[repo.TaskRepo](i), do.MustInvoke[*zap.Logger](i), deps), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ConversationService, error) {
		return service.NewConversationService(do.MustInvoke[repo.ConversationRepo](i), do.MustInvoke[*zap.Logger](i)), nil
	})

	// Chat
	do.Provide(inj, func(i *do.Injector) (*tool.Registry, error) {
		return tool.NewRegistry(do.MustInvoke[service.TaskService](i), do.MustInvoke[*zap.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*chat.Orchestrator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		opts := chat.Options{
			Tools:         do.MustInvoke[*tool.Registry](i),
			Conversations: do.MustInvoke[service.ConversationService](i),
			Exchange:      cfg.RabbitMQ.Exchange,
			HistoryLimit:  cfg.Chat.HistoryLimit,
			ModelTimeout:  cfg.Chat.ModelTimeout(),
			Log:           do.MustInvoke[*zap.Logger](i),
		}
		if b := do.MustInvoke[*llm.Backend](i); b != nil {
			opts.Backend = b
		}
		if pub := do.MustInvoke[*queue.Publisher](i); pub != nil {
			opts.Events = pub
		}
		if rdb := do.MustInvoke[*redis.Client](i); rdb != nil && cfg.Chat.SerializeTurns {
			opts.Locker = cache.NewLocker(rdb, cfg.Chat.LockTTL())
		}
		return chat.NewOrchestrator(opts), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.TaskHandler, error) {
		return handler.NewTaskHandler(do.MustInvoke[service.TaskService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ChatHandler, error) {
		return handler.NewChatHandler(
			do.MustInvoke[*chat.Orchestrator](i),
			do.MustInvoke[service.ConversationService](i),
			do.MustInvoke[*tool.Registry](i).Names(),
		), nil
	})

	return inj
}
