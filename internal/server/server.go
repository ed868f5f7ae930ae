// Package server assembles the engine process: storage, queue, listeners,
// executor and the HTTP surface.
package server

import (
	"context"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowgrid-go/internal/aiclient"
	"github.com/flowgrid-go/internal/engine"
	"github.com/flowgrid-go/internal/engine/dispatcher"
	"github.com/flowgrid-go/internal/engine/executor"
	"github.com/flowgrid-go/internal/engine/listener"
	"github.com/flowgrid-go/internal/engine/nodes"
	"github.com/flowgrid-go/internal/engine/responder"
	"github.com/flowgrid-go/internal/engine/store"
	"github.com/flowgrid-go/internal/engine/validator"
	"github.com/flowgrid-go/internal/notify"
	transport "github.com/flowgrid-go/internal/transport/http"
	"github.com/flowgrid-go/internal/workflow/repository"
	"github.com/flowgrid-go/pkg/cache"
	"github.com/flowgrid-go/pkg/config"
	"github.com/flowgrid-go/pkg/database"
	"github.com/flowgrid-go/pkg/logger"
	"github.com/flowgrid-go/pkg/ratelimit"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	httpServer *nethttp.Server
	db         *database.DB
	redis      *redis.Client
	queue      dispatcher.Queue
	listeners  *listener.Registry
	hubCancel  context.CancelFunc
}

func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	db, err := database.New(database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Name:         cfg.Database.Name,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	repo := repository.NewWorkflowRepository(db)
	if err := repo.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisCache := cache.NewRedisCache(redisClient)
	workflows := store.NewWorkflowStore(redisCache)
	executions := store.NewExecutionStore(redisCache, cfg.Engine.ExecutionTTL)

	listeners := listener.NewRegistry(log)
	pending := responder.NewPendingReplies()
	presence := notify.NewPresence(redisClient)
	hub := notify.NewHub(presence, listeners.HandleInteractEvent, log)
	resp := responder.New(pending, hub, log)

	ai := aiclient.New(cfg.Engine.AIServiceURL, cfg.Engine.NodeTimeout+30*time.Second)
	registry := nodes.NewBuiltinRegistry(nodes.Clients{Agent: ai, Model: ai}, cfg.Engine.NodeTimeout, log)

	var queue dispatcher.Queue
	if cfg.Kafka.Enabled {
		queue = dispatcher.NewKafkaQueue(dispatcher.KafkaConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, log)
	} else {
		queue = dispatcher.NewMemoryQueue(256, cfg.Engine.Workers, log)
	}

	exec := executor.New(workflows, executions, registry, resp, repo, log)
	if err := queue.Subscribe(exec.HandleJob); err != nil {
		return nil, fmt.Errorf("failed to subscribe executor: %w", err)
	}

	service := engine.NewService(
		repo,
		validator.NewActivateValidator(repo),
		validator.NewTriggerValidator(workflows, executions),
		workflows,
		executions,
		listeners,
		queue,
		resp,
		hub,
		log,
	)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	listeners.Run()

	handlers := transport.NewHandlers(service, repo, listeners, pending, hub,
		cfg.Engine.WebhookReplyTimeout, log)
	webhookLimiter := ratelimit.NewKeyedLimiter(cfg.Engine.WebhookRateLimit, cfg.Engine.WebhookRateBurst)
	router := transport.NewRouter(handlers, webhookLimiter, log)

	httpServer := &nethttp.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &Server{
		config:     cfg,
		logger:     log,
		httpServer: httpServer,
		db:         db,
		redis:      redisClient,
		queue:      queue,
		listeners:  listeners,
		hubCancel:  hubCancel,
	}, nil
}

func (s *Server) Start() error {
	s.logger.Info("Starting engine",
		"addr", s.httpServer.Addr,
		"kafka", s.config.Kafka.Enabled,
		"workers", s.config.Engine.Workers)

	if err := s.httpServer.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	s.listeners.Shutdown(ctx)
	s.hubCancel()

	if err := s.queue.Close(); err != nil {
		s.logger.Error("Failed to close queue", "error", err)
	}
	if err := s.redis.Close(); err != nil {
		s.logger.Error("Failed to close redis", "error", err)
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", "error", err)
	}
	return nil
}
