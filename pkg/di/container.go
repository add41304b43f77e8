package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"chat-relay/backend/internal/models"
	"chat-relay/backend/internal/pubsub"
	"chat-relay/backend/internal/repository"
	"chat-relay/backend/internal/service"
	"chat-relay/backend/internal/ws"
	"chat-relay/backend/pkg/cache"
	"chat-relay/backend/pkg/config"
	"chat-relay/backend/pkg/health"
	"chat-relay/backend/pkg/logger"
	"chat-relay/backend/pkg/metrics"
	"chat-relay/backend/pkg/resilience"
	"chat-relay/backend/shared/observability"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             *gorm.DB
	Redis          *goredis.Client
	Repository     repository.MessageRepository
	Broadcaster    pubsub.Broadcaster
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	MessageService *service.MessageService
	QueryService   *service.MessageQueryService
	Health         *health.Checker
	Relay          *ws.Relay
	WSHandler      *ws.Handler

	closers []func(context.Context) error
}

// Options lets callers substitute the infrastructure, mainly in tests
type Options struct {
	// DB skips opening a database from config when set
	DB *gorm.DB
	// Repository skips the gorm repository when set
	Repository repository.MessageRepository
	// Broadcaster skips building one from config when set
	Broadcaster pubsub.Broadcaster
}

// New builds the object graph from configuration
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	if err := c.initStore(ctx, opts); err != nil {
		c.Close(ctx)
		return nil, err
	}
	if err := c.initBroadcaster(ctx, opts); err != nil {
		c.Close(ctx)
		return nil, err
	}

	c.MessageService = service.NewMessageService(c.Repository, c.Broadcaster, service.MessageServiceOptions{
		Topic:   cfg.Relay.Topic,
		Logger:  log,
		Metrics: c.Metrics,
	})

	var messageCache *cache.Cache[uuid.UUID, models.Message]
	if cfg.Cache.Enabled {
		messageCache = cache.New[uuid.UUID, models.Message](cache.Options{
			TTL:         cfg.Cache.TTL,
			PurgeWindow: cfg.Cache.PurgeWindow,
			MaxItems:    cfg.Cache.MaxSize,
		})
		c.addCloser(func(context.Context) error {
			messageCache.Close()
			return nil
		})
	}
	c.QueryService = service.NewMessageQueryService(c.Repository, messageCache,
		cfg.History.DefaultLimit, cfg.History.MaxLimit)

	c.Health = health.NewChecker(cfg.Health.ProbeTimeout, log, c.Metrics)
	c.Health.Register(health.ComponentStore, c.Repository.HealthCheck)
	c.Health.Register(health.ComponentChannel, c.Broadcaster.HealthCheck)

	c.Relay = ws.NewRelay(c.MessageService, c.Broadcaster, ws.RelayOptions{
		Topic:         cfg.Relay.Topic,
		PingPeriod:    cfg.Relay.PingPeriod,
		IngestTimeout: cfg.Relay.IngestTimeout,
		Logger:        log,
		Metrics:       c.Metrics,
	})
	c.WSHandler = ws.NewHandler(c.Relay, ws.Settings{
		WriteWait:      cfg.Relay.WriteWait,
		PongWait:       cfg.Relay.PongWait,
		PingPeriod:     cfg.Relay.PingPeriod,
		MaxMessageSize: cfg.Relay.MaxMessageSize,
	}, cfg.Security.AllowedOrigins)

	return c, nil
}

func (c *Container) initMetrics() error {
	if !c.Config.Observability.MetricsEnabled {
		c.Metrics = metrics.Noop()
		return nil
	}

	exporter, err := observability.SetupMetrics(c.Config.Observability.ServiceName)
	if err != nil {
		return err
	}
	c.addCloser(exporter.Shutdown)

	m, err := metrics.New(exporter.Provider.Meter("chat-relay"))
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	c.Metrics = m
	c.MetricsHandler = exporter.Handler
	return nil
}

func (c *Container) initStore(ctx context.Context, opts Options) error {
	if opts.Repository != nil {
		c.Repository = opts.Repository
		return nil
	}

	db := opts.DB
	if db == nil {
		var err error
		if db, err = config.NewDB(c.Config); err != nil {
			return err
		}
		c.addCloser(func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}
	c.DB = db
	if err := config.TestConnection(ctx, db); err != nil {
		return err
	}

	repo := repository.NewGormMessageRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	c.Repository = repo
	return nil
}

func (c *Container) initBroadcaster(ctx context.Context, opts Options) error {
	broadcaster := opts.Broadcaster
	onEvict := func(topic string) {
		c.Metrics.SubscriberEvicted(context.Background(), topic)
		c.Logger.Warn("Evicted slow subscriber", "topic", topic)
	}

	if broadcaster == nil {
		switch strings.ToLower(c.Config.Redis.Backend) {
		case "memory":
			mem := pubsub.NewMemoryBroadcaster(c.Config.Relay.SubscriptionBuffer, onEvict)
			c.addCloser(func(context.Context) error { return mem.Close() })
			broadcaster = mem
		case "redis", "":
			rdb, err := config.NewRedisClient(c.Config)
			if err != nil {
				return err
			}
			c.Redis = rdb
			c.addCloser(func(context.Context) error { return rdb.Close() })
			if err := rdb.Ping(ctx).Err(); err != nil {
				// The relay still starts; health reports the channel as down.
				c.Logger.Warn("Redis is not reachable yet", "error", err.Error())
			}
			broadcaster = pubsub.NewRedisBroadcaster(rdb, c.Config.Relay.SubscriptionBuffer, onEvict)
		default:
			return fmt.Errorf("unknown pubsub backend %q", c.Config.Redis.Backend)
		}
	}

	if c.Config.Breaker.Enabled {
		cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "publish",
			FailureThreshold: c.Config.Breaker.FailureThreshold,
			SuccessThreshold: c.Config.Breaker.SuccessThreshold,
			RetryTimeout:     c.Config.Breaker.RetryTimeout,
		}, c.Logger)
		broadcaster = pubsub.WithCircuitBreaker(broadcaster, cb)
	}

	c.Broadcaster = broadcaster
	return nil
}

func (c *Container) addCloser(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return stderrors.Join(errs...)
}
