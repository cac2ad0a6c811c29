package cli

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/authorization-service/internal/command"
	"github.com/eaglebank/authorization-service/internal/config"
	"github.com/eaglebank/authorization-service/internal/db"
	"github.com/eaglebank/authorization-service/internal/handler"
	"github.com/eaglebank/authorization-service/internal/query"
	"github.com/eaglebank/authorization-service/internal/repository"
	"github.com/eaglebank/authorization-service/shared/events"
	"github.com/eaglebank/authorization-service/shared/middleware"
	sharedredis "github.com/eaglebank/authorization-service/shared/redis"
)

// app is the wired service: stores, optional Redis, and the CQRS components
// on top of them.
type app struct {
	stores    *db.Stores
	redis     *sharedredis.Client
	writeRepo *repository.UserWriteRepository
	readRepo  *repository.UserReadRepository
	commands  *command.AuthorizationCommandService
	queries   *query.PermissionQueryService
}

// openStores opens the configured SQL store and brings its schema up to date.
func openStores(cfg *config.Config, logger *slog.Logger) (*db.Stores, error) {
	stores, err := db.Open(cfg.StoreDriver, cfg.StoreSource())
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(stores.Write, cfg.StoreDriver); err != nil {
		_ = stores.Close()
		return nil, err
	}
	logger.Info("store ready", "driver", cfg.StoreDriver)
	return stores, nil
}

// openRedis connects to Redis when configured. A nil client disables the
// view cache and the event stream.
func openRedis(cfg *config.Config, logger *slog.Logger) (*sharedredis.Client, error) {
	if !cfg.RedisEnabled() {
		logger.Info("redis disabled; view cache and events are off")
		return nil, nil
	}
	client, err := sharedredis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return client, nil
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	stores, err := openStores(cfg, logger)
	if err != nil {
		return nil, err
	}
	rdb, err := openRedis(cfg, logger)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	writeRepo := repository.NewUserWriteRepository(stores.Write)
	readRepo := repository.NewUserReadRepository(stores.Read, rdb.Raw())
	publisher := events.NewPublisher(rdb.Raw())

	return &app{
		stores:    stores,
		redis:     rdb,
		writeRepo: writeRepo,
		readRepo:  readRepo,
		commands:  command.NewAuthorizationCommandService(writeRepo, readRepo, publisher, cfg.GrantMaxAttempts, logger),
		queries:   query.NewPermissionQueryService(readRepo, logger),
	}, nil
}

func (a *app) Close() error {
	rerr := a.redis.Close()
	if err := a.stores.Close(); err != nil {
		return err
	}
	return rerr
}

// router builds the HTTP surface: the versioned authorization API and a
// health probe.
func (a *app) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware())

	router.GET("/health", a.health)

	authzHandler := handler.NewAuthorizationHandler(a.commands, a.queries)
	authzHandler.RegisterRoutes(router.Group("/v1"))
	return router
}

func (a *app) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok", "store": "ok"}

	if err := a.stores.Write.PingContext(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["store"] = err.Error()
	}
	if rdb := a.redis.Raw(); rdb != nil {
		body["redis"] = "ok"
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			// The cache is optional, so a Redis outage does not fail the probe.
			body["redis"] = err.Error()
		}
	}
	c.JSON(status, body)
}
