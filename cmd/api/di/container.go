package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"clean-user-service/cmd/api/infrastructure"
	"clean-user-service/internal/adapter/cache"
	"clean-user-service/internal/adapter/db/postgres"
	ginhandler "clean-user-service/internal/adapter/gin/handler"
	grpcadapter "clean-user-service/internal/adapter/grpc"
	"clean-user-service/internal/adapter/ratelimit"
	"clean-user-service/internal/adapter/repository/cached"
	"clean-user-service/internal/config"
	"clean-user-service/internal/usecase/user"
	"clean-user-service/migrations"
	"clean-user-service/pkg/metrics"
	redisclient "clean-user-service/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	RedisClient *redisclient.Client // nil when Redis is disabled
	Metrics     *metrics.Metrics
	UserUC      user.Usecase
	HTTPLimiter ratelimit.Limiter // nil when rate limiting is disabled
	GRPCLimiter ratelimit.Limiter // nil when rate limiting is disabled
	GinHandler  *ginhandler.UserHandler
	GRPCService *grpcadapter.UserService
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	db, err := infrastructure.NewDatabase(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c := &Container{Config: cfg, Logger: l, DB: db, Metrics: metrics.New()}

	if cfg.DB.AutoMigrate {
		sqlDB, err := db.DB()
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		if err := migrations.Up(ctx, sqlDB, "postgres", l); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	var repo user.Repository = postgres.NewUserRepoPG(db, l)

	if cfg.Redis.Enabled {
		rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		c.RedisClient = rdb

		userCache := cache.NewRedisUserCache(rdb.Client, time.Duration(cfg.Redis.CacheTTL)*time.Second, l)
		repo = cached.NewUserRepository(repo, userCache, l)

		if cfg.RateLimit.Enabled {
			limits := ratelimit.Config{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				BurstCapacity:     cfg.RateLimit.BurstCapacity,
				WindowSeconds:     cfg.RateLimit.WindowSeconds,
			}
			c.HTTPLimiter = ratelimit.NewTokenBucket(rdb.Client, limits)
			c.GRPCLimiter = ratelimit.NewFixedWindow(rdb.Client, limits)
		}
	}

	c.UserUC = user.New(repo, c.Metrics, l)
	c.GinHandler = ginhandler.NewUserHandler(c.UserUC, l)
	c.GRPCService = grpcadapter.NewUserService(c.UserUC, l)

	return c, nil
}

// PingDatabase reports whether the database answers a ping.
func (c *Container) PingDatabase(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes all resources held by the container, in reverse order of creation.
func (c *Container) Close() error {
	var errs []error

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
