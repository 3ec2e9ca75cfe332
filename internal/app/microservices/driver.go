package microservices

import (
	"context"
	"fmt"

	"github.com/adilzhan-b/ride-dispatch/config"
	"github.com/adilzhan-b/ride-dispatch/internal/adapter/http/server"
	repo "github.com/adilzhan-b/ride-dispatch/internal/adapter/postgres"
	mq "github.com/adilzhan-b/ride-dispatch/internal/adapter/rabbit"
	redisadapter "github.com/adilzhan-b/ride-dispatch/internal/adapter/redis"
	"github.com/adilzhan-b/ride-dispatch/internal/domain/types"
	"github.com/adilzhan-b/ride-dispatch/internal/service/driver"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	"github.com/adilzhan-b/ride-dispatch/pkg/postgres"
	"github.com/adilzhan-b/ride-dispatch/pkg/rabbit"
	"github.com/adilzhan-b/ride-dispatch/pkg/redisclient"
	"github.com/adilzhan-b/ride-dispatch/pkg/wshub"
	"github.com/redis/go-redis/v9"
)

const pendingListLimit = 50

// DriverService hosts driver presence, the accept/start/complete lifecycle
// endpoints and the consumers keeping driver-side visibility in step.
type DriverService struct {
	cfg config.Config
	log logger.Logger

	db       *postgres.PostgreDB
	rdb      *redis.Client
	rabbitMQ *rabbit.RabbitMQ
	hub      *wshub.ConnectionHub

	api      *server.API
	consumer *mq.Consumer
	presence *driver.PresenceService
}

func NewDriver(ctx context.Context, cfg config.Config, log logger.Logger) (*DriverService, error) {
	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := repo.Migrate(ctx, db.Pool); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	rabbitMQ, err := rabbit.New(ctx, cfg.RabbitMQ.GetDSN(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	rideRepo := repo.NewRideRepo(db.Pool)
	registry := redisadapter.NewPresenceRegistry(rdb)
	assignments := redisadapter.NewAssignmentCache(rdb, cfg.Redis.AssignmentTTL)
	hub := wshub.NewConnHub(log)

	broker := mq.NewDispatchBroker(rabbitMQ, string(types.DriverService),
		cfg.Dispatch.PublishRetries, cfg.Dispatch.PublishBackoff, log)
	consumer := mq.NewConsumer(rabbitMQ, string(types.DriverService),
		cfg.RabbitMQ.MaxDeliveryAttempts, log)

	gateway := driver.NewGateway(rideRepo, assignments, broker, log)
	presence := driver.NewPresenceService(registry, assignments, rideRepo, hub, pendingListLimit, log)

	api, err := server.New(cfg, nil, gateway, presence, hub, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build http server: %w", err)
	}

	return &DriverService{
		cfg:      cfg,
		log:      log,
		db:       db,
		rdb:      rdb,
		rabbitMQ: rabbitMQ,
		hub:      hub,
		api:      api,
		consumer: consumer,
		presence: presence,
	}, nil
}

func (s *DriverService) Start(ctx context.Context) error {
	errCh := make(chan error, 3)

	s.api.Run(ctx, errCh)

	go func() {
		if err := s.consumer.ConsumeDriverAssigned(ctx, s.presence.HandleDriverAssigned); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("driver_assignments consumer stopped: %w", err)
		}
	}()
	go func() {
		if err := s.consumer.ConsumeRideCancelled(ctx, s.presence.HandleRideCancelled); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("ride_cancelled consumer stopped: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	s.shutdown()
	return runErr
}

func (s *DriverService) shutdown() {
	ctx := context.Background()

	s.hub.Close()

	if err := s.api.Stop(ctx); err != nil {
		s.log.Error(ctx, "failed to stop http server", err)
	}
	if err := s.rabbitMQ.Close(ctx); err != nil {
		s.log.Error(ctx, "failed to close rabbitmq", err)
	}
	if err := s.rdb.Close(); err != nil {
		s.log.Error(ctx, "failed to close redis", err)
	}
	s.db.Pool.Close()

	s.log.Info(ctx, "driver service stopped")
}
