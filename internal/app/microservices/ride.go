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
	"github.com/adilzhan-b/ride-dispatch/internal/service/dispatch"
	"github.com/adilzhan-b/ride-dispatch/internal/service/ride"
	"github.com/adilzhan-b/ride-dispatch/pkg/logger"
	"github.com/adilzhan-b/ride-dispatch/pkg/postgres"
	"github.com/adilzhan-b/ride-dispatch/pkg/rabbit"
	"github.com/adilzhan-b/ride-dispatch/pkg/redisclient"
	"github.com/adilzhan-b/ride-dispatch/pkg/trm"
	"github.com/redis/go-redis/v9"
)

// RideService hosts ride intake, the ledger reads and the dispatch
// coordinator consuming ride_requests.
type RideService struct {
	cfg config.Config
	log logger.Logger

	db       *postgres.PostgreDB
	rdb      *redis.Client
	rabbitMQ *rabbit.RabbitMQ

	api         *server.API
	consumer    *mq.Consumer
	coordinator *dispatch.Coordinator
}

func NewRide(ctx context.Context, cfg config.Config, log logger.Logger) (*RideService, error) {
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
	presence := redisadapter.NewPresenceRegistry(rdb)
	assignments := redisadapter.NewAssignmentCache(rdb, cfg.Redis.AssignmentTTL)

	broker := mq.NewDispatchBroker(rabbitMQ, string(types.RideService),
		cfg.Dispatch.PublishRetries, cfg.Dispatch.PublishBackoff, log)
	consumer := mq.NewConsumer(rabbitMQ, string(types.RideService),
		cfg.RabbitMQ.MaxDeliveryAttempts, log)

	policyName, err := cfg.Dispatch.PolicyName()
	if err != nil {
		return nil, err
	}

	var policy dispatch.SelectionPolicy
	switch policyName {
	case types.PolicyBroadcast:
		policy = dispatch.NewBroadcastPolicy(log)
	default:
		policy = dispatch.NewDirectPickPolicy(rideRepo, presence, assignments, broker,
			cfg.Dispatch.PublishRetries, cfg.Dispatch.PublishBackoff, log)
	}

	coordinator := dispatch.NewCoordinator(rideRepo, policy, log)
	rideService := ride.NewRideService(rideRepo, broker, trm.New(db.Pool), log)

	api, err := server.New(cfg, rideService, nil, nil, nil, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build http server: %w", err)
	}

	return &RideService{
		cfg:         cfg,
		log:         log,
		db:          db,
		rdb:         rdb,
		rabbitMQ:    rabbitMQ,
		api:         api,
		consumer:    consumer,
		coordinator: coordinator,
	}, nil
}

func (s *RideService) Start(ctx context.Context) error {
	errCh := make(chan error, 2)

	s.api.Run(ctx, errCh)

	go func() {
		if err := s.consumer.ConsumeRideRequested(ctx, s.coordinator.HandleRideRequested); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("ride_requests consumer stopped: %w", err)
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

func (s *RideService) shutdown() {
	ctx := context.Background()

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

	s.log.Info(ctx, "ride service stopped")
}
