package kitchen

import (
	"context"
	"fmt"
	"time"

	"restaurant-billing/internal/common/config"
	"restaurant-billing/internal/common/db"
	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/common/mq"
	"restaurant-billing/internal/events"
	"restaurant-billing/internal/microservices/kitchen/repository"
	"restaurant-billing/internal/microservices/kitchen/service"
)

// Run consumes kitchen tickets as workerName until ctx is done.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger, workerName string) error {
	conn, err := db.Connect(ctx, cfg.Database, lg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer conn.Close()

	client, err := mq.Dial(cfg.Rabbit)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer client.Close()
	if err := client.DeclareAll(); err != nil {
		return fmt.Errorf("rabbitmq topology: %w", err)
	}

	svc := service.New(
		repository.NewKitchenRepository(conn.Pool),
		client,
		events.NewNotifier(client, "kitchen-worker"),
		lg,
		service.Options{
			WorkerName:        workerName,
			Prefetch:          cfg.Kitchen.Prefetch,
			HeartbeatInterval: time.Duration(cfg.Kitchen.HeartbeatInterval) * time.Second,
			PrepTime:          time.Duration(cfg.Kitchen.PrepSeconds) * time.Second,
		},
	)
	return svc.KitchenService.Run(ctx)
}
