package notificator

import (
	"context"
	"fmt"

	"restaurant-billing/internal/common/config"
	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/common/mq"
	"restaurant-billing/internal/microservices/notificator/service"
)

func Start(ctx context.Context, cfg config.App, lg *logger.Logger) error {
	client, err := mq.Dial(cfg.Rabbit)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer client.Close()
	if err := client.DeclareAll(); err != nil {
		return fmt.Errorf("rabbitmq topology: %w", err)
	}
	return service.New(client, lg).NotificatorService.Notify(ctx)
}
