package service

import (
	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/events"
	"restaurant-billing/internal/microservices/kitchen/repository"
)

type Service struct {
	KitchenService KitchenServiceInterface
}

func New(db repository.KitchenRepositoryInterface, source ticketSource, pub events.Publisher, lg *logger.Logger, o Options) *Service {
	return &Service{
		KitchenService: NewKitchenService(db, source, pub, lg, o),
	}
}
