package service

import "restaurant-billing/internal/common/logger"

type Service struct {
	NotificatorService *NotificatorService
}

func New(source eventSource, lg *logger.Logger) *Service {
	return &Service{NotificatorService: NewNotificatorService(source, lg)}
}
