package service

import (
	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/microservices/reporting/repository"
)

type Service struct {
	Reporting ReportingServiceInterface
}

func NewService(repo repository.ReportingRepoInterface, lg *logger.Logger) *Service {
	return &Service{Reporting: NewReportingService(repo, lg)}
}
