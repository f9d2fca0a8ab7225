package reporting

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"restaurant-billing/internal/common/config"
	"restaurant-billing/internal/common/db"
	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/microservices/reporting/handler"
	"restaurant-billing/internal/microservices/reporting/repository"
	"restaurant-billing/internal/microservices/reporting/service"
)

// Start consumes the settlement topic and serves the report API until ctx is
// done.
func Start(ctx context.Context, cfg config.App, lg *logger.Logger) (err error) {
	if !cfg.Kafka.Enabled() {
		return errors.New("reporting-service needs kafka.brokers")
	}
	conn, err := db.Connect(ctx, cfg.Database, lg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer conn.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		GroupID:  cfg.Kafka.ConsumerGroup,
		Topic:    cfg.Kafka.SettlementTopic,
		MinBytes: cfg.Kafka.MinReadBytes,
		MaxBytes: cfg.Kafka.MaxReadBytes,
	})
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("close kafka reader: %w", cerr)).ErrorOrNil()
		}
	}()

	svc := service.NewService(repository.NewReportingRepo(conn.Pool), lg)
	consumer := service.NewConsumer(reader, svc.Reporting, lg)
	srv := httpx.New(cfg.HTTP.ReportingPort, handler.Router(handler.New(svc.Reporting)))

	lg.Info("reporting_service_started", map[string]any{
		"port": cfg.HTTP.ReportingPort, "topic": cfg.Kafka.SettlementTopic, "group": cfg.Kafka.ConsumerGroup,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}
