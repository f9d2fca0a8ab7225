package tab

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"restaurant-billing/internal/billing"
	"restaurant-billing/internal/common/config"
	"restaurant-billing/internal/common/db"
	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/common/identity"
	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/common/mq"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/events"
	"restaurant-billing/internal/ledger"
	"restaurant-billing/internal/ledger/memory"
	"restaurant-billing/internal/ledger/postgres"
	"restaurant-billing/internal/microservices/tab/handlers"
	"restaurant-billing/internal/microservices/tab/service"
)

type ledgerBackend interface {
	ledger.Store
	ledger.Catalog
}

// Run serves the tab API until ctx is done.
func Run(ctx context.Context, cfg config.App, lg *logger.Logger) (err error) {
	var closers []func() error
	defer func() {
		var result *multierror.Error
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		if result != nil {
			lg.Error("tab_service_shutdown", result, nil)
		}
	}()

	var backend ledgerBackend
	switch cfg.Ledger.Driver {
	case "memory":
		mem, err := memory.New()
		if err != nil {
			return err
		}
		backend = mem
		lg.Warn("ledger_in_memory", map[string]any{"detail": "state is lost on restart"})
	default:
		conn, err := db.Connect(ctx, cfg.Database, lg)
		if err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
		closers = append(closers, func() error { conn.Close(); return nil })
		backend = postgres.New(conn.Pool)
	}

	deps := service.Deps{
		Store:      backend,
		Catalog:    backend,
		Calculator: billing.NewCalculator(cfg.Billing.TipRateDecimal()),
		Privileged: privilegedRoles(cfg.Billing.PrivilegedRoles, lg),
		Log:        lg,
	}

	var sinks events.Fanout
	if cfg.Rabbit.Host != "" {
		client, err := mq.Dial(cfg.Rabbit)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		closers = append(closers, func() error { client.Close(); return nil })
		if err := client.DeclareAll(); err != nil {
			return fmt.Errorf("rabbitmq topology: %w", err)
		}
		sinks = append(sinks, events.NewNotifier(client, "tab-service"))
		deps.Kitchen = events.NewKitchenDispatcher(client)
		lg.Info("rabbitmq_connected", map[string]any{"host": cfg.Rabbit.Host})
	}
	if cfg.Kafka.Enabled() {
		stream := events.NewSettlementStream(cfg.Kafka.Brokers, cfg.Kafka.SettlementTopic)
		closers = append(closers, stream.Close)
		sinks = append(sinks, stream)
	}
	if len(sinks) > 0 {
		deps.Events = sinks
	}
	if cfg.Identity.URL != "" {
		deps.Identity = identity.New(cfg.Identity)
	}

	svc := service.New(deps)
	h := handlers.New(svc, backend, lg)

	lg.Info("tab_service_started", map[string]any{
		"port": cfg.HTTP.TabPort, "ledger": cfg.Ledger.Driver, "privileged": deps.Privileged,
	})
	return httpx.New(cfg.HTTP.TabPort, h.Router()).Run(ctx)
}

func privilegedRoles(names []string, lg *logger.Logger) []domain.Role {
	var out []domain.Role
	for _, n := range names {
		r, ok := domain.ParseRole(n)
		if !ok {
			lg.Warn("unknown_privileged_role", map[string]any{"role": n})
			continue
		}
		out = append(out, r)
	}
	return out
}
