package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type DB struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
	Name string `yaml:"database"`
	// SSLMode is passed through to the DSN; "disable" by default.
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Pass, d.Host, d.Port, d.Name, d.SSLMode)
}

type MQ struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"password"`
	VHost  string `yaml:"vhost"`
	UseTLS bool   `yaml:"tls"`
}

type Kafka struct {
	Brokers         []string `yaml:"brokers"`
	SettlementTopic string   `yaml:"settlement_topic"`
	ConsumerGroup   string   `yaml:"consumer_group"`
	MinReadBytes    int      `yaml:"min_read_bytes"`
	MaxReadBytes    int      `yaml:"max_read_bytes"`
}

func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

type HTTP struct {
	TabPort       int `yaml:"tab_port"`
	ReportingPort int `yaml:"reporting_port"`
}

type Ledger struct {
	// Driver is "postgres" or "memory".
	Driver string `yaml:"driver"`
}

type Billing struct {
	TipRate         string   `yaml:"tip_rate"`
	PrivilegedRoles []string `yaml:"privileged_roles"`
}

func (b Billing) TipRateDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(b.TipRate)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type Kitchen struct {
	PrepSeconds       int `yaml:"prep_seconds"`
	Prefetch          int `yaml:"prefetch"`
	HeartbeatInterval int `yaml:"heartbeat_interval"`
}

type Identity struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Logging struct {
	Level string `yaml:"level"`
	// File enables rotation through lumberjack; stdout when empty.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type App struct {
	Database DB       `yaml:"database"`
	Rabbit   MQ       `yaml:"rabbitmq"`
	Kafka    Kafka    `yaml:"kafka"`
	HTTP     HTTP     `yaml:"http"`
	Ledger   Ledger   `yaml:"ledger"`
	Billing  Billing  `yaml:"billing"`
	Kitchen  Kitchen  `yaml:"kitchen"`
	Identity Identity `yaml:"identity"`
	Logging  Logging  `yaml:"logging"`
}

func Default() App {
	return App{
		Database: DB{Host: "localhost", Port: 5432, User: "restaurant", Name: "restaurant", SSLMode: "disable", MaxConns: 10},
		Rabbit:   MQ{Host: "localhost", Port: 5672, User: "guest", Pass: "guest", VHost: "/"},
		Kafka:    Kafka{SettlementTopic: "settlements", ConsumerGroup: "reporting-service", MinReadBytes: 1, MaxReadBytes: 10e6},
		HTTP:     HTTP{TabPort: 3000, ReportingPort: 3002},
		Ledger:   Ledger{Driver: "postgres"},
		Billing:  Billing{TipRate: "0.10", PrivilegedRoles: []string{"manager", "owner"}},
		Kitchen:  Kitchen{PrepSeconds: 8, Prefetch: 1, HeartbeatInterval: 30},
		Identity: Identity{TimeoutSeconds: 3},
		Logging:  Logging{Level: "info", MaxSizeMB: 32, MaxBackups: 2},
	}
}

// Load reads the YAML file over Default() and applies env overrides.
func Load(path string) (App, error) {
	a := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("parse %s: %w", path, err)
	}
	a.applyEnv()
	if err := a.Validate(); err != nil {
		return App{}, err
	}
	return a, nil
}

func (a *App) applyEnv() {
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		a.Database.Pass = v
	}
	if v := os.Getenv("RABBITMQ_PASSWORD"); v != "" {
		a.Rabbit.Pass = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		a.Kafka.Brokers = strings.Split(v, ",")
	}
}

func (a App) Validate() error {
	var errs *multierror.Error
	if a.Ledger.Driver != "postgres" && a.Ledger.Driver != "memory" {
		errs = multierror.Append(errs, fmt.Errorf("ledger.driver must be postgres or memory, got %q", a.Ledger.Driver))
	}
	if a.Ledger.Driver == "postgres" && a.Database.Host == "" {
		errs = multierror.Append(errs, errors.New("database.host is required"))
	}
	if a.Rabbit.Host == "" && a.Ledger.Driver == "postgres" {
		errs = multierror.Append(errs, errors.New("rabbitmq.host is required with the postgres ledger"))
	}
	rate, err := decimal.NewFromString(a.Billing.TipRate)
	switch {
	case err != nil:
		errs = multierror.Append(errs, fmt.Errorf("billing.tip_rate: %w", err))
	case rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)):
		errs = multierror.Append(errs, fmt.Errorf("billing.tip_rate must be within [0,1], got %s", rate))
	}
	if len(a.Billing.PrivilegedRoles) == 0 {
		errs = multierror.Append(errs, errors.New("billing.privileged_roles must not be empty"))
	}
	if a.Kitchen.PrepSeconds < 0 {
		errs = multierror.Append(errs, errors.New("kitchen.prep_seconds must be >= 0"))
	}
	if a.Kafka.MinReadBytes > a.Kafka.MaxReadBytes {
		errs = multierror.Append(errs, errors.New("kafka.min_read_bytes must be <= kafka.max_read_bytes"))
	}
	return errs.ErrorOrNil()
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
