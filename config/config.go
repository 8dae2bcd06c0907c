package config

import (
	// Go Internal Packages
	"fmt"
	"time"

	// Local Packages
	errors "nfc-bank/errors"
)

var DefaultConfig = []byte(`
application: "nfc-bank"

logger:
  level: "info"

is_prod_mode: false

transport:
  kind: "kafka"

kafka:
  brokers:
    - "localhost:9092"
  scan_topic: "nfc.scans"
  write_topic: "nfc.writes"
  consumer_name: "nfc-bank"
  records_per_poll: 100

nats:
  url: "nats://localhost:4222"
  token: ""
  scan_subject: "nfc.scans"
  write_subject: "nfc.writes"
  errors_subject: "nfc.errors"
  write_timeout: "5s"

ledger:
  backend: "memory"
  # Off records only writes; on also records every registered card read.
  record_reads: false
  replay_batch: 100

mongo:
  uri: "mongodb://localhost:27017"
  database: "nfc_bank"
  collection: "ledger"

sqlite:
  path: "data/ledger.db"

redis:
  enabled: false
  uri: "localhost:6379"
  password: ""
  db: 0
  dlq_key: "nfc-bank:ledger-dlq"
  holders_key: "nfc-bank:holders"

directory:
  backend: "static"
  file: ""

engine:
  write_retry:
    # Total write attempts per cycle, 0 for no limit.
    max_attempts: 0
    min_interval: "50ms"
    max_interval: "2s"

api:
  addr: ":8080"
  allowed_origins:
    - "http://localhost:5173"
  rate_limit: 120
  notifications: 50
`)

type Config struct {
	Application string    `koanf:"application"`
	Logger      Logger    `koanf:"logger"`
	IsProdMode  bool      `koanf:"is_prod_mode"`
	Transport   Transport `koanf:"transport"`
	Kafka       Kafka     `koanf:"kafka"`
	Nats        Nats      `koanf:"nats"`
	Ledger      Ledger    `koanf:"ledger"`
	Mongo       Mongo     `koanf:"mongo"`
	SQLite      SQLite    `koanf:"sqlite"`
	Redis       Redis     `koanf:"redis"`
	Directory   Directory `koanf:"directory"`
	Engine      Engine    `koanf:"engine"`
	API         API       `koanf:"api"`
}

type Logger struct {
	Level string `koanf:"level"`
}

type Transport struct {
	Kind string `koanf:"kind"`
}

type Kafka struct {
	Brokers        []string `koanf:"brokers"`
	ScanTopic      string   `koanf:"scan_topic"`
	WriteTopic     string   `koanf:"write_topic"`
	ConsumerName   string   `koanf:"consumer_name"`
	RecordsPerPoll int      `koanf:"records_per_poll"`
}

type Nats struct {
	URL           string        `koanf:"url"`
	Token         string        `koanf:"token"`
	ScanSubject   string        `koanf:"scan_subject"`
	WriteSubject  string        `koanf:"write_subject"`
	ErrorsSubject string        `koanf:"errors_subject"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
}

type Ledger struct {
	Backend     string `koanf:"backend"`
	RecordReads bool   `koanf:"record_reads"`
	ReplayBatch int    `koanf:"replay_batch"`
}

type Mongo struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

type SQLite struct {
	Path string `koanf:"path"`
}

type Redis struct {
	Enabled    bool   `koanf:"enabled"`
	URI        string `koanf:"uri"`
	Password   string `koanf:"password"`
	DB         int    `koanf:"db"`
	DLQKey     string `koanf:"dlq_key"`
	HoldersKey string `koanf:"holders_key"`
}

type Directory struct {
	Backend string `koanf:"backend"`
	File    string `koanf:"file"`
}

type Engine struct {
	WriteRetry WriteRetry `koanf:"write_retry"`
}

type WriteRetry struct {
	MaxAttempts int           `koanf:"max_attempts"`
	MinInterval time.Duration `koanf:"min_interval"`
	MaxInterval time.Duration `koanf:"max_interval"`
}

type API struct {
	Addr           string   `koanf:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	RateLimit      int      `koanf:"rate_limit"`
	Notifications  int      `koanf:"notifications"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	ve := errors.ValidationErrs()

	if c.Application == "" {
		ve.Add("application", "cannot be empty")
	}
	if c.Logger.Level == "" {
		ve.Add("logger.level", "cannot be empty")
	}

	switch c.Transport.Kind {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			ve.Add("kafka.brokers", "cannot be empty")
		}
		if c.Kafka.ScanTopic == "" {
			ve.Add("kafka.scan_topic", "cannot be empty")
		}
		if c.Kafka.WriteTopic == "" {
			ve.Add("kafka.write_topic", "cannot be empty")
		}
		if c.Kafka.ConsumerName == "" {
			ve.Add("kafka.consumer_name", "cannot be empty")
		}
		if c.Kafka.RecordsPerPoll <= 0 {
			ve.Add("kafka.records_per_poll", "must be positive")
		}
	case "nats":
		if c.Nats.URL == "" {
			ve.Add("nats.url", "cannot be empty")
		}
		if c.Nats.ScanSubject == "" {
			ve.Add("nats.scan_subject", "cannot be empty")
		}
		if c.Nats.WriteSubject == "" {
			ve.Add("nats.write_subject", "cannot be empty")
		}
	default:
		ve.Add("transport.kind", fmt.Sprintf("must be kafka or nats, got %q", c.Transport.Kind))
	}

	switch c.Ledger.Backend {
	case "memory":
	case "mongo":
		if c.Mongo.URI == "" {
			ve.Add("mongo.uri", "cannot be empty")
		}
		if c.Mongo.Database == "" {
			ve.Add("mongo.database", "cannot be empty")
		}
		if c.Mongo.Collection == "" {
			ve.Add("mongo.collection", "cannot be empty")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			ve.Add("sqlite.path", "cannot be empty")
		}
	default:
		ve.Add("ledger.backend", fmt.Sprintf("must be memory, mongo or sqlite, got %q", c.Ledger.Backend))
	}
	if c.Ledger.ReplayBatch <= 0 {
		ve.Add("ledger.replay_batch", "must be positive")
	}

	switch c.Directory.Backend {
	case "static":
	case "redis":
		if !c.Redis.Enabled {
			ve.Add("directory.backend", "redis requires redis.enabled")
		}
	default:
		ve.Add("directory.backend", fmt.Sprintf("must be static or redis, got %q", c.Directory.Backend))
	}

	if c.Redis.Enabled {
		if c.Redis.URI == "" {
			ve.Add("redis.uri", "cannot be empty")
		}
		if c.Redis.DLQKey == "" {
			ve.Add("redis.dlq_key", "cannot be empty")
		}
		if c.Directory.Backend == "redis" && c.Redis.HoldersKey == "" {
			ve.Add("redis.holders_key", "cannot be empty")
		}
	}

	retry := c.Engine.WriteRetry
	if retry.MaxAttempts < 0 {
		ve.Add("engine.write_retry.max_attempts", "cannot be negative")
	}
	if retry.MinInterval < 0 || retry.MaxInterval < 0 {
		ve.Add("engine.write_retry", "intervals cannot be negative")
	}
	if retry.MaxInterval > 0 && retry.MaxInterval < retry.MinInterval {
		ve.Add("engine.write_retry.max_interval", "cannot be below min_interval")
	}

	if c.API.Addr == "" {
		ve.Add("api.addr", "cannot be empty")
	}
	if c.API.RateLimit < 0 {
		ve.Add("api.rate_limit", "cannot be negative")
	}

	return ve.Err()
}
