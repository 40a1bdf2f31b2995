// Package config loads the server configuration from YAML.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		GRPCAddr    string `yaml:"grpc_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	Engine struct {
		// SlabCapacity is the number of order slots on each side of a book.
		SlabCapacity       int `yaml:"slab_capacity"`
		EventQueueCapacity int `yaml:"event_queue_capacity"`
	} `yaml:"engine"`

	Storage struct {
		StateDir           string        `yaml:"state_dir"`
		EntryWALDir        string        `yaml:"entry_wal_dir"`
		ExitWALDir         string        `yaml:"exit_wal_dir"`
		SegmentSize        int64         `yaml:"segment_size"`
		CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
	} `yaml:"storage"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
		// Client is "sarama" or "kafka-go".
		Client          string        `yaml:"client"`
		PublishInterval time.Duration `yaml:"publish_interval"`
		BatchSize       int           `yaml:"batch_size"`
	} `yaml:"kafka"`

	Logging struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"logging"`

	// Markets are opened at start-up unless they already exist.
	Markets []Market `yaml:"markets"`
}

type Market struct {
	Name        string `yaml:"name"`
	TickSize    uint64 `yaml:"tick_size"`
	MinBaseSize uint64 `yaml:"min_base_size"`
	FeeBudget   uint64 `yaml:"fee_budget"`
}

// Default returns a configuration suitable for a single local node.
func Default() *Config {
	var c Config
	c.Server.GRPCAddr = ":50051"
	c.Server.MetricsAddr = ":9100"
	c.Engine.SlabCapacity = 1 << 12
	c.Engine.EventQueueCapacity = 256
	c.Storage.StateDir = "./data/state"
	c.Storage.EntryWALDir = "./data/wal_entry"
	c.Storage.ExitWALDir = "./data/wal_exit"
	c.Storage.SegmentSize = 2 << 20
	c.Storage.CheckpointInterval = 30 * time.Second
	c.Kafka.Brokers = []string{"localhost:9092"}
	c.Kafka.Topic = "aaob.events"
	c.Kafka.Client = "sarama"
	c.Kafka.PublishInterval = 250 * time.Millisecond
	c.Kafka.BatchSize = 512
	c.Logging.Level = "info"
	return &c
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Engine.SlabCapacity <= 0 || c.Engine.SlabCapacity > 1<<24 {
		return errors.Newf("slab_capacity %d out of range", c.Engine.SlabCapacity)
	}
	if c.Engine.EventQueueCapacity <= 0 {
		return errors.New("event_queue_capacity must be positive")
	}
	if c.Storage.SegmentSize <= 0 {
		return errors.New("segment_size must be positive")
	}
	if c.Storage.CheckpointInterval <= 0 {
		return errors.New("checkpoint_interval must be positive")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return errors.New("kafka requires brokers and a topic")
		}
		if c.Kafka.Client != "sarama" && c.Kafka.Client != "kafka-go" {
			return errors.Newf("unknown kafka client %q", c.Kafka.Client)
		}
		if c.Kafka.PublishInterval <= 0 || c.Kafka.BatchSize <= 0 {
			return errors.New("kafka publish_interval and batch_size must be positive")
		}
	}

	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if m.Name == "" || m.TickSize == 0 {
			return errors.Newf("market %q needs a name and a tick size", m.Name)
		}
		if seen[m.Name] {
			return errors.Newf("market %q listed twice", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}
