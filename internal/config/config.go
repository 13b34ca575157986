package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Ingestion modes. Exactly one is active per run.
const (
	ModeLive      = "live"
	ModeReplay    = "replay"
	ModeSynthetic = "synthetic"
)

// LiveConfig selects the capture interface for live mode.
type LiveConfig struct {
	Interface   string `yaml:"interface"`
	Engine      string `yaml:"engine"` // "pcap" or "afpacket"
	SnapLen     int    `yaml:"snaplen"`
	Promiscuous bool   `yaml:"promiscuous"`
	BPFFilter   string `yaml:"bpf_filter"`
	ReadTimeout string `yaml:"read_timeout"`
}

// ReplayConfig points at a recorded trace (file or directory).
type ReplayConfig struct {
	Path string `yaml:"path"`
	// Pacing multiplies the recorded gaps; 0 replays as fast as possible.
	// Unset means 1, the recorded spacing.
	Pacing *float64 `yaml:"pacing"`
}

// SyntheticConfig drives the synthetic traffic generator.
type SyntheticConfig struct {
	AttackProbability float64 `yaml:"attack_probability"`
	Interval          string  `yaml:"interval"`
	Jitter            float64 `yaml:"jitter"`
	Seed              int64   `yaml:"seed"`
	Limit             int     `yaml:"limit"`
}

// IngestionConfig holds the settings of every source; Mode picks one.
type IngestionConfig struct {
	Mode      string          `yaml:"mode"`
	Live      LiveConfig      `yaml:"live"`
	Replay    ReplayConfig    `yaml:"replay"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
}

// ModelConfig locates the trained artifacts.
type ModelConfig struct {
	ClassifierPath string  `yaml:"classifier_path"`
	EncoderPath    string  `yaml:"encoder_path"`
	Threshold      float64 `yaml:"threshold"`
}

// PublisherConfig locates the two durable artifacts read by the dashboard.
type PublisherConfig struct {
	AlertsPath string `yaml:"alerts_path"`
	StatsPath  string `yaml:"stats_path"`
	Fsync      bool   `yaml:"fsync"`
	FlushEvery int    `yaml:"flush_every"`
	// LogEvery is the number of events between progress lines; a negative
	// value disables them.
	LogEvery int `yaml:"log_every"`
}

// NATSConfig configures the NATS alert sink.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SQLiteConfig configures the SQLite alert sink.
type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SinksConfig groups the optional alert mirrors.
type SinksConfig struct {
	NATS       NATSConfig       `yaml:"nats"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
}

// AlerterRule defines a single threshold rule evaluated against the stats.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig configures the periodic rule evaluation.
type AlerterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval string        `yaml:"check_interval"`
	Rules         []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the settings for the e-mail notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// HealthConfig configures the gRPC health endpoint.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// APIConfig configures nids-api.
type APIConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	AlertsLimit int    `yaml:"alerts_limit"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Ingestion IngestionConfig `yaml:"ingestion"`
	Model     ModelConfig     `yaml:"model"`
	Publisher PublisherConfig `yaml:"publisher"`
	Sinks     SinksConfig     `yaml:"sinks"`
	Alerter   AlerterConfig   `yaml:"alerter"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Health    HealthConfig    `yaml:"health"`
	API       APIConfig       `yaml:"api"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	if c.Ingestion.Mode == "" {
		c.Ingestion.Mode = ModeSynthetic
	}
	if c.Ingestion.Live.Engine == "" {
		c.Ingestion.Live.Engine = "pcap"
	}
	if c.Ingestion.Live.SnapLen <= 0 {
		c.Ingestion.Live.SnapLen = 1600
	}
	if c.Ingestion.Live.BPFFilter == "" {
		c.Ingestion.Live.BPFFilter = "ip or ip6"
	}
	if c.Ingestion.Live.ReadTimeout == "" {
		c.Ingestion.Live.ReadTimeout = "250ms"
	}
	if c.Ingestion.Replay.Pacing == nil {
		pacing := 1.0
		c.Ingestion.Replay.Pacing = &pacing
	}
	if c.Ingestion.Synthetic.Interval == "" {
		c.Ingestion.Synthetic.Interval = "1s"
	}
	if c.Model.Threshold == 0 {
		c.Model.Threshold = 0.5
	}
	if c.Publisher.AlertsPath == "" {
		c.Publisher.AlertsPath = "data/alerts.jsonl"
	}
	if c.Publisher.StatsPath == "" {
		c.Publisher.StatsPath = "data/nids_stats.json"
	}
	if c.Publisher.FlushEvery <= 0 {
		c.Publisher.FlushEvery = 1
	}
	if c.Publisher.LogEvery == 0 {
		c.Publisher.LogEvery = 1000
	}
	if c.Sinks.NATS.URL == "" {
		c.Sinks.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.Sinks.NATS.Subject == "" {
		c.Sinks.NATS.Subject = "nids.alerts"
	}
	if c.Sinks.ClickHouse.Port == 0 {
		c.Sinks.ClickHouse.Port = 9000
	}
	if c.Sinks.SQLite.Path == "" {
		c.Sinks.SQLite.Path = "data/alerts.sqlite"
	}
	if c.Alerter.CheckInterval == "" {
		c.Alerter.CheckInterval = "1m"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9108"
	}
	if c.Health.Addr == "" {
		c.Health.Addr = ":9109"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":5000"
	}
	if c.API.AlertsLimit <= 0 {
		c.API.AlertsLimit = 100
	}
}

// Validate checks cross-field constraints. It is called by Parse and again by
// the engine after command-line overrides are applied.
func (c *Config) Validate() error {
	in := c.Ingestion
	switch in.Mode {
	case ModeLive:
		if in.Live.Interface == "" {
			return fmt.Errorf("ingestion.live.interface is required in live mode")
		}
		if in.Live.Engine != "pcap" && in.Live.Engine != "afpacket" {
			return fmt.Errorf("ingestion.live.engine must be 'pcap' or 'afpacket', got '%s'", in.Live.Engine)
		}
		d, err := time.ParseDuration(in.Live.ReadTimeout)
		if err != nil {
			return fmt.Errorf("invalid ingestion.live.read_timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("ingestion.live.read_timeout must be positive, got %s", in.Live.ReadTimeout)
		}
	case ModeReplay:
		if in.Replay.Path == "" {
			return fmt.Errorf("ingestion.replay.path is required in replay mode")
		}
		if in.Replay.Pacing != nil && *in.Replay.Pacing < 0 {
			return fmt.Errorf("ingestion.replay.pacing must be >= 0, got %v", *in.Replay.Pacing)
		}
	case ModeSynthetic:
		p := in.Synthetic.AttackProbability
		if p < 0 || p > 1 {
			return fmt.Errorf("ingestion.synthetic.attack_probability must be within [0,1], got %v", p)
		}
		d, err := time.ParseDuration(in.Synthetic.Interval)
		if err != nil {
			return fmt.Errorf("invalid ingestion.synthetic.interval: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("ingestion.synthetic.interval must not be negative")
		}
		if in.Synthetic.Jitter < 0 || in.Synthetic.Jitter > 1 {
			return fmt.Errorf("ingestion.synthetic.jitter must be within [0,1], got %v", in.Synthetic.Jitter)
		}
	default:
		return fmt.Errorf("unknown ingestion.mode '%s' (want live, replay or synthetic)", in.Mode)
	}

	if c.Model.ClassifierPath == "" || c.Model.EncoderPath == "" {
		return fmt.Errorf("model.classifier_path and model.encoder_path are required")
	}
	if c.Model.Threshold <= 0 || c.Model.Threshold >= 1 {
		return fmt.Errorf("model.threshold must be within (0,1), got %v", c.Model.Threshold)
	}
	if c.Alerter.Enabled {
		if _, err := time.ParseDuration(c.Alerter.CheckInterval); err != nil {
			return fmt.Errorf("invalid alerter.check_interval: %w", err)
		}
	}
	return nil
}
