package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	REST      RESTConfig      `yaml:"rest"`
	WS        WSConfig        `yaml:"ws"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Features  FeaturesConfig  `yaml:"features"`
	Risk      RiskConfig      `yaml:"risk"`
	Model     ModelConfig     `yaml:"model"`
	State     StateConfig     `yaml:"state"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Timescale TimescaleConfig `yaml:"timescale"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

type ScannerConfig struct {
	Interval       time.Duration `yaml:"interval"`
	Workers        int           `yaml:"workers"`
	Stagger        time.Duration `yaml:"stagger"`
	LiquidityFloor float64       `yaml:"liquidity_floor"`
	KlineInterval  string        `yaml:"kline_interval"`
	KlineLimit     int           `yaml:"kline_limit"`
}

type FeaturesConfig struct {
	Source  string        `yaml:"source"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RiskConfig struct {
	RiskPercent     float64 `yaml:"risk_percent"`
	MaxRiskPercent  float64 `yaml:"max_risk_percent"`
	MaxOpenTrades   int     `yaml:"max_open_trades"`
	ConfidenceFloor float64 `yaml:"confidence_floor"`
	QtyStep         float64 `yaml:"qty_step"`
}

type ModelConfig struct {
	Path       string `yaml:"path"`
	ScalerPath string `yaml:"scaler_path"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Credentials are read from the environment, never from the yaml file.
type Credentials struct {
	APIKey    string
	APISecret string
}

func LoadCredentials() (Credentials, error) {
	creds := Credentials{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
	}
	if creds.APIKey == "" {
		return Credentials{}, errors.New("BYBIT_API_KEY is required")
	}
	if creds.APISecret == "" {
		return Credentials{}, errors.New("BYBIT_API_SECRET is required")
	}
	return creds, nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://api.bybit.com"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = "wss://stream.bybit.com/v5/public/linear"
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 20 * time.Second
	}
	if cfg.Scanner.Interval == 0 {
		cfg.Scanner.Interval = 60 * time.Second
	}
	if cfg.Scanner.Workers == 0 {
		cfg.Scanner.Workers = 5
	}
	if cfg.Scanner.Stagger == 0 {
		cfg.Scanner.Stagger = time.Second
	}
	if cfg.Scanner.LiquidityFloor == 0 {
		cfg.Scanner.LiquidityFloor = 1_000_000
	}
	if cfg.Scanner.KlineInterval == "" {
		cfg.Scanner.KlineInterval = "5"
	}
	if cfg.Scanner.KlineLimit == 0 {
		cfg.Scanner.KlineLimit = 200
	}
	if cfg.Features.Source == "" {
		cfg.Features.Source = "sidecar"
	}
	if cfg.Features.BaseURL == "" {
		cfg.Features.BaseURL = "http://127.0.0.1:8765"
	}
	if cfg.Features.Timeout == 0 {
		cfg.Features.Timeout = 5 * time.Second
	}
	if cfg.Risk.RiskPercent == 0 {
		cfg.Risk.RiskPercent = 2
	}
	if cfg.Risk.MaxRiskPercent == 0 {
		cfg.Risk.MaxRiskPercent = 5
	}
	if cfg.Risk.MaxOpenTrades == 0 {
		cfg.Risk.MaxOpenTrades = 10
	}
	if cfg.Risk.ConfidenceFloor == 0 {
		cfg.Risk.ConfidenceFloor = 0.6
	}
	if cfg.Risk.QtyStep == 0 {
		cfg.Risk.QtyStep = 0.001
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/bybit-scan-bot.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
}

func validate(cfg *Config) error {
	if cfg.Risk.RiskPercent <= 0 {
		return errors.New("risk.risk_percent must be > 0")
	}
	if cfg.Risk.RiskPercent > cfg.Risk.MaxRiskPercent {
		return errors.New("risk.risk_percent exceeds risk.max_risk_percent")
	}
	if cfg.Risk.MaxOpenTrades <= 0 {
		return errors.New("risk.max_open_trades must be > 0")
	}
	if cfg.Risk.ConfidenceFloor < 0 || cfg.Risk.ConfidenceFloor > 1 {
		return errors.New("risk.confidence_floor must be within [0,1]")
	}
	if cfg.Scanner.Workers <= 0 {
		return errors.New("scanner.workers must be > 0")
	}
	if cfg.Features.Source != "sidecar" && cfg.Features.Source != "kline" {
		return errors.New("features.source must be sidecar or kline")
	}
	if cfg.Timescale.Enabled && cfg.Timescale.DSN == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	return nil
}
