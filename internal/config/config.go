package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pairwatch/internal/logging"
)

const (
	// DriverFile keeps ticks in a flat CSV log.
	DriverFile = "file"
	// DriverPostgres keeps ticks in a PostgreSQL table.
	DriverPostgres = "postgres"

	// ProviderBinance streams trades from Binance websockets.
	ProviderBinance = "binance"
	// ProviderStub emits synthetic co-moving trades.
	ProviderStub = "stub"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Alerting AlertingConfig `mapstructure:"alerting"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// FeedConfig describes the trade feed connection.
type FeedConfig struct {
	Provider          string        `mapstructure:"provider"`
	URL               string        `mapstructure:"url"`
	Symbols           []string      `mapstructure:"symbols"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	StubInterval      time.Duration `mapstructure:"stub_interval"`
}

// StorageConfig selects and configures the tick store.
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Fsync           bool          `mapstructure:"fsync"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RefreshConfig governs the recomputation cycle.
type RefreshConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	StartupDelay     time.Duration `mapstructure:"startup_delay"`
	Lookback         time.Duration `mapstructure:"lookback"`
	Timeframe        string        `mapstructure:"timeframe"`
	Window           int           `mapstructure:"window"`
	AutoAdjustWindow bool          `mapstructure:"auto_adjust_window"`
	CorrWindow       int           `mapstructure:"corr_window"`
	VolumeWindow     time.Duration `mapstructure:"volume_window"`
}

// AlertingConfig defines z-score thresholds and routing.
type AlertingConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	ZScoreThreshold float64        `mapstructure:"zscore_threshold"`
	Cooldown        time.Duration  `mapstructure:"cooldown"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot used for alerts.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// RedisConfig configures snapshot publication to Redis.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("PAIRWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pairwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("feed.provider", ProviderBinance)
	v.SetDefault("feed.url", "wss://fstream.binance.com/ws")
	v.SetDefault("feed.symbols", []string{"btcusdt", "ethusdt"})
	v.SetDefault("feed.handshake_timeout", "10s")
	v.SetDefault("feed.read_timeout", "60s")
	v.SetDefault("feed.ping_interval", "15s")
	v.SetDefault("feed.backoff_initial", "1s")
	v.SetDefault("feed.backoff_max", "30s")
	v.SetDefault("feed.backoff_multiplier", 1.8)
	v.SetDefault("feed.stub_interval", "250ms")

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.path", "database/ticks.csv")
	v.SetDefault("storage.fsync", true)
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.max_idle_conns", 2)
	v.SetDefault("storage.conn_max_lifetime", "30m")

	v.SetDefault("refresh.interval", "2s")
	v.SetDefault("refresh.startup_delay", "0s")
	v.SetDefault("refresh.lookback", "30m")
	v.SetDefault("refresh.timeframe", "1s")
	v.SetDefault("refresh.window", 50)
	v.SetDefault("refresh.auto_adjust_window", true)
	v.SetDefault("refresh.corr_window", 60)
	v.SetDefault("refresh.volume_window", "5m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.zscore_threshold", 2.0)
	v.SetDefault("alerting.cooldown", "5m")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9102")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "pairwatch")
	v.SetDefault("redis.ttl", "10m")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Feed.Provider) {
	case ProviderBinance, ProviderStub:
	default:
		return fmt.Errorf("feed.provider must be %q or %q, got %q", ProviderBinance, ProviderStub, c.Feed.Provider)
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols must list at least one instrument")
	}
	if c.Feed.BackoffInitial <= 0 || c.Feed.BackoffMax < c.Feed.BackoffInitial {
		return fmt.Errorf("feed.backoff_initial must be positive and not exceed feed.backoff_max")
	}
	if c.Feed.BackoffMultiplier < 1 {
		return fmt.Errorf("feed.backoff_multiplier must be at least 1")
	}

	switch strings.ToLower(c.Storage.Driver) {
	case DriverFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the file driver")
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverFile, DriverPostgres, c.Storage.Driver)
	}

	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be greater than zero")
	}
	if c.Refresh.Lookback <= 0 {
		return fmt.Errorf("refresh.lookback must be greater than zero")
	}
	if _, err := c.Refresh.TimeframeDuration(); err != nil {
		return err
	}
	if c.Refresh.Window < 2 {
		return fmt.Errorf("refresh.window must be at least 2")
	}
	if c.Refresh.CorrWindow < 2 {
		return fmt.Errorf("refresh.corr_window must be at least 2")
	}
	if c.Refresh.VolumeWindow <= 0 {
		return fmt.Errorf("refresh.volume_window must be greater than zero")
	}

	if c.Alerting.ZScoreThreshold < 0 {
		return fmt.Errorf("alerting.zscore_threshold cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// Named timeframes understood besides plain Go durations.
var namedTimeframes = map[string]time.Duration{
	"1s": time.Second,
	"1m": time.Minute,
	"5m": 5 * time.Minute,
}

// TimeframeDuration resolves the bar interval.
func (r RefreshConfig) TimeframeDuration() (time.Duration, error) {
	tf := strings.ToLower(strings.TrimSpace(r.Timeframe))
	if d, ok := namedTimeframes[tf]; ok {
		return d, nil
	}
	d, err := time.ParseDuration(tf)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("refresh.timeframe %q is not a positive duration", r.Timeframe)
	}
	return d, nil
}

// EffectiveWindow widens short windows on fine timeframes so statistics stay meaningful.
func (r RefreshConfig) EffectiveWindow() int {
	if !r.AutoAdjustWindow {
		return r.Window
	}
	tf, err := r.TimeframeDuration()
	if err != nil {
		return r.Window
	}
	switch tf {
	case time.Second:
		return max(r.Window, 60)
	case time.Minute:
		return max(r.Window, 30)
	}
	return r.Window
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
