// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/marketbrief/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when CONFIG_PATH is not set
const DefaultConfigPath = "config.yml"

// Config holds application configuration
type Config struct {
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Report    ReportConfig    `yaml:"report"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Signal    SignalConfig    `yaml:"signal"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Providers ProvidersConfig `yaml:"providers"`
	Cache     CacheConfig     `yaml:"cache"`
	Evaluate  EvaluateConfig  `yaml:"evaluate"`
	LogLevel  string          `yaml:"log_level"`

	// RunOnce executes a single report run and exits. Env only (RUN_ONCE).
	RunOnce bool `yaml:"-"`
}

// PortfolioConfig holds the tracked positions and the reporting currency
type PortfolioConfig struct {
	BaseCurrency domain.Currency   `yaml:"base_currency"`
	Positions    []domain.Position `yaml:"positions"`
}

// ReportConfig controls sorting, truncation and framing of the report
type ReportConfig struct {
	SortBy       string   `yaml:"sort_by"`
	Descending   bool     `yaml:"descending"`
	TopN         int      `yaml:"top_n"`
	IncludeIndex []string `yaml:"include_index"`
	MaxBytes     int      `yaml:"max_bytes"`
	Header       string   `yaml:"header"`
	Footer       string   `yaml:"footer"`
}

// TelegramConfig holds Telegram Bot API delivery settings
type TelegramConfig struct {
	BotToken string   `yaml:"bot_token"`
	ChatIDs  []string `yaml:"chat_ids"`
}

// Configured reports whether Telegram delivery is usable
func (c TelegramConfig) Configured() bool {
	return c.BotToken != "" && len(c.ChatIDs) > 0
}

// SignalConfig holds signal-cli-rest-api delivery settings
type SignalConfig struct {
	APIBase    string   `yaml:"api_base"`
	Sender     string   `yaml:"sender"`
	Recipients []string `yaml:"recipients"`
}

// Configured reports whether Signal delivery is usable
func (c SignalConfig) Configured() bool {
	return c.Sender != "" && len(c.Recipients) > 0
}

// ScheduleConfig controls when scheduled runs fire. Cron takes precedence
// over Times; Times is the legacy HH:MM list form.
type ScheduleConfig struct {
	Cron     string   `yaml:"cron"`
	Times    []string `yaml:"times"`
	Timezone string   `yaml:"timezone"`
}

// ProvidersConfig carries market data API credentials. A provider whose key
// is empty is skipped at cascade build time.
type ProvidersConfig struct {
	FinnhubAPIKey      string `yaml:"finnhub_api_key"`
	AlphaVantageAPIKey string `yaml:"alphavantage_api_key"`
}

// CacheConfig locates the sqlite file used for instrument metadata and the
// run journal. Quotes and FX rates are never stored there.
type CacheConfig struct {
	Path    string `yaml:"path"`
	TTLDays int    `yaml:"ttl_days"`
}

// EvaluateConfig bounds the per-run fetch concurrency
type EvaluateConfig struct {
	Workers int `yaml:"workers"`
}

// SortFields lists the metric fields a report may be sorted by
var SortFields = []string{
	"day_change_pct",
	"week_to_date_pct",
	"month_to_date_pct",
	"pnl_abs",
	"pnl_pct",
	"last_price",
}

// Load reads configuration from config.yml and environment variables.
// Environment variables win over file values. A missing config file is not
// an error as long as positions are supplied via POSITIONS.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := defaults()

	path := getEnv("CONFIG_PATH", DefaultConfigPath)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Resolve ${ENV_VAR} placeholders before parsing
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to env-only configuration
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Portfolio: PortfolioConfig{
			BaseCurrency: domain.CurrencyEUR,
		},
		Report: ReportConfig{
			SortBy:     "day_change_pct",
			Descending: true,
			TopN:       10,
			MaxBytes:   5500,
			Header:     "Daily Stock Report",
			Footer:     "sent by marketbrief",
		},
		Signal: SignalConfig{
			APIBase: "http://signal:8080",
		},
		Schedule: ScheduleConfig{
			Times:    []string{"08:10"},
			Timezone: "Europe/Amsterdam",
		},
		Cache: CacheConfig{
			Path:    "./data/marketbrief.db",
			TTLDays: 7,
		},
		Evaluate: EvaluateConfig{
			Workers: 4,
		},
		LogLevel: "info",
	}
}

// applyEnv layers environment overrides on top of file values
func (c *Config) applyEnv() error {
	if raw := os.Getenv("POSITIONS"); raw != "" {
		positions, err := ParsePositions(raw)
		if err != nil {
			return fmt.Errorf("failed to parse POSITIONS: %w", err)
		}
		c.Portfolio.Positions = positions
	}

	if raw := os.Getenv("INDICES"); raw != "" {
		c.Report.IncludeIndex = splitList(raw)
	}

	if expr := os.Getenv("CRON_SCHEDULE"); expr != "" {
		c.Schedule.Cron = expr
	}
	if tz := os.Getenv("TZ"); tz != "" {
		c.Schedule.Timezone = tz
	}

	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		c.Providers.FinnhubAPIKey = key
	}
	if key := os.Getenv("ALPHAVANTAGE_API_KEY"); key != "" {
		c.Providers.AlphaVantageAPIKey = key
	}
	if c.Telegram.BotToken == "" {
		c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if base := os.Getenv("SIGNAL_API_BASE"); base != "" {
		c.Signal.APIBase = base
	}

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RunOnce = envTruthy("RUN_ONCE")
	return nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	c.Portfolio.BaseCurrency = domain.Currency(strings.ToUpper(strings.TrimSpace(string(c.Portfolio.BaseCurrency))))
	if len(c.Portfolio.BaseCurrency) != 3 {
		return fmt.Errorf("invalid base currency %q", c.Portfolio.BaseCurrency)
	}

	if len(c.Portfolio.Positions) == 0 {
		return fmt.Errorf("no positions configured (set portfolio.positions or POSITIONS)")
	}
	for i, pos := range c.Portfolio.Positions {
		if strings.TrimSpace(pos.Symbol) == "" {
			return fmt.Errorf("position %d: symbol is required", i)
		}
		if pos.Units <= 0 {
			return fmt.Errorf("position %s: units must be positive", pos.Symbol)
		}
		if pos.CostBasis != nil && *pos.CostBasis <= 0 {
			return fmt.Errorf("position %s: cost_basis must be positive when set", pos.Symbol)
		}
	}

	if !isSortField(c.Report.SortBy) {
		return fmt.Errorf("unknown report sort field %q (valid: %s)", c.Report.SortBy, strings.Join(SortFields, ", "))
	}
	if c.Report.TopN < 1 {
		return fmt.Errorf("report top_n must be at least 1")
	}
	if c.Report.MaxBytes < 1 {
		return fmt.Errorf("report max_bytes must be positive")
	}

	if c.Telegram.BotToken != "" && len(c.Telegram.ChatIDs) == 0 {
		return fmt.Errorf("telegram bot_token set but no chat_ids configured")
	}
	if c.Signal.Sender != "" && len(c.Signal.Recipients) == 0 {
		return fmt.Errorf("signal sender set but no recipients configured")
	}

	if c.Schedule.Cron == "" {
		for _, t := range c.Schedule.Times {
			if _, _, err := parseClock(t); err != nil {
				return fmt.Errorf("invalid schedule time %q: %w", t, err)
			}
		}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}

	if c.Evaluate.Workers < 1 {
		c.Evaluate.Workers = 1
	}
	return nil
}

// CronExpression returns the effective cron expression for scheduled runs,
// deriving one from the legacy times list when no expression is configured.
// e.g. times ["08:10", "17:10"] become "10 8,17 * * *".
func (c *Config) CronExpression() (string, error) {
	if c.Schedule.Cron != "" {
		return c.Schedule.Cron, nil
	}

	times := c.Schedule.Times
	if len(times) == 0 {
		times = []string{"08:10"}
	}

	minuteSet := map[int]bool{}
	hourSet := map[int]bool{}
	for _, t := range times {
		hour, minute, err := parseClock(t)
		if err != nil {
			return "", fmt.Errorf("invalid schedule time %q: %w", t, err)
		}
		hourSet[hour] = true
		minuteSet[minute] = true
	}

	return fmt.Sprintf("%s %s * * *", joinSorted(minuteSet), joinSorted(hourSet)), nil
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Schedule.Timezone)
}

// ParsePositions parses the POSITIONS env var format:
// "AAPL:12:148.20,MSFT:8". Each entry is SYMBOL:UNITS[:COST_BASIS].
func ParsePositions(raw string) ([]domain.Position, error) {
	var positions []domain.Position
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed position %q, want SYMBOL:UNITS[:COST_BASIS]", entry)
		}

		units, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed units in position %q: %w", entry, err)
		}

		pos := domain.Position{
			Symbol: strings.TrimSpace(parts[0]),
			Units:  units,
		}

		if len(parts) >= 3 && strings.TrimSpace(parts[2]) != "" {
			cost, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("malformed cost basis in position %q: %w", entry, err)
			}
			pos.CostBasis = &cost
		}

		positions = append(positions, pos)
	}
	return positions, nil
}

func isSortField(field string) bool {
	for _, f := range SortFields {
		if f == field {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseClock(t string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(t), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute %q", parts[1])
	}
	return hour, minute, nil
}

func joinSorted(set map[int]bool) string {
	vals := make([]int, 0, len(set))
	for v := range set {
		vals = append(vals, v)
	}
	sort.Ints(vals)

	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envTruthy(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
