package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig holds per-provider HTTP settings.
type ProviderConfig struct {
	BaseURL        string  `yaml:"base_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RetryAttempts  int     `yaml:"retry_attempts"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
}

// Timeout returns the configured HTTP timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Config holds all application configuration.
type Config struct {
	Period struct {
		Months int    `yaml:"months"`
		Start  string `yaml:"start"` // YYYY-MM-DD, overrides Months with End
		End    string `yaml:"end"`
	} `yaml:"period"`
	Symbols []string `yaml:"symbols"` // subset; empty means all registered

	MOEX  ProviderConfig `yaml:"moex"`
	Yahoo ProviderConfig `yaml:"yahoo"`

	Indicators struct {
		RSIPeriods    []int   `yaml:"rsi_periods"`
		RSIOversold   float64 `yaml:"rsi_oversold"`
		RSIOverbought float64 `yaml:"rsi_overbought"`
		MACDFast      int     `yaml:"macd_fast"`
		MACDSlow      int     `yaml:"macd_slow"`
		MACDSignal    int     `yaml:"macd_signal"`
	} `yaml:"indicators"`

	Collect struct {
		MaxConcurrent int    `yaml:"max_concurrent"`
		Cron          string `yaml:"cron"`
	} `yaml:"collect"`

	Database struct {
		SQLitePath   string `yaml:"sqlite_path"`
		CSVBackupDir string `yaml:"csv_backup_dir"`
	} `yaml:"database"`

	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("DATA_PERIOD_MONTHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Period.Months = n
		}
	}
	if v := os.Getenv("MOEX_BASE_URL"); v != "" {
		cfg.MOEX.BaseURL = v
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Yahoo.BaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CSV_BACKUP_DIR"); v != "" {
		cfg.Database.CSVBackupDir = v
	}
	if v := os.Getenv("CRON_COLLECT"); v != "" {
		cfg.Collect.Cron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Defaults
	if cfg.Period.Months == 0 && cfg.Period.Start == "" {
		cfg.Period.Months = 180
	}
	if cfg.MOEX.BaseURL == "" {
		cfg.MOEX.BaseURL = "https://iss.moex.com"
	}
	if cfg.Yahoo.BaseURL == "" {
		cfg.Yahoo.BaseURL = "https://query1.finance.yahoo.com"
	}
	applyProviderDefaults(&cfg.MOEX)
	applyProviderDefaults(&cfg.Yahoo)
	if len(cfg.Indicators.RSIPeriods) == 0 {
		cfg.Indicators.RSIPeriods = []int{6, 12, 24}
	}
	if cfg.Indicators.RSIOversold == 0 {
		cfg.Indicators.RSIOversold = 30
	}
	if cfg.Indicators.RSIOverbought == 0 {
		cfg.Indicators.RSIOverbought = 70
	}
	if cfg.Indicators.MACDFast == 0 {
		cfg.Indicators.MACDFast = 12
	}
	if cfg.Indicators.MACDSlow == 0 {
		cfg.Indicators.MACDSlow = 26
	}
	if cfg.Indicators.MACDSignal == 0 {
		cfg.Indicators.MACDSignal = 9
	}
	if cfg.Collect.MaxConcurrent == 0 {
		cfg.Collect.MaxConcurrent = 5
	}
	if cfg.Collect.Cron == "" {
		cfg.Collect.Cron = "0 0 9 * * 1" // Monday 09:00
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/financial_data.db"
	}
	if cfg.Database.CSVBackupDir == "" {
		cfg.Database.CSVBackupDir = "data/csv_backup"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func applyProviderDefaults(p *ProviderConfig) {
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = 30
	}
	if p.RetryAttempts == 0 {
		p.RetryAttempts = 3
	}
	if p.RequestsPerSec == 0 {
		p.RequestsPerSec = 2
	}
}

// PeriodRange resolves the configured period to absolute dates, using now as
// the end of a months-back window.
func (c *Config) PeriodRange(now time.Time) (start, end time.Time, err error) {
	if c.Period.Start != "" {
		start, err = time.Parse("2006-01-02", c.Period.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("period.start: %w", err)
		}
		end = now
		if c.Period.End != "" {
			end, err = time.Parse("2006-01-02", c.Period.End)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("period.end: %w", err)
			}
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, fmt.Errorf("period.end %s is not after period.start %s", c.Period.End, c.Period.Start)
		}
		return start, end, nil
	}
	return now.AddDate(0, -c.Period.Months, 0), now, nil
}

// Validate checks that the configuration is usable. A failure here is fatal
// and aborts before any collection starts.
func (c *Config) Validate() error {
	if c.Period.Start == "" && c.Period.Months <= 0 {
		return fmt.Errorf("period.months must be positive")
	}
	if _, _, err := c.PeriodRange(time.Now()); err != nil {
		return err
	}
	for _, p := range c.Indicators.RSIPeriods {
		if p <= 0 {
			return fmt.Errorf("indicators.rsi_periods must be positive, got %d", p)
		}
	}
	if c.Indicators.RSIOversold >= c.Indicators.RSIOverbought {
		return fmt.Errorf("indicators.rsi_oversold (%.0f) must be below rsi_overbought (%.0f)",
			c.Indicators.RSIOversold, c.Indicators.RSIOverbought)
	}
	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		return fmt.Errorf("indicators.macd_fast (%d) must be below macd_slow (%d)",
			c.Indicators.MACDFast, c.Indicators.MACDSlow)
	}
	if c.Indicators.MACDSignal <= 0 {
		return fmt.Errorf("indicators.macd_signal must be positive")
	}
	if c.Collect.MaxConcurrent < 1 {
		return fmt.Errorf("collect.max_concurrent must be at least 1")
	}
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	return nil
}
