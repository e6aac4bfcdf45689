// Package config loads and validates the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TelegramTokenEnv overrides every monitor's bot token when set.
const TelegramTokenEnv = "MEDMON_TELEGRAM_TOKEN"

const (
	defaultWorksheetName   = "Лист1"
	defaultCheckInterval   = 10
	defaultDailyReportTime = "09:00"
	defaultStateDir        = "state"
)

// MonitorConfig describes one monitored worksheet.
type MonitorConfig struct {
	Name                 string   `yaml:"name"`
	SpreadsheetID        string   `yaml:"spreadsheet_id"`
	WorksheetName        string   `yaml:"worksheet_name"`
	TelegramBotToken     string   `yaml:"telegram_bot_token"`
	TelegramChatIDs      []string `yaml:"telegram_chat_ids"`
	CheckIntervalMinutes int      `yaml:"check_interval_minutes"`
	DailyReportTime      string   `yaml:"daily_report_time"`
	SendNewEmployees     bool     `yaml:"send_new_employee_notifications"`
}

// CheckInterval returns the periodic check interval as a duration.
func (m MonitorConfig) CheckInterval() time.Duration {
	return time.Duration(m.CheckIntervalMinutes) * time.Minute
}

// SystemConfig holds process-wide settings shared by all monitors.
type SystemConfig struct {
	StateDir      string `yaml:"state_dir"`
	SheetsAPIKey  string `yaml:"sheets_api_key"`
	SheetsBaseURL string `yaml:"sheets_base_url"`

	// TelegramBaseURL overrides the Bot API host, for tests and proxies.
	TelegramBaseURL string `yaml:"telegram_base_url"`
}

// Config is the full daemon configuration.
type Config struct {
	System   SystemConfig    `yaml:"system"`
	Monitors []MonitorConfig `yaml:"monitors"`
}

// Load reads the YAML file at path, applies defaults and the
// MEDMON_TELEGRAM_TOKEN override, and validates the result.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.System.StateDir == "" {
		c.System.StateDir = defaultStateDir
	}
	envToken := os.Getenv(TelegramTokenEnv)
	for i := range c.Monitors {
		m := &c.Monitors[i]
		if m.WorksheetName == "" {
			m.WorksheetName = defaultWorksheetName
		}
		if m.CheckIntervalMinutes == 0 {
			m.CheckIntervalMinutes = defaultCheckInterval
		}
		if m.DailyReportTime == "" {
			m.DailyReportTime = defaultDailyReportTime
		}
		if envToken != "" {
			m.TelegramBotToken = envToken
		}
		m.TelegramChatIDs = uniqueStrings(m.TelegramChatIDs)
	}
}

// uniqueStrings returns a deduplicated copy of the slice preserving insertion
// order. Returns nil for empty or nil input.
func uniqueStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(s))
	result := make([]string, 0, len(s))
	for _, v := range s {
		if _, exists := seen[v]; !exists {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}

// Validate checks the configuration for startup-blocking problems.
func (c *Config) Validate() error {
	if len(c.Monitors) == 0 {
		return fmt.Errorf("no monitors configured")
	}
	if c.System.SheetsAPIKey == "" {
		return fmt.Errorf("system.sheets_api_key is required")
	}
	seen := make(map[string]bool, len(c.Monitors))
	for i, m := range c.Monitors {
		if m.Name == "" {
			return fmt.Errorf("monitor %d: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("monitor %q: duplicate name", m.Name)
		}
		seen[m.Name] = true
		if m.SpreadsheetID == "" {
			return fmt.Errorf("monitor %q: spreadsheet_id is required", m.Name)
		}
		if m.TelegramBotToken == "" {
			return fmt.Errorf("monitor %q: telegram_bot_token is required (or set %s)", m.Name, TelegramTokenEnv)
		}
		if len(m.TelegramChatIDs) == 0 {
			return fmt.Errorf("monitor %q: telegram_chat_ids is required", m.Name)
		}
		if m.CheckIntervalMinutes < 0 {
			return fmt.Errorf("monitor %q: check_interval_minutes must be positive", m.Name)
		}
		if _, err := time.Parse("15:04", m.DailyReportTime); err != nil {
			return fmt.Errorf("monitor %q: daily_report_time %q is not HH:MM", m.Name, m.DailyReportTime)
		}
	}
	return nil
}

// Monitor returns the monitor config with the given name.
func (c *Config) Monitor(name string) (MonitorConfig, error) {
	for _, m := range c.Monitors {
		if m.Name == name {
			return m, nil
		}
	}
	return MonitorConfig{}, fmt.Errorf("monitor %q is not configured", name)
}
