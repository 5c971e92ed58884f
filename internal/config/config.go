package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	NotifyTelegram = "telegram"
	NotifyLog      = "log"
)

// Config keeps runtime settings for the reminder bot.
type Config struct {
	TelegramToken  string
	TelegramChatID int64
	DatabaseURL    string
	Namespace      string
	Location       *time.Location
	HTTPAddr       string
	LogLevel       string
	LogFormat      string
	NotifyBackend  string
}

// Load reads defaults, then the YAML file named by CONFIG_FILE (if any),
// then environment variables. Later sources win.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("database_url", "medication_reminder.db")
	v.SetDefault("prefs_namespace", "my_app_shared_prefs")
	v.SetDefault("timezone", "Local")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("notify_backend", NotifyTelegram)
	v.SetDefault("http_addr", "")
	v.SetDefault("telegram_token", "")
	v.SetDefault("telegram_chat_id", 0)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	loc, err := loadLocation(v.GetString("timezone"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		TelegramToken:  strings.TrimSpace(v.GetString("telegram_token")),
		TelegramChatID: v.GetInt64("telegram_chat_id"),
		DatabaseURL:    strings.TrimSpace(v.GetString("database_url")),
		Namespace:      strings.TrimSpace(v.GetString("prefs_namespace")),
		Location:       loc,
		HTTPAddr:       strings.TrimSpace(v.GetString("http_addr")),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		NotifyBackend:  strings.ToLower(strings.TrimSpace(v.GetString("notify_backend"))),
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.TelegramChatID == 0 {
		return cfg, fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if cfg.NotifyBackend != NotifyTelegram && cfg.NotifyBackend != NotifyLog {
		return cfg, fmt.Errorf("NOTIFY_BACKEND must be %q or %q, got %q", NotifyTelegram, NotifyLog, cfg.NotifyBackend)
	}

	return cfg, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
