package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCommissionFormula - комиссия исполнителя: 10% от суммы без расходов.
const DefaultCommissionFormula = "(amount - expense_amount) * 0.1"

// Settings - настройки сервиса. Источник: YAML-файл, поверх него переменные окружения.
type Settings struct {
	HTTPAddr          string        `yaml:"http_addr"`
	DatabaseURL       string        `yaml:"database_url"`
	RedisAddr         string        `yaml:"redis_addr"`
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	CommissionFormula string        `yaml:"commission_formula"`
	CurrencyMajor     string        `yaml:"currency_major"`
	CurrencyMinor     string        `yaml:"currency_minor"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
}

var JwtKey []byte

// TokenTTL - срок жизни токена, выдаваемого при входе.
var TokenTTL = 24 * time.Hour

func DefaultSettings() *Settings {
	return &Settings{
		HTTPAddr:          ":8080",
		TokenTTL:          24 * time.Hour,
		CommissionFormula: DefaultCommissionFormula,
		CurrencyMajor:     "dollars",
		CurrencyMinor:     "cents",
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// LoadSettings читает YAML по пути path. Отсутствующий файл не ошибка.
// Пустой path берется из CONFIG_FILE.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			slog.Warn("Файл конфигурации не найден, используются значения по умолчанию", "path", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	s.applyEnvOverrides()
	return s, nil
}

func (s *Settings) applyEnvOverrides() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		s.HTTPAddr = v
	}
	if v := os.Getenv("DB_URL"); v != "" {
		s.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		s.RedisAddr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		s.JWTSecret = v
	}
	if v := os.Getenv("COMMISSION_FORMULA"); v != "" {
		s.CommissionFormula = v
	}
	if v := os.Getenv("CURRENCY_MAJOR"); v != "" {
		s.CurrencyMajor = v
	}
	if v := os.Getenv("CURRENCY_MINOR"); v != "" {
		s.CurrencyMinor = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
}

// Validate проверяет то, без чего сервер не стартует.
func (s *Settings) Validate() error {
	if s.DatabaseURL == "" {
		return fmt.Errorf("database_url is empty (set DB_URL)")
	}
	if s.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is empty (set JWT_SECRET)")
	}
	return nil
}

// Apply выставляет глобальные значения пакета: ключ JWT и логгер.
func (s *Settings) Apply() {
	JwtKey = []byte(s.JWTSecret)
	if s.TokenTTL > 0 {
		TokenTTL = s.TokenTTL
	}
	slog.SetDefault(NewLogger(s.LogLevel, s.LogFormat))
}

func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
