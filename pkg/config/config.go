package config

import (
	"encoding/json"
	"os"

	"github.com/martvell/tg-alarm-reminder/pkg/logger"
)

type Config struct {
	Database DatabaseConfig `json:"database"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Alarm    AlarmConfig    `json:"alarm"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"` // "postgres" or "sqlite"
	Host     string `json:"host"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	Port     int    `json:"port"`
	SSLMode  string `json:"sslmode"`
	Path     string `json:"path"` // sqlite file, used when driver is "sqlite"
}

type TelegramConfig struct {
	Token string `json:"token"`
}

type LoggingConfig struct {
	Level     string `json:"level"`
	File      string `json:"file"`
	GormLevel string `json:"gorm_level"`
}

type AlarmConfig struct {
	DefaultSnoozeMinutes     int   `json:"default_snooze_minutes"`
	PresentationRetrySeconds int   `json:"presentation_retry_seconds"`
	SnoozePresetsMinutes     []int `json:"snooze_presets_minutes"`
}

var AppConfig Config

func LoadConfig(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		logger.Error("failed to open config file", "error", err)
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&AppConfig); err != nil {
		logger.Error("failed to decode config file", "error", err)
		return err
	}

	return nil
}
