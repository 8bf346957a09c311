package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Aarzish/study-planner/internal/client"
	"github.com/Aarzish/study-planner/internal/logger"
	"github.com/Aarzish/study-planner/internal/notify"
	"github.com/Aarzish/study-planner/internal/rabbit"
	"github.com/Aarzish/study-planner/internal/reminder"
	internalhttp "github.com/Aarzish/study-planner/internal/server/http"
	"github.com/Aarzish/study-planner/internal/storagebuilder"
)

const envConfigPrefix = "$env:"

type ReminderConfig struct {
	Hour     int
	Location string
}

type NotifierConfig struct {
	Kind string
}

type Config struct {
	API       client.Config
	Logger    logger.Config
	Storage   storagebuilder.Config
	Reminder  ReminderConfig
	Notifier  NotifierConfig
	Rabbit    rabbit.Config
	Email     notify.EmailConfig
	Dashboard internalhttp.Config
}

// NewConfig reads configFile if it exists and falls back to defaults otherwise.
// A .env file next to it is loaded into the environment first.
func NewConfig(configFile string) (Config, error) {
	config := Config{}
	v := viper.New()

	dotEnv := filepath.Join(filepath.Dir(configFile), ".env")
	if err := godotenv.Load(dotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to load %q: %w", dotEnv, err)
	}

	v.SetDefault("api.baseURL", client.DefaultBaseURL)
	v.SetDefault("api.timeout", client.DefaultTimeout.String())
	v.SetDefault("logger.level", "WARN")
	v.SetDefault("storage.storageType", storagebuilder.TypeSqlite)
	v.SetDefault("storage.connectTimeout", "15s")
	v.SetDefault("reminder.hour", reminder.DefaultHour)
	v.SetDefault("reminder.location", "Local")
	v.SetDefault("notifier.kind", notify.KindConsole)
	v.SetDefault("rabbit.host", "127.0.0.1")
	v.SetDefault("rabbit.port", 5672)
	v.SetDefault("rabbit.queue", "reminders")
	v.SetDefault("dashboard.host", "127.0.0.1")
	v.SetDefault("dashboard.port", 8080)

	if _, err := os.Stat(configFile); err == nil {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return config, fmt.Errorf("failed to read config %q: %w", configFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to read config %q: %w", configFile, err)
	}

	for _, key := range v.AllKeys() {
		env := v.GetString(key)
		if strings.HasPrefix(env, envConfigPrefix) {
			name := env[len(envConfigPrefix):]
			err := v.BindEnv(key, name)
			if err != nil {
				return Config{}, fmt.Errorf("failed to prepare config: %w", err)
			}
			// an unset variable must not leave the placeholder behind
			if _, ok := os.LookupEnv(name); !ok {
				v.Set(key, "")
			}
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	return config, nil
}

func (c Config) notifier() notify.Config {
	return notify.Config{Kind: c.Notifier.Kind, Rabbit: c.Rabbit, Email: c.Email}
}

func (c ReminderConfig) scheduler() (reminder.Config, error) {
	loc := time.Local
	if c.Location != "" && c.Location != "Local" {
		var err error
		loc, err = time.LoadLocation(c.Location)
		if err != nil {
			return reminder.Config{}, fmt.Errorf("bad reminder location: %w", err)
		}
	}
	return reminder.Config{Hour: c.Hour, Location: loc}, nil
}
