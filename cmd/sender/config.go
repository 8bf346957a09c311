package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Aarzish/study-planner/internal/logger"
	"github.com/Aarzish/study-planner/internal/notify"
	"github.com/Aarzish/study-planner/internal/rabbit"
)

const envConfigPrefix = "$env:"

type DeliveryConfig struct {
	Kind string
}

type Config struct {
	Logger   logger.Config
	Rabbit   rabbit.Config
	Delivery DeliveryConfig
	Email    notify.EmailConfig
}

func NewConfig(configFile string) (Config, error) {
	config := Config{}
	v := viper.New()
	v.SetConfigFile(configFile)

	dotEnv := filepath.Join(filepath.Dir(configFile), ".env")
	if err := godotenv.Load(dotEnv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to load %q: %w", dotEnv, err)
	}

	v.SetDefault("logger.level", "INFO")
	v.SetDefault("rabbit.host", "127.0.0.1")
	v.SetDefault("rabbit.port", 5672)
	v.SetDefault("rabbit.queue", "reminders")
	v.SetDefault("delivery.kind", notify.KindConsole)

	err := v.ReadInConfig()
	if err != nil {
		return config, fmt.Errorf("failed to read config %q: %w", configFile, err)
	}
	for _, key := range v.AllKeys() {
		env := v.GetString(key)
		if strings.HasPrefix(env, envConfigPrefix) {
			name := env[len(envConfigPrefix):]
			if err := v.BindEnv(key, name); err != nil {
				return Config{}, fmt.Errorf("failed to prepare config: %w", err)
			}
			if _, ok := os.LookupEnv(name); !ok {
				v.Set(key, "")
			}
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return config, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if kind := strings.ToLower(config.Delivery.Kind); kind == notify.KindRabbit {
		return config, fmt.Errorf("delivery kind %q would loop back into the queue", kind)
	}
	return config, nil
}
