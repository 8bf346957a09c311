package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/logger"
	"github.com/Aarzish/study-planner/internal/notify"
	"github.com/Aarzish/study-planner/internal/rabbit"
	"github.com/Aarzish/study-planner/internal/reminder"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/sender.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()
	os.Exit(run(configFile))
}

func run(configFile string) int {
	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return 1
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	notifier, err := notify.New(notify.Config{Kind: config.Delivery.Kind, Email: config.Email})
	if err != nil {
		log.Errorf("failed to start %v", err)
		return 1
	}
	if err := notifier.Prepare(ctx); err != nil {
		log.Errorf("failed to start %v", err)
		return 1
	}

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to start %v", err)
		return 1
	}
	defer r.Close()

	log.Info("sender is running...")
	if err := r.Consume(ctx, deliverer(ctx, notifier)); err != nil {
		log.Errorf("failed to consume reminders: %v", err)
		return 1
	}
	return 0
}

func deliverer(ctx context.Context, notifier reminder.Notifier) rabbit.Handler {
	return func(rem reminder.Reminder) {
		if err := notifier.Notify(ctx, rem); err != nil {
			log.WithField("event", rem.EventID).Errorf("failed to deliver reminder: %v", err)
			return
		}
		log.WithField("event", rem.EventID).Info("reminder delivered")
	}
}
