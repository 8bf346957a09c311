package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Aarzish/study-planner/internal/app"
	"github.com/Aarzish/study-planner/internal/client"
	"github.com/Aarzish/study-planner/internal/logger"
	"github.com/Aarzish/study-planner/internal/notify"
	"github.com/Aarzish/study-planner/internal/reminder"
	"github.com/Aarzish/study-planner/internal/session"
	"github.com/Aarzish/study-planner/internal/storage"
	"github.com/Aarzish/study-planner/internal/storagebuilder"
	"github.com/Aarzish/study-planner/internal/store"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "./configs/planner.yaml", "Path to configuration file")
	flag.Usage = func() { newCommandLine(nil, Config{}).printUsage() }
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

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
	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return 1
	}
	defer closeStorage(stor)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	planner, err := buildApp(ctx, config, stor)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		if err := planner.Stop(ctx); err != nil {
			log.Errorf("failed to stop reminders: %v", err)
		}
	}()

	cli := newCommandLine(planner, config)
	if err := cli.run(ctx, flag.Args()); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func buildApp(ctx context.Context, config Config, stor storage.Storage) (*app.App, error) {
	api := client.New(config.API)
	sess, err := session.Open(ctx, stor, api)
	if err != nil {
		return nil, err
	}
	authed := api.WithToken(sess)

	notifier, err := notify.New(config.notifier())
	if err != nil {
		return nil, err
	}
	schedConfig, err := config.Reminder.scheduler()
	if err != nil {
		return nil, err
	}

	return app.New(
		sess,
		store.NewCourseStore(authed),
		store.NewEventStore(authed),
		store.NewStudyStore(authed),
		reminder.New(notifier, schedConfig),
		app.Options{Location: schedConfig.Location},
	), nil
}

func closeStorage(stor storage.Storage) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()
	if err := stor.Close(ctx); err != nil {
		log.Errorf("failed to close storage: %v", err)
	}
}
