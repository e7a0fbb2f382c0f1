package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gdelt-collective/ingest/internal/configuration"
	"github.com/gdelt-collective/ingest/internal/coordinator"
	"github.com/gdelt-collective/ingest/internal/dcontext"
	"github.com/gdelt-collective/ingest/internal/eventbus"
	"github.com/gdelt-collective/ingest/internal/fileops"
	"github.com/gdelt-collective/ingest/internal/httpapi"
	"github.com/gdelt-collective/ingest/internal/kv"
	"github.com/gdelt-collective/ingest/internal/objectstore"
	"github.com/gdelt-collective/ingest/internal/processor"
	"github.com/gdelt-collective/ingest/internal/publisher"
	"github.com/gdelt-collective/ingest/internal/retry"
	"github.com/gdelt-collective/ingest/internal/topic"
	"github.com/gdelt-collective/ingest/internal/version"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve <config>",
	Short: "start the ingestion worker",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 1 {
			configPath = args[0]
		}
		if err := runServe(); err != nil {
			logrus.Fatalln(err)
		}
	},
}

func runServe() error {
	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("open configuration: %w", err)
	}
	defer f.Close()

	config, err := configuration.Parse(f)
	if err != nil {
		return fmt.Errorf("parse configuration: %w", err)
	}

	ctx := configureLogging(dcontext.WithVersion(dcontext.Background(), version.Version()), config)
	log := dcontext.GetLogger(ctx)

	httpClient := fileops.NewHTTPClient(config.HTTP.ConnectTimeout, config.HTTP.ReadTimeout)

	redisCfg := kv.Redis{
		Addr:         config.Redis.Addr,
		Username:     config.Redis.Username,
		Password:     config.Redis.Password,
		DB:           config.Redis.DB,
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
	}
	redisCfg.Pool.MaxIdle = config.Redis.Pool.MaxIdle
	redisCfg.Pool.MaxActive = config.Redis.Pool.MaxActive
	redisCfg.Pool.IdleTimeout = config.Redis.Pool.IdleTimeout

	hashStore := kv.NewHashStore(redisCfg, config.Hash.TTL)
	statusStore := kv.NewStatusStore(redisCfg, config.Status.TTL)

	store, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:       config.ObjectStore.Endpoint,
		Bucket:         config.ObjectStore.Bucket,
		Region:         config.ObjectStore.Region,
		AccessKey:      config.ObjectStore.AccessKey,
		SecretKey:      config.ObjectStore.SecretKey,
		ForcePathStyle: config.ObjectStore.ForcePathStyle,
		Secure:         config.ObjectStore.Secure,
	})
	if err != nil {
		return fmt.Errorf("initialize object store: %w", err)
	}

	resolver := topic.New(config.Bus.TopicEvent, config.Bus.TopicMention)

	pub, err := publisher.New(config.Bus.BootstrapServers, statusStore)
	if err != nil {
		return fmt.Errorf("initialize publisher: %w", err)
	}
	defer pub.Close()

	listener := eventbus.NewListener(statusStore, resolver, pub)
	bus := eventbus.New(listener)

	proc := processor.New(httpClient, config.DownloadDir, store, hashStore, bus)
	coord := coordinator.New(httpClient, config.ManifestURL, hashStore, proc)
	scheduler := retry.New(statusStore, resolver, pub, config.Retry.Interval)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(runCtx)
	}()

	trigger := func() {
		if _, err := coord.Tick(runCtx); err != nil {
			log.Errorf("coordinator: tick failed: %v", err)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(config.Check.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				trigger()
			}
		}
	}()

	server := httpapi.New(config.HTTP.Addr, trigger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.ListenAndServe(); err != nil {
			log.Errorf("httpapi: server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(dcontext.DetachedContext(ctx), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("httpapi: shutdown error: %v", err)
	}

	wg.Wait()
	if err := bus.Close(); err != nil {
		log.Warnf("eventbus: close error: %v", err)
	}

	return nil
}

func configureLogging(ctx context.Context, config *configuration.Configuration) context.Context {
	level, err := logrus.ParseLevel(config.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	switch config.Log.Formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339Nano})
	}

	if len(config.Log.Fields) > 0 {
		fields := make(map[any]any, len(config.Log.Fields))
		for k, v := range config.Log.Fields {
			fields[k] = v
		}
		ctx = dcontext.WithLogger(ctx, dcontext.GetLoggerWithFields(ctx, fields))
	}

	dcontext.SetDefaultLogger(dcontext.GetLogger(ctx))
	return ctx
}
