package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	minioAdapter "github.com/mediastor/imgmeta/applications/pipeline/adapters/minio"
	"github.com/mediastor/imgmeta/applications/pipeline/adapters/rabbitmq"
	"github.com/mediastor/imgmeta/applications/pipeline/config"
	httpHandlers "github.com/mediastor/imgmeta/applications/pipeline/handlers/http"
	"github.com/mediastor/imgmeta/applications/pipeline/metrics"
	"github.com/mediastor/imgmeta/applications/pipeline/services"
)

// exitCode is a process termination code.
type exitCode int

// Possible process termination codes are listed below.
const (
	// exitSuccess is code for successful program termination.
	exitSuccess exitCode = 0
	// exitFailure is code for unsuccessful program termination.
	exitFailure exitCode = 1
)

// Kubernetes (rolling update) doesn't wait until a pod is out of rotation
// before sending SIGTERM, and external LB could still route traffic to a
// non-existing pod. It's recommended to wait a few seconds before
// terminating the program.
const preStopWait = 5 * time.Second

// Shutdown timeout for the http server.
const shutdownTimeout = 5 * time.Second

var (
	// version is the service version from git tag.
	version = ""
)

func main() {
	os.Exit(int(gracefulMain()))
}

// gracefulMain releases resources gracefully upon termination.
// When we call os.Exit defer statements do not run resulting in unclean
// process shutdown.
// nolint
func gracefulMain() exitCode {
	var logger log.Logger
	{
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")
	v := fs.Bool("v", false, "Show version")

	err := fs.Parse(os.Args[1:])
	if err == flag.ErrHelp {
		return exitSuccess
	}
	if err != nil {
		logger.Log("msg", "parsing cli flags failed", "err", err)
		return exitFailure
	}

	if *v {
		if version == "" {
			level.Error(logger).Log("Version not set")
		} else {
			level.Info(logger).Log("Version: %s\n", version)
		}

		return exitSuccess
	}

	// Local runs keep their settings in .env.
	_ = godotenv.Load()

	logger.Log("configPath", *configPath)

	cfg, err := config.Parse(*configPath)
	if err != nil {
		logger.Log("msg", "cannot parse service config", "err", err)
		return exitFailure
	}

	err = cfg.Validate()
	if err != nil {
		logger.Log("msg", "config validation failed", "err", err)
		return exitFailure
	}

	// It's nice to be able to see panics in logs, hence we monitor for
	// panics after logger has been bootstrapped.
	defer monitorPanic(logger)
	ctx := context.Background()

	store, err := minioAdapter.NewBlobStore(minioAdapter.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	}, logger)
	if err != nil {
		level.Error(logger).Log("msg", "can't init blob store", "err", err)
		return exitFailure
	}

	reg := prometheus.NewRegistry()
	batchMetrics := metrics.NewBatch(reg)

	metadataService := services.NewMetadataService(
		store,
		cfg.Pipeline.InputPrefix,
		cfg.Pipeline.OutputPrefix,
		logger,
	)

	consumer, err := rabbitmq.NewConsumer(
		cfg.Broker.URL,
		cfg.Broker.Queue,
		cfg.Broker.BatchSize,
		cfg.Broker.Interval(),
		metadataService,
		batchMetrics,
		logger,
	)
	if err != nil {
		level.Error(logger).Log("msg", "can't init consumer", "err", err)
		return exitFailure
	}
	defer consumer.Close()

	hServer := httpHandlers.NewHTTPServer(cfg.API, reg, logger)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-sig:
			level.Info(logger).Log("msg", fmt.Sprintf("signal received (waiting %v before terminating): %v", preStopWait, s))
			time.Sleep(preStopWait)
			level.Info(logger).Log("msg", "terminating...")

			return fmt.Errorf("signal received: %s", s)
		}
	})

	group.Go(func() error {
		if err := consumer.Run(ctx); err != nil {
			return fmt.Errorf("consumer error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := hServer.ListenAndServe(); err != nil {
			return fmt.Errorf("listen and server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		level.Info(logger).Log("msg", "graceful shutdown of server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err = hServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		return ctx.Err()
	})

	if err = group.Wait(); err != nil {
		level.Error(logger).Log("msg", fmt.Sprintf("actors stopped with err: %v", err))
		return exitFailure
	}

	level.Info(logger).Log("msg", "actors stopped without errors")

	return exitSuccess
}

// monitorPanic monitors panics and reports them somewhere (e.g. logs, ...).
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
