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
	"golang.org/x/sync/errgroup"

	"github.com/mediastor/imgmeta/applications/pipeline"
	minioAdapter "github.com/mediastor/imgmeta/applications/pipeline/adapters/minio"
	"github.com/mediastor/imgmeta/applications/pipeline/adapters/rabbitmq"
	"github.com/mediastor/imgmeta/applications/pipeline/config"
	"github.com/mediastor/imgmeta/applications/pipeline/domain"
	"github.com/mediastor/imgmeta/applications/pipeline/services"
)

// exitCode is a process termination code.
type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1
)

const preStopWait = 5 * time.Second

var objectCreatedEvents = []string{"s3:ObjectCreated:*"}

var (
	// version is the service version from git tag.
	version = ""
)

func main() {
	os.Exit(int(gracefulMain()))
}

// gracefulMain releases resources gracefully upon termination.
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

	if err = store.EnsureBucket(ctx, cfg.Ingest.Bucket); err != nil {
		level.Error(logger).Log("msg", "can't ensure bucket", "err", err)
		return exitFailure
	}

	producer, err := rabbitmq.NewProducer(cfg.Broker.URL, cfg.Broker.Queue, logger)
	if err != nil {
		level.Error(logger).Log("msg", "can't init producer", "err", err)
		return exitFailure
	}
	defer producer.Close()

	var ingestService pipeline.IngestService
	{
		ingestService = services.NewIngestService(producer, cfg.Pipeline.InputPrefix, logger)
	}

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
		return watchBucket(ctx, store, cfg, ingestService, logger)
	})

	if err = group.Wait(); err != nil {
		level.Error(logger).Log("msg", fmt.Sprintf("actors stopped with err: %v", err))
		return exitFailure
	}

	level.Info(logger).Log("msg", "actors stopped without errors")

	return exitSuccess
}

// watchBucket forwards object-created notifications to the ingest service
// until the context is canceled.
func watchBucket(
	ctx context.Context,
	store *minioAdapter.BlobStore,
	cfg config.Worker,
	svc pipeline.IngestService,
	logger log.Logger,
) error {
	notifyCh := store.Client().ListenBucketNotification(
		ctx,
		cfg.Ingest.Bucket,
		cfg.Pipeline.InputPrefix,
		"",
		objectCreatedEvents,
	)

	level.Info(logger).Log("msg", "watching bucket",
		"bucket", cfg.Ingest.Bucket,
		"prefix", cfg.Pipeline.InputPrefix,
	)

	for info := range notifyCh {
		if info.Err != nil {
			return fmt.Errorf("notification stream error: %w", info.Err)
		}

		records := make([]domain.EventRecord, 0, len(info.Records))
		for _, rec := range info.Records {
			records = append(records, domain.EventRecord{
				Bucket: rec.S3.Bucket.Name,
				Key:    rec.S3.Object.Key,
				ETag:   rec.S3.Object.ETag,
			})
		}

		summary := svc.HandleEvent(ctx, records)
		level.Info(logger).Log("msg", "event handled",
			"sent", summary.Sent,
			"skipped", summary.Skipped,
		)
	}

	return ctx.Err()
}

// monitorPanic monitors panics and reports them somewhere (e.g. logs, ...).
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
