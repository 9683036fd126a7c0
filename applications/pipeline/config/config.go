package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultInputPrefix   = "incoming/"
	defaultOutputPrefix  = "metadata/"
	defaultBatchSize     = 10
	defaultFlushInterval = "1s"
)

// Worker is the service configuration for both pipeline binaries.
type Worker struct {
	API      Api      `yaml:"api"`
	Broker   Broker   `yaml:"broker"`
	Storage  Storage  `yaml:"storage"`
	Ingest   Ingest   `yaml:"ingest"`
	Pipeline Pipeline `yaml:"pipeline"`
}

type Api struct {
	HTTPAddr string `yaml:"http_addr"`
}

type Broker struct {
	URL       string `yaml:"url"`
	Queue     string `yaml:"queue"`
	BatchSize int    `yaml:"batch_size"`
	// FlushInterval is a time.ParseDuration string.
	FlushInterval string `yaml:"flush_interval"`
}

type Storage struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type Ingest struct {
	Bucket string `yaml:"bucket"`
}

type Pipeline struct {
	InputPrefix  string `yaml:"input_prefix"`
	OutputPrefix string `yaml:"output_prefix"`
}

// Parse reads the yaml config at path, fills defaults and applies
// environment overrides.
func Parse(path string) (Worker, error) {
	cfg := Worker{
		Broker: Broker{
			BatchSize:     defaultBatchSize,
			FlushInterval: defaultFlushInterval,
		},
		Pipeline: Pipeline{
			InputPrefix:  defaultInputPrefix,
			OutputPrefix: defaultOutputPrefix,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Worker{}, fmt.Errorf("can't read config file: %w", err)
		}

		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return Worker{}, fmt.Errorf("can't unmarshal config: %w", err)
		}
	}

	applyEnv(&cfg)

	return cfg, nil
}

// applyEnv overlays the recognized environment options.
func applyEnv(cfg *Worker) {
	overrides := map[string]*string{
		"RABBITMQ_URL":        &cfg.Broker.URL,
		"QUEUE_NAME":          &cfg.Broker.Queue,
		"MINIO_ENDPOINT":      &cfg.Storage.Endpoint,
		"MINIO_ROOT_USER":     &cfg.Storage.AccessKey,
		"MINIO_ROOT_PASSWORD": &cfg.Storage.SecretKey,
		"INPUT_PREFIX":        &cfg.Pipeline.InputPrefix,
		"OUTPUT_PREFIX":       &cfg.Pipeline.OutputPrefix,
	}

	for name, target := range overrides {
		if value := os.Getenv(name); value != "" {
			*target = value
		}
	}
}

func (c Worker) Validate() error {
	if c.API.HTTPAddr == "" {
		return errors.New("api.http_addr is required")
	}
	if c.Broker.URL == "" {
		return errors.New("broker.url is required")
	}
	if c.Broker.Queue == "" {
		return errors.New("broker.queue is required")
	}
	if c.Broker.BatchSize <= 0 {
		return errors.New("broker.batch_size must be positive")
	}
	if _, err := time.ParseDuration(c.Broker.FlushInterval); err != nil {
		return fmt.Errorf("broker.flush_interval is invalid: %w", err)
	}
	if c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint is required")
	}
	if c.Ingest.Bucket == "" {
		return errors.New("ingest.bucket is required")
	}
	if c.Pipeline.InputPrefix == "" {
		return errors.New("pipeline.input_prefix is required")
	}
	if c.Pipeline.OutputPrefix == "" {
		return errors.New("pipeline.output_prefix is required")
	}

	return nil
}

// Interval returns the parsed broker flush interval.
func (b Broker) Interval() time.Duration {
	d, err := time.ParseDuration(b.FlushInterval)
	if err != nil {
		return time.Second
	}

	return d
}
