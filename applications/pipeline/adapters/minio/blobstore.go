package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mediastor/imgmeta/applications/pipeline/interfaces"
)

// Config holds connection settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// BlobStore implements interfaces.BlobStore on top of a MinIO/S3 endpoint.
type BlobStore struct {
	client *minio.Client
	log    log.Logger
}

func NewBlobStore(cfg Config, logger log.Logger) (*BlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("can't init minio client: %w", err)
	}

	return &BlobStore{client: client, log: logger}, nil
}

func (s *BlobStore) Head(ctx context.Context, bucket, key string) error {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("head %s/%s: %w", bucket, key, interfaces.ErrObjectNotFound)
		}
		return fmt.Errorf("head %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *BlobStore) Get(ctx context.Context, bucket, key string) ([]byte, int64, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}

	level.Debug(s.log).Log("msg", "object fetched",
		"bucket", bucket,
		"key", key,
		"size", humanize.Bytes(uint64(len(data))),
	)

	return data, info.Size, nil
}

func (s *BlobStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}

	return nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *BlobStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("can't check bucket: %w", err)
	}

	if !exists {
		if err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("can't create bucket: %w", err)
		}
		level.Info(s.log).Log("msg", "bucket created", "bucket", bucket)
	}

	return nil
}

// Client exposes the underlying MinIO client for bucket notifications.
func (s *BlobStore) Client() *minio.Client {
	return s.client
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}
