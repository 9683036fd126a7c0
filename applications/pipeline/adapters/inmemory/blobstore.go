package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mediastor/imgmeta/applications/pipeline/interfaces"
)

type object struct {
	data        []byte
	contentType string
}

// BlobStore is a mutex-guarded in-memory object store, used for local
// runs and tests.
type BlobStore struct {
	buckets map[string]map[string]object
	log     log.Logger
	mutex   sync.RWMutex
}

func NewBlobStore(logger log.Logger) *BlobStore {
	return &BlobStore{
		buckets: map[string]map[string]object{},
		log:     logger,
	}
}

func (s *BlobStore) Head(ctx context.Context, bucket, key string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if _, ok := s.buckets[bucket][key]; !ok {
		return fmt.Errorf("head %s/%s: %w", bucket, key, interfaces.ErrObjectNotFound)
	}

	return nil
}

func (s *BlobStore) Get(ctx context.Context, bucket, key string) ([]byte, int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	obj, ok := s.buckets[bucket][key]
	if !ok {
		return nil, 0, fmt.Errorf("get %s/%s: %w", bucket, key, interfaces.ErrObjectNotFound)
	}

	data := make([]byte, len(obj.data))
	copy(data, obj.data)

	return data, int64(len(data)), nil
}

func (s *BlobStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.buckets[bucket]; !ok {
		s.buckets[bucket] = map[string]object{}
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	s.buckets[bucket][key] = object{data: stored, contentType: contentType}

	level.Info(s.log).Log("msg", "object stored",
		"bucket", bucket,
		"key", key,
		"content_type", contentType,
		"size", humanize.Bytes(uint64(len(data))),
	)

	return nil
}

// ContentType returns the stored content type for a key, empty if absent.
func (s *BlobStore) ContentType(bucket, key string) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.buckets[bucket][key].contentType
}
