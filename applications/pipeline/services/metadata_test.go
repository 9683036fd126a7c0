package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastor/imgmeta/applications/pipeline/adapters/inmemory"
	"github.com/mediastor/imgmeta/applications/pipeline/domain"
	"github.com/mediastor/imgmeta/applications/pipeline/interfaces"
)

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	err := jpeg.Encode(buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil)
	require.NoError(t, err)

	return buf.Bytes()
}

// stubStore injects failures and records calls; the zero value reports
// every key as absent.
type stubStore struct {
	headErr   error
	getCalled bool
	putErr    error
	data      []byte
}

func (s *stubStore) Head(ctx context.Context, bucket, key string) error {
	if s.headErr != nil {
		return s.headErr
	}
	return nil
}

func (s *stubStore) Get(ctx context.Context, bucket, key string) ([]byte, int64, error) {
	s.getCalled = true
	return s.data, int64(len(s.data)), nil
}

func (s *stubStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	return s.putErr
}

func TestProcessItemWritesSidecar(t *testing.T) {
	logger := log.NewNopLogger()
	store := inmemory.NewBlobStore(logger)
	svc := NewMetadataService(store, "incoming/", "metadata/", logger)

	source := encodeJPEG(t, 10, 20)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "b", "incoming/photos/a.jpg", source, "image/jpeg"))

	etag := "abc123"
	item := domain.WorkItem{Bucket: "b", Key: "incoming/photos/a.jpg", ETag: &etag}

	outcome := svc.ProcessItem(ctx, item)
	assert.Equal(t, domain.OutcomeProcessed, outcome)

	stored, _, err := store.Get(ctx, "b", "metadata/photos/a.jpg.json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", store.ContentType("b", "metadata/photos/a.jpg.json"))

	want, err := json.MarshalIndent(domain.ImageMetadata{
		ETag:          &etag,
		Exif:          map[string]any{},
		FileSizeBytes: int64(len(source)),
		Format:        "JPEG",
		Height:        20,
		SourceBucket:  "b",
		SourceKey:     "incoming/photos/a.jpg",
		Width:         10,
	}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, want, stored)
}

func TestProcessItemIdempotent(t *testing.T) {
	logger := log.NewNopLogger()
	store := inmemory.NewBlobStore(logger)
	svc := NewMetadataService(store, "incoming/", "metadata/", logger)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "b", "incoming/a.jpg", encodeJPEG(t, 5, 5), "image/jpeg"))

	item := domain.WorkItem{Bucket: "b", Key: "incoming/a.jpg"}

	assert.Equal(t, domain.OutcomeProcessed, svc.ProcessItem(ctx, item))

	first, _, err := store.Get(ctx, "b", "metadata/a.jpg.json")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSkipped, svc.ProcessItem(ctx, item))

	second, _, err := store.Get(ctx, "b", "metadata/a.jpg.json")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProcessItemSkipsExistingOutputWithoutFetch(t *testing.T) {
	logger := log.NewNopLogger()
	store := &stubStore{} // Head reports the output present
	svc := NewMetadataService(store, "incoming/", "metadata/", logger)

	outcome := svc.ProcessItem(context.Background(), domain.WorkItem{Bucket: "b", Key: "incoming/a.jpg"})

	assert.Equal(t, domain.OutcomeSkipped, outcome)
	assert.False(t, store.getCalled)
}

func TestProcessItemExistenceCheckFailure(t *testing.T) {
	logger := log.NewNopLogger()
	store := &stubStore{headErr: errors.New("access denied")}
	svc := NewMetadataService(store, "incoming/", "metadata/", logger)

	outcome := svc.ProcessItem(context.Background(), domain.WorkItem{Bucket: "b", Key: "incoming/a.jpg"})

	assert.Equal(t, domain.OutcomeErrored, outcome)
	assert.False(t, store.getCalled)
}

func TestProcessItemFilters(t *testing.T) {
	logger := log.NewNopLogger()
	store := inmemory.NewBlobStore(logger)
	svc := NewMetadataService(store, "incoming/", "metadata/", logger)
	ctx := context.Background()

	// disallowed extension
	assert.Equal(t, domain.OutcomeSkipped,
		svc.ProcessItem(ctx, domain.WorkItem{Bucket: "b", Key: "incoming/doc.pdf"}))

	// wrong prefix
	assert.Equal(t, domain.OutcomeSkipped,
		svc.ProcessItem(ctx, domain.WorkItem{Bucket: "b", Key: "other/a.jpg"}))
}

func TestProcessItemFetchFailure(t *testing.T) {
	logger := log.NewNopLogger()
	store := inmemory.NewBlobStore(logger)
	svc := NewMetadataService(store, "incoming/", "metadata/", logger)

	// source object missing
	outcome := svc.ProcessItem(context.Background(), domain.WorkItem{Bucket: "b", Key: "incoming/a.jpg"})

	assert.Equal(t, domain.OutcomeErrored, outcome)
}

func TestProcessItemDecodeFailure(t *testing.T) {
	logger := log.NewNopLogger()
	store := inmemory.NewBlobStore(logger)
	svc := NewMetadataService(store, "incoming/", "metadata/", logger)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "b", "incoming/a.jpg", []byte("not an image"), "image/jpeg"))

	outcome := svc.ProcessItem(ctx, domain.WorkItem{Bucket: "b", Key: "incoming/a.jpg"})

	assert.Equal(t, domain.OutcomeErrored, outcome)
}

func TestProcessItemWriteFailure(t *testing.T) {
	logger := log.NewNopLogger()
	store := &stubStore{
		headErr: interfaces.ErrObjectNotFound,
		putErr:  errors.New("write denied"),
		data:    encodeJPEG(t, 2, 2),
	}
	svc := NewMetadataService(store, "incoming/", "metadata/", logger)

	outcome := svc.ProcessItem(context.Background(), domain.WorkItem{Bucket: "b", Key: "incoming/a.jpg"})

	assert.Equal(t, domain.OutcomeErrored, outcome)
	assert.True(t, store.getCalled)
}

func TestRunBatchIsolation(t *testing.T) {
	logger := log.NewNopLogger()
	store := inmemory.NewBlobStore(logger)
	svc := NewMetadataService(store, "incoming/", "metadata/", logger)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "b", "incoming/good.jpg", encodeJPEG(t, 4, 4), "image/jpeg"))

	malformed := []byte(`{"bucket":"b"}`) // missing key
	valid := []byte(`{"bucket":"b","key":"incoming/good.jpg"}`)

	summary := svc.RunBatch(ctx, [][]byte{malformed, valid})
	assert.Equal(t, domain.BatchSummary{Processed: 1, Errors: 1}, summary)

	// order does not change the aggregate; the valid item is now skipped
	// because its sidecar exists
	summary = svc.RunBatch(ctx, [][]byte{valid, malformed})
	assert.Equal(t, domain.BatchSummary{Skipped: 1, Errors: 1}, summary)
}

func TestRunBatchMalformedEnvelopes(t *testing.T) {
	logger := log.NewNopLogger()
	svc := NewMetadataService(inmemory.NewBlobStore(logger), "incoming/", "metadata/", logger)

	summary := svc.RunBatch(context.Background(), [][]byte{
		[]byte("not json"),
		[]byte(`{}`),
		[]byte(`{"key":"incoming/a.jpg"}`), // missing bucket
	})

	assert.Equal(t, domain.BatchSummary{Errors: 3}, summary)
}
