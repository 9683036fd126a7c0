package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediastor/imgmeta/applications/pipeline/adapters/inmemory"
	"github.com/mediastor/imgmeta/applications/pipeline/domain"
)

func TestHandleEventForwardsWorkItems(t *testing.T) {
	publisher := inmemory.NewPublisher()
	svc := NewIngestService(publisher, "incoming/", log.NewNopLogger())

	summary := svc.HandleEvent(context.Background(), []domain.EventRecord{
		{Bucket: "b", Key: "incoming%2Fphotos%2Fa.jpg", ETag: "\"abc123\""},
	})

	assert.Equal(t, domain.IngestSummary{Sent: 1}, summary)

	published := publisher.Published()
	require.Len(t, published, 1)

	var item domain.WorkItem
	require.NoError(t, json.Unmarshal(published[0], &item))
	assert.Equal(t, "b", item.Bucket)
	assert.Equal(t, "incoming/photos/a.jpg", item.Key)
	require.NotNil(t, item.ETag)
	assert.Equal(t, "abc123", *item.ETag)
}

func TestHandleEventFilters(t *testing.T) {
	publisher := inmemory.NewPublisher()
	svc := NewIngestService(publisher, "incoming/", log.NewNopLogger())

	summary := svc.HandleEvent(context.Background(), []domain.EventRecord{
		{Bucket: "b", Key: "other/a.jpg"},        // wrong prefix
		{Bucket: "b", Key: "incoming/doc.pdf"},   // disallowed extension
		{Bucket: "b", Key: "incoming/%zz.jpg"},   // undecodable key
		{Bucket: "b", Key: "incoming/good.jpeg"}, // forwarded
	})

	assert.Equal(t, domain.IngestSummary{Sent: 1, Skipped: 3}, summary)
	assert.Len(t, publisher.Published(), 1)
}

func TestHandleEventNoETag(t *testing.T) {
	publisher := inmemory.NewPublisher()
	svc := NewIngestService(publisher, "incoming/", log.NewNopLogger())

	summary := svc.HandleEvent(context.Background(), []domain.EventRecord{
		{Bucket: "b", Key: "incoming/a.png"},
	})

	assert.Equal(t, domain.IngestSummary{Sent: 1}, summary)

	var item domain.WorkItem
	require.NoError(t, json.Unmarshal(publisher.Published()[0], &item))
	assert.Nil(t, item.ETag)
}
