package pipeline

import (
	"context"

	"github.com/mediastor/imgmeta/applications/pipeline/domain"
)

// MetadataService is the processing stage: it turns queued work items into
// metadata sidecar objects, one terminal outcome per delivery attempt.
type MetadataService interface {
	ProcessItem(ctx context.Context, item domain.WorkItem) domain.Outcome
	RunBatch(ctx context.Context, envelopes [][]byte) domain.BatchSummary
}

// IngestService is the ingestion stage: it filters object-created events
// and forwards well-formed work items to the queue.
type IngestService interface {
	HandleEvent(ctx context.Context, records []domain.EventRecord) domain.IngestSummary
}
