package services

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mediastor/imgmeta/applications/pipeline"
	"github.com/mediastor/imgmeta/applications/pipeline/domain"
	"github.com/mediastor/imgmeta/applications/pipeline/interfaces"
)

type ingestService struct {
	publisher   interfaces.Publisher
	inputPrefix string
	logger      log.Logger
}

func NewIngestService(publisher interfaces.Publisher, inputPrefix string, logger log.Logger) pipeline.IngestService {
	return &ingestService{
		publisher:   publisher,
		inputPrefix: inputPrefix,
		logger:      logger,
	}
}

// HandleEvent filters object-created records and forwards work items to
// the queue. Records outside the input prefix or without a recognized
// image extension are skipped.
func (s *ingestService) HandleEvent(ctx context.Context, records []domain.EventRecord) domain.IngestSummary {
	var summary domain.IngestSummary

	for _, rec := range records {
		key, err := url.QueryUnescape(rec.Key)
		if err != nil {
			level.Error(s.logger).Log("msg", "can't decode object key", "key", rec.Key, "err", err)
			summary.Skipped++
			continue
		}

		if !strings.HasPrefix(key, s.inputPrefix) {
			level.Info(s.logger).Log("msg", "skip: wrong prefix", "key", key)
			summary.Skipped++
			continue
		}

		if !domain.IsAllowedImage(key) {
			level.Info(s.logger).Log("msg", "skip: not allowed extension", "key", key)
			summary.Skipped++
			continue
		}

		item := domain.WorkItem{Bucket: rec.Bucket, Key: key}
		if rec.ETag != "" {
			etag := strings.Trim(rec.ETag, "\"")
			item.ETag = &etag
		}

		body, err := json.Marshal(item)
		if err != nil {
			level.Error(s.logger).Log("msg", "can't marshal work item", "key", key, "err", err)
			summary.Skipped++
			continue
		}

		if err = s.publisher.Publish(ctx, body); err != nil {
			level.Error(s.logger).Log("msg", "can't publish work item", "key", key, "err", err)
			summary.Skipped++
			continue
		}

		level.Info(s.logger).Log("msg", "work item queued", "bucket", rec.Bucket, "key", key)
		summary.Sent++
	}

	return summary
}
