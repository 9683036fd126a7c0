package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mediastor/imgmeta/applications/pipeline"
	"github.com/mediastor/imgmeta/applications/pipeline/domain"
	"github.com/mediastor/imgmeta/applications/pipeline/imagemeta"
	"github.com/mediastor/imgmeta/applications/pipeline/interfaces"
)

const metadataContentType = "application/json"

type metadataService struct {
	store        interfaces.BlobStore
	inputPrefix  string
	outputPrefix string
	logger       log.Logger
}

func NewMetadataService(store interfaces.BlobStore, inputPrefix, outputPrefix string, logger log.Logger) pipeline.MetadataService {
	return &metadataService{
		store:        store,
		inputPrefix:  inputPrefix,
		outputPrefix: outputPrefix,
		logger:       logger,
	}
}

// ProcessItem runs one work item to a terminal outcome. No step retries;
// redelivery is the queue's concern.
//
// The existence check is the sole deduplication mechanism. Two racing
// deliveries can both pass it before either writes; that is accepted
// because the record is fully determined by its inputs, so the duplicate
// write is byte-identical.
func (s *metadataService) ProcessItem(ctx context.Context, item domain.WorkItem) domain.Outcome {
	if !strings.HasPrefix(item.Key, s.inputPrefix) || !domain.IsAllowedImage(item.Key) {
		level.Info(s.logger).Log("msg", "skip: key filtered",
			"bucket", item.Bucket,
			"key", item.Key,
		)
		return domain.OutcomeSkipped
	}

	outKey := domain.MapKey(item.Key, s.inputPrefix, s.outputPrefix)

	err := s.store.Head(ctx, item.Bucket, outKey)
	switch {
	case err == nil:
		level.Info(s.logger).Log("msg", "skip: output already exists", "key", outKey)
		return domain.OutcomeSkipped
	case !errors.Is(err, interfaces.ErrObjectNotFound):
		// Anything but a clean miss is indistinguishable from transient
		// infrastructure trouble; don't proceed to fetch.
		level.Error(s.logger).Log("msg", "existence check failed", "key", outKey, "err", err)
		return domain.OutcomeErrored
	}

	data, size, err := s.store.Get(ctx, item.Bucket, item.Key)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't fetch source object",
			"bucket", item.Bucket,
			"key", item.Key,
			"err", err,
		)
		return domain.OutcomeErrored
	}

	info, err := imagemeta.Decode(data)
	if err != nil {
		level.Error(s.logger).Log("msg", "can't decode image", "key", item.Key, "err", err)
		return domain.OutcomeErrored
	}

	meta := domain.ImageMetadata{
		ETag:          item.ETag,
		Exif:          imagemeta.NormalizeTags(data),
		FileSizeBytes: size,
		Format:        info.Format,
		Height:        info.Height,
		SourceBucket:  item.Bucket,
		SourceKey:     item.Key,
		Width:         info.Width,
	}

	body, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		level.Error(s.logger).Log("msg", "can't serialize metadata", "key", outKey, "err", err)
		return domain.OutcomeErrored
	}

	if err = s.store.Put(ctx, item.Bucket, outKey, body, metadataContentType); err != nil {
		level.Error(s.logger).Log("msg", "can't write metadata", "key", outKey, "err", err)
		return domain.OutcomeErrored
	}

	level.Info(s.logger).Log("msg", "metadata written",
		"key", outKey,
		"format", info.Format,
		"source_size", humanize.Bytes(uint64(size)),
	)

	return domain.OutcomeProcessed
}

// RunBatch runs every envelope to a classified outcome. A single item never
// aborts the batch; a summary is always returned.
func (s *metadataService) RunBatch(ctx context.Context, envelopes [][]byte) domain.BatchSummary {
	var summary domain.BatchSummary

	for _, body := range envelopes {
		item, err := decodeEnvelope(body)
		if err != nil {
			level.Error(s.logger).Log("msg", "malformed envelope", "err", err)
			summary.Add(domain.OutcomeErrored)
			continue
		}

		summary.Add(s.ProcessItem(ctx, item))
	}

	return summary
}

func decodeEnvelope(body []byte) (domain.WorkItem, error) {
	var item domain.WorkItem
	if err := json.Unmarshal(body, &item); err != nil {
		return domain.WorkItem{}, fmt.Errorf("can't parse envelope: %w", err)
	}

	if item.Bucket == "" || item.Key == "" {
		return domain.WorkItem{}, errors.New("envelope missing bucket or key")
	}

	return item, nil
}
