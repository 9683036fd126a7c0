package domain

// WorkItem identifies one source image to process. Produced by the
// ingestion stage, delivered through the queue at least once.
type WorkItem struct {
	Bucket string  `json:"bucket"`
	Key    string  `json:"key"`
	ETag   *string `json:"etag,omitempty"`
}

// ImageMetadata is the sidecar record derived from one image.
// Field order matches the sorted-key canonical JSON layout.
type ImageMetadata struct {
	ETag          *string        `json:"etag"`
	Exif          map[string]any `json:"exif"`
	FileSizeBytes int64          `json:"file_size_bytes"`
	Format        string         `json:"format"`
	Height        int            `json:"height"`
	SourceBucket  string         `json:"source_bucket"`
	SourceKey     string         `json:"source_key"`
	Width         int            `json:"width"`
}

// Outcome classifies the terminal result of one delivery attempt.
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeSkipped
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// BatchSummary is the per-batch rollup returned to the invoking framework.
type BatchSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Add folds a single outcome into the summary.
func (s *BatchSummary) Add(o Outcome) {
	switch o {
	case OutcomeProcessed:
		s.Processed++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeErrored:
		s.Errors++
	}
}
