package domain

// EventRecord is one object-created notification as delivered by the
// object store. Key arrives URL-encoded.
type EventRecord struct {
	Bucket string
	Key    string
	ETag   string
}

// IngestSummary is the rollup of one notification batch.
type IngestSummary struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
}
