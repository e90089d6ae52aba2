package domain

import (
	"strings"
	"time"
)

// ProviderUpdate is a provider callback normalized at ingress.
type ProviderUpdate struct {
	ExternalJobID string
	Status        ProviderStatus
	OutputURLs    []string
	Error         string
	Logs          []string
	TotalTime     time.Duration
}

// HasOutput reports whether at least one non-empty output URL is present.
func (u ProviderUpdate) HasOutput() bool {
	for _, s := range u.OutputURLs {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// JobUpdate describes a compare-and-set write against a job record. Nil fields
// keep the stored value.
type JobUpdate struct {
	JobID            string
	FromStatus       JobStatus
	ToStatus         JobStatus
	ResultURLs       []string
	ThumbnailURLs    []string
	ErrorMessage     *string
	CompletedAt      *time.Time
	ProcessingTimeMs *int64

	Progress     *int
	QualityScore *int
	ModelURL     *string
}
