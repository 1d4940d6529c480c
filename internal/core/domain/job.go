package domain

import (
	"io"
	"strings"
	"time"
)

type JobStatus string

const (
	StatusSubmitted  JobStatus = "submitted"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusNotFound   JobStatus = "not_found"
)

// IsTerminal reports whether polling ends at this status.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsTransient reports whether the backend simply has not registered the job yet.
func (s JobStatus) IsTransient() bool {
	return s == StatusNotFound
}

type Job struct {
	ID     string         `json:"job_id"`
	Status JobStatus      `json:"status"`
	Result *ResultPayload `json:"result,omitempty"`
}

const DefaultWhisperModelSize = "small"

var whisperModelSizes = []string{"tiny", "base", "small", "medium", "large"}

// NormalizeWhisperModelSize mirrors the backend fallback: unknown sizes become "small".
func NormalizeWhisperModelSize(size string) (string, bool) {
	size = strings.ToLower(strings.TrimSpace(size))
	for _, known := range whisperModelSizes {
		if size == known {
			return size, true
		}
	}
	return DefaultWhisperModelSize, false
}

// Submission is one user request to analyse an audio file.
type Submission struct {
	Filename  string
	Audio     io.Reader
	ModelSize string
}

// FinalResult is the decoded response of the final-result call.
type FinalResult struct {
	Status        JobStatus
	Payload       *ResultPayload
	FailureDetail string
}

type JobEventType string

const (
	EventSubmitted JobEventType = "submitted"
	EventCompleted JobEventType = "completed"
	EventFailed    JobEventType = "failed"
	EventAbandoned JobEventType = "abandoned"
)

// JobEvent is a lifecycle notification for one job.
type JobEvent struct {
	Type      JobEventType `json:"type"`
	JobID     string       `json:"job_id"`
	Status    JobStatus    `json:"status,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
