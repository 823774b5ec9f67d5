package core

import (
	"time"
)

// JobType identifies the kind of work carried by a queued job.
type JobType string

const (
	// JobTypeVectorizeDocument turns an uploaded document into stored vectors.
	JobTypeVectorizeDocument JobType = "vectorize_document"
)

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// rank orders statuses for the monotonic transition rule.
// Completed and failed share the terminal rank.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	return s.rank() >= 0
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s.rank() == 2
}

// CanTransition reports whether a job in status s may move to next.
// Re-applying the current status is allowed and acts as a merge.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return next.rank() > s.rank()
}

// JobPayload carries everything a worker needs to process a document.
type JobPayload struct {
	DocumentID  string `json:"documentId"`
	RawBytesRef string `json:"rawBytesRef"`
	FileName    string `json:"filename"`
	MimeType    string `json:"mimeType"`
	OwnerID     string `json:"userId"`
}

// Job is a durable unit of work stored in the job queue.
type Job struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	Payload     JobPayload `json:"payload"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ProcessingStatus is the user-visible state of an uploaded document.
type ProcessingStatus string

const (
	ProcessingStatusQueued     ProcessingStatus = "queued_for_processing"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

// Document is the persistent record of an uploaded file.
type Document struct {
	ID               string
	OwnerID          string
	FileName         string
	FileSize         int64
	MimeType         string
	BlobRef          string
	ProcessingStatus ProcessingStatus
	ChunkCount       int
	ErrorMessage     string
	JobID            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// DocumentStatus is the polling view of a document's processing state.
type DocumentStatus struct {
	DocumentID  string           `json:"documentId"`
	FileName    string           `json:"fileName"`
	Status      ProcessingStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	ChunkCount  int              `json:"chunkCount,omitempty"`
}

// Status returns the polling view of the document.
func (d *Document) Status() DocumentStatus {
	return DocumentStatus{
		DocumentID:  d.ID,
		FileName:    d.FileName,
		Status:      d.ProcessingStatus,
		Error:       d.ErrorMessage,
		CreatedAt:   d.CreatedAt,
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
		ChunkCount:  d.ChunkCount,
	}
}

// ChunkMetadata is stored alongside every vector.
// Page is 1-based; zero means the source format has no pages.
type ChunkMetadata struct {
	DocumentID     string    `json:"docId"`
	OwnerNamespace string    `json:"ownerNamespace"`
	FileName       string    `json:"fileName"`
	ChunkIndex     int       `json:"chunkIndex"`
	Text           string    `json:"text"`
	Page           int       `json:"page,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Vector is an embedded chunk ready for the vector store.
type Vector struct {
	ID       string
	Values   []float32
	Metadata ChunkMetadata
}

// SearchResult is a single nearest-neighbour match.
type SearchResult struct {
	ID       string        `json:"id"`
	Score    float32       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}

// SourceDocumentReference summarises the matches that came from one document.
type SourceDocumentReference struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Pages          []int   `json:"pages"`
	RelevanceScore float32 `json:"relevanceScore"`
	ChunkCount     int     `json:"chunkCount"`
}
