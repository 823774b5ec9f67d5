package notify

import "github.com/poiesic/docpipe/core"

// MessageType names the kind of notification.
type MessageType string

const (
	// TypeDocumentProcessed is sent once a job reaches a terminal status.
	TypeDocumentProcessed MessageType = "document_processed"

	// TypeJobProgress is sent while a job is being processed.
	TypeJobProgress MessageType = "job_progress"
)

// Message is the JSON-encodable notification envelope.
type Message struct {
	Type MessageType `json:"type"`
	Data Data        `json:"data"`
}

// Data is the notification payload. Progress is a percentage in [0, 100].
type Data struct {
	DocumentID string `json:"documentId,omitempty"`
	JobID      string `json:"jobId,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Progress   *int   `json:"progress,omitempty"`
	Message    string `json:"message,omitempty"`
}

// DocumentProcessed builds the terminal notification for a document.
// A non-empty errMsg marks the document as failed.
func DocumentProcessed(doc *core.Document, errMsg string) Message {
	status := core.ProcessingStatusCompleted
	if errMsg != "" {
		status = core.ProcessingStatusFailed
	}
	return Message{
		Type: TypeDocumentProcessed,
		Data: Data{
			DocumentID: doc.ID,
			JobID:      doc.JobID,
			FileName:   doc.FileName,
			Status:     string(status),
			Error:      errMsg,
		},
	}
}

// JobProgress builds a progress notification for a running job.
func JobProgress(job *core.Job, progress int, text string) Message {
	return Message{
		Type: TypeJobProgress,
		Data: Data{
			DocumentID: job.Payload.DocumentID,
			JobID:      job.ID,
			FileName:   job.Payload.FileName,
			Status:     string(core.JobStatusProcessing),
			Progress:   &progress,
			Message:    text,
		},
	}
}
