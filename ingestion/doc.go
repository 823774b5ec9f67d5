// Package ingestion runs vectorization jobs from the job queue.
//
// A Worker takes one job at a time and moves it through its stages:
//
//   - mark the job and document as processing
//   - load the document record and raw bytes
//   - extract text for the document's format
//   - pick chunk parameters for the text length
//   - split the text into overlapping chunks
//   - embed token-bounded batches of chunks
//   - upsert one vector per chunk into the owner's namespace
//   - record completion, or failure with a user-facing message
//
// The owner is notified when processing starts, after every embedded batch
// and when the job finishes. Delivery is best-effort.
//
// A Group runs several workers against the same queue; exclusivity comes
// from the queue's atomic pop. A Reaper optionally fails jobs whose worker
// stopped reporting and can enqueue a fresh attempt.
package ingestion
