// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import "errors"

var (
	// ErrQueueRequired is returned when a job queue is not provided.
	ErrQueueRequired = errors.New("job queue required")

	// ErrDocumentsRequired is returned when a document repository is not provided.
	ErrDocumentsRequired = errors.New("document repository required")

	// ErrBlobsRequired is returned when a blob store is not provided.
	ErrBlobsRequired = errors.New("blob store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrInvalidRetryPolicy is returned for a retry policy with no attempts
	// or negative delays.
	ErrInvalidRetryPolicy = errors.New("invalid retry policy")

	// ErrNoWorkers is returned when a group is created without workers.
	ErrNoWorkers = errors.New("at least one worker required")

	// ErrGroupRunning is returned when Start is called on a running group.
	ErrGroupRunning = errors.New("worker group already running")

	// ErrInvalidReaperConfig is returned for non-positive reaper intervals.
	ErrInvalidReaperConfig = errors.New("invalid reaper configuration")
)
