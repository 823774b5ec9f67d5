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


package badger

// MemoryStores bundles in-memory storage implementations for tests.
type MemoryStores struct {
	Backend   *Backend
	Queue     *JobQueue
	Documents *DocumentRepository
	Blobs     *BlobStore
}

// Close releases the queue and the backend.
func (m *MemoryStores) Close() error {
	if err := m.Queue.Close(); err != nil {
		m.Backend.Close()
		return err
	}
	return m.Backend.Close()
}

// NewMemoryStores creates in-memory queue, document and blob stores for testing.
// Caller must Close the result when done.
func NewMemoryStores(opts ...QueueOption) (*MemoryStores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	queue, err := NewJobQueue(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &MemoryStores{
		Backend:   backend,
		Queue:     queue,
		Documents: NewDocumentRepository(backend),
		Blobs:     NewBlobStore(backend),
	}, nil
}
