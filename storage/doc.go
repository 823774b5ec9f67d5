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


// Package storage provides the storage abstraction layer for docpipe.
//
// This package defines the durable job queue, the document repository and
// the raw blob store as interfaces, decoupling the ingestion pipeline from
// the backend. The badger subpackage implements all three on one BadgerDB
// instance.
//
// # Architecture
//
//   - JobQueue: FIFO of durable jobs with an atomic, bounded-wait pop
//   - DocumentRepository: document records indexed by owner
//   - BlobStore: content-addressed raw upload bytes
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	queue, err := badger.NewJobQueue(backend)
//	docs := badger.NewDocumentRepository(backend)
//	blobs := badger.NewBlobStore(backend)
//
// # Thread Safety
//
// All implementations must be safe for concurrent use. Two consumers
// calling Dequeue concurrently never receive the same job.
//
// # Context Support
//
// All methods accept context.Context for cancellation. Dequeue also stops
// waiting when the context is done.
package storage
