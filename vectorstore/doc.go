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


// Package vectorstore defines the namespaced vector store used by the
// pipeline.
//
// Every owner's vectors live in a namespace (core.OwnerNamespace). Vector
// ids are deterministic, so Upsert of an existing id replaces it and
// re-processing a document never duplicates chunks.
//
// Implementations:
//
//   - vectorstore/chromem: embedded store, optionally persisted to disk
//   - vectorstore/pgvector: PostgreSQL with the pgvector extension
//
// vectorstore/storetest holds the behavioural suite both implementations pass.
package vectorstore
