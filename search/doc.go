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


// Package search implements the query side of the pipeline.
//
// A Retriever embeds a query with the same embedder used at ingestion,
// asks the vector store for the nearest chunks in the owner's namespace and
// feeds them to the reference aggregator. The result carries the context
// text for a downstream generator and the ranked list of source documents.
//
// Search reports failures to the caller. Context is the lenient variant
// used ahead of generation: failures are logged and an empty result is
// returned so the caller can answer without document context.
package search
