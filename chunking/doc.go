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


// Package chunking splits extracted document text into overlapping,
// sentence-bounded chunks and packs those chunks into token-bounded
// embedding batches.
//
// Chunk size and overlap come from a size band chosen by the document's
// total length; larger documents get larger chunks. Token counts are
// estimated as one token per four characters, and every batch stays
// strictly below a safety threshold that sits under the embedding
// provider's hard ceiling. Chunks that would not fit a batch on their own
// are split into parts; nothing is ever dropped for size.
//
// # Usage
//
//	params := chunking.SelectParams(utf8.RuneCountInString(text))
//	chunks := chunking.Split(text, params)
//	batches, err := chunking.PlanBatches(chunks, chunking.DefaultLimits())
package chunking
