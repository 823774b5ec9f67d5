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


// Package ai defines the embedding abstraction used by the pipeline.
//
// Workers embed chunk batches through Embedder.EmbedTexts and the search
// path embeds queries through Embedder.EmbedText. Both sides must use the
// same model so that stored and query vectors are comparable.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/mock: deterministic test double
//
// # Vector Helpers
//
// NormalizeVector scales vectors to unit length before they are stored,
// which makes cosine similarity and dot product agree. AverageVectors
// merges the embeddings of the parts of an oversized chunk.
package ai
