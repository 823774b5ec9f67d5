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


// Package extract turns raw upload bytes into plain text.
//
// A Registry dispatches on core.Format with an exhaustive switch:
//
//   - FormatPlainText: UTF-8 text and markdown, passed through
//   - FormatPDF: per-page text through MuPDF (go-fitz)
//   - FormatDOCX: paragraph text from word/document.xml
//   - FormatLegacyDoc: rejected with a conversion hint
//   - FormatUnknown: rejected as unsupported
//
// Extractors that know page boundaries report them as PageSpans so chunk
// offsets can be mapped back to page numbers.
package extract
