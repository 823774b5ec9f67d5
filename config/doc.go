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


// Package config loads the docpipe configuration file.
//
// The file is YAML. Every field is optional: missing sections take the
// values from Default, and a missing file yields the defaults outright.
// Secrets are not stored in the file; the embedding API key is read from
// the environment variable named by embedding.api_key_env.
package config
