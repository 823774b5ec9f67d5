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


// Package notify delivers best-effort processing notifications to the live
// connections of an owner.
//
// A Manager keeps a private registry of connections per owner. Sends never
// fail the caller: a connection that cannot accept a message is removed
// from the registry and the failure is logged. Nothing is persisted; an
// owner with no live connection simply misses the message and is expected
// to poll document status instead.
package notify
