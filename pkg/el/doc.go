// Copyright 2025 Tom Barlow
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

// Package el implements the expression resolution engine: an ordered chain
// of property resolvers, a live function registry, per-scope cached
// evaluation contexts, and the Manager facade that ties them together.
//
// The engine does not parse expression text itself. Parsing and evaluation
// are delegated to an ExpressionFactory (see pkg/expression for the
// expr-lang backed implementation); the engine's job is deterministic name
// resolution: every property lookup walks the same immutable resolver chain
// in the same order, and the first resolver to claim the lookup wins.
//
// Concurrency: the resolver chain is built exactly once per Manager,
// on first use, and is then shared read-only by all evaluation threads.
// The function registry is append-only and safe to read concurrently with
// registration. The per-scope context cache relies on the host contract
// that a single scope is evaluated against by at most one thread at a time.
package el
