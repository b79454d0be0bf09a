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

// Package scope defines the variable scope abstractions the expression
// engine resolves against, plus reference implementations.
//
// A VariableScope is typically tied to one unit of executing work in the
// host system (an execution, a task). The engine only depends on the
// interfaces here; hosts plug in their own implementations.
package scope

import (
	"github.com/google/uuid"
)

// VariableScope exposes named variables visible to expression evaluation.
//
// Host contract: a given scope is evaluated against by at most one thread
// at a time. Implementations are not required to synchronize Get/Set for
// concurrent writers to the same scope.
type VariableScope interface {
	// ID returns the stable identity of the scope.
	ID() string

	// GetVariable returns the named variable and whether it exists.
	GetVariable(name string) (any, bool)

	// SetVariable creates or updates the named variable.
	SetVariable(name string, value any)

	// HasVariable reports whether the named variable exists.
	HasVariable(name string) bool

	// VariableNames returns the names of all variables in the scope.
	VariableNames() []string
}

// ContextCacher is implemented by scopes that carry a single-slot cache for
// the evaluation context built against them. The slot holds the context
// opaquely; the engine owns what goes in it.
//
// Caching a context on the scope (rather than in a global map keyed by
// scope) ties the context's lifetime to the scope's own lifetime.
type ContextCacher interface {
	// CachedContext returns the previously stored context, or nil.
	CachedContext() any

	// SetCachedContext stores the context on the scope.
	SetCachedContext(ctx any)
}

// VariableContext is a read-only name→value source not tied to a scope,
// used for ad-hoc evaluations against externally supplied variables.
type VariableContext interface {
	// Resolve returns the named value and whether it exists.
	Resolve(name string) (any, bool)
}

// MapVariables is a VariableContext over a plain map.
type MapVariables map[string]any

// Resolve implements VariableContext.
func (m MapVariables) Resolve(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// MemoryScope is an in-memory VariableScope with a cached-context slot.
// It honors the single-writer host contract and therefore performs no
// internal locking.
type MemoryScope struct {
	id        string
	variables map[string]any
	cached    any
}

// NewMemoryScope creates an empty in-memory scope with a generated ID.
func NewMemoryScope() *MemoryScope {
	return &MemoryScope{
		id:        uuid.NewString(),
		variables: make(map[string]any),
	}
}

// NewMemoryScopeWithVariables creates an in-memory scope seeded with the
// given variables.
func NewMemoryScopeWithVariables(vars map[string]any) *MemoryScope {
	s := NewMemoryScope()
	for k, v := range vars {
		s.variables[k] = v
	}
	return s
}

// ID returns the scope identity.
func (s *MemoryScope) ID() string {
	return s.id
}

// GetVariable returns the named variable and whether it exists.
func (s *MemoryScope) GetVariable(name string) (any, bool) {
	v, ok := s.variables[name]
	return v, ok
}

// SetVariable creates or updates the named variable.
func (s *MemoryScope) SetVariable(name string, value any) {
	s.variables[name] = value
}

// HasVariable reports whether the named variable exists.
func (s *MemoryScope) HasVariable(name string) bool {
	_, ok := s.variables[name]
	return ok
}

// VariableNames returns the names of all variables in the scope.
func (s *MemoryScope) VariableNames() []string {
	names := make([]string, 0, len(s.variables))
	for name := range s.variables {
		names = append(names, name)
	}
	return names
}

// CachedContext implements ContextCacher.
func (s *MemoryScope) CachedContext() any {
	return s.cached
}

// SetCachedContext implements ContextCacher.
func (s *MemoryScope) SetCachedContext(ctx any) {
	s.cached = ctx
}
