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

package el

import (
	"sync"
	"sync/atomic"

	"github.com/tombee/exprkit/pkg/errors"
)

// Function is a named callable usable from within expression text.
type Function func(args ...any) (any, error)

// FunctionSource is the read side of a function registry. The expression
// factory consults it when building parse and evaluation environments.
type FunctionSource interface {
	// Lookup returns the first binding registered under localName.
	// prefix is accepted for multi-namespace hosts but unused for
	// matching.
	Lookup(prefix, localName string) (Function, bool)

	// Snapshot returns the current bindings as a name→function map,
	// first registration winning per name.
	Snapshot() map[string]Function
}

type binding struct {
	name string
	fn   Function
}

// FunctionRegistry holds named callable bindings. The binding list is
// append-only and copy-on-write: readers load an immutable snapshot, so a
// lookup racing a registration may miss the newest binding but never
// observes a partially constructed one. Contexts hold the registry by
// reference, which makes late registrations visible to already-cached
// evaluation contexts without invalidation.
type FunctionRegistry struct {
	mu       sync.Mutex
	bindings atomic.Pointer[[]binding]
}

// NewFunctionRegistry creates an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{}
	empty := make([]binding, 0)
	r.bindings.Store(&empty)
	return r
}

// Register appends a binding. Registering is legal at any time, including
// while evaluations are in flight. There is no removal operation.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if name == "" {
		return &errors.ValidationError{
			Field:      "name",
			Message:    "function name cannot be empty",
			Suggestion: "register functions under the name used in expression text",
		}
	}
	if fn == nil {
		return &errors.ValidationError{
			Field:   "fn",
			Message: "function cannot be nil",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.bindings.Load()
	next := make([]binding, len(current), len(current)+1)
	copy(next, current)
	next = append(next, binding{name: name, fn: fn})
	r.bindings.Store(&next)
	return nil
}

// Lookup scans bindings in registration order and returns the first whose
// name equals localName. prefix is ignored for matching.
func (r *FunctionRegistry) Lookup(prefix, localName string) (Function, bool) {
	for _, b := range *r.bindings.Load() {
		if b.name == localName {
			return b.fn, true
		}
	}
	return nil, false
}

// Snapshot returns the current bindings as a map, keeping the first
// registration per name to match Lookup order.
func (r *FunctionRegistry) Snapshot() map[string]Function {
	bindings := *r.bindings.Load()
	out := make(map[string]Function, len(bindings))
	for _, b := range bindings {
		if _, exists := out[b.name]; !exists {
			out[b.name] = b.fn
		}
	}
	return out
}

// Len returns the number of registered bindings.
func (r *FunctionRegistry) Len() int {
	return len(*r.bindings.Load())
}
