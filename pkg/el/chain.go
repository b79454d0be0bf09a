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
	"github.com/tombee/exprkit/internal/metrics"
)

// Resolver is a strategy that may claim or decline a single property
// lookup. base is nil for top-level lookups; for structural lookups it is
// the container being indexed. Resolvers never fail: a lookup is either
// claimed or declined.
type Resolver interface {
	// Name identifies the resolver in logs and metrics.
	Name() string

	// Resolve attempts the lookup. ok reports whether the resolver
	// claimed it; a claimed lookup may still carry a nil value.
	Resolve(ectx *Context, base, property any) (value any, ok bool)
}

// Writer is implemented by resolvers that support assignment. claimed
// reports whether the resolver took ownership of the write; a claimed
// write may still fail (e.g. a read-only target).
type Writer interface {
	TrySet(ectx *Context, base, property, value any) (claimed bool, err error)
}

// Chain is the fixed, ordered sequence of resolvers consulted for every
// lookup. It is immutable once constructed: the Manager builds it exactly
// once and every evaluation thread shares the same instance.
type Chain struct {
	resolvers []Resolver
}

// NewChain creates a chain over the given resolvers. The slice is copied;
// the chain never changes afterwards.
func NewChain(resolvers ...Resolver) *Chain {
	rs := make([]Resolver, len(resolvers))
	copy(rs, resolvers)
	return &Chain{resolvers: rs}
}

// Resolve consults each resolver in order and returns the first claimed
// value. Later resolvers never see a claimed lookup.
func (c *Chain) Resolve(ectx *Context, base, property any) (any, bool) {
	for _, r := range c.resolvers {
		if value, ok := r.Resolve(ectx, base, property); ok {
			metrics.RecordResolverClaim(r.Name())
			return value, true
		}
	}
	return nil, false
}

// TrySet consults each writable resolver in order. The first resolver to
// claim the write terminates the scan, whether or not the write succeeded.
func (c *Chain) TrySet(ectx *Context, base, property, value any) (bool, error) {
	for _, r := range c.resolvers {
		w, ok := r.(Writer)
		if !ok {
			continue
		}
		if claimed, err := w.TrySet(ectx, base, property, value); claimed {
			return true, err
		}
	}
	return false, nil
}

// Len returns the number of resolvers in the chain.
func (c *Chain) Len() int {
	return len(c.resolvers)
}

// Names returns the resolver names in consultation order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.resolvers))
	for i, r := range c.resolvers {
		names[i] = r.Name()
	}
	return names
}
