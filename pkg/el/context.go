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
	"github.com/tombee/exprkit/pkg/scope"
)

// Ambient capability keys. Unexported struct types keep the side-table
// collision-free without string constants.
type (
	scopeKey     struct{}
	variablesKey struct{}
	factoryKey   struct{}
)

// Context is the per-evaluation bundle: the shared resolver chain, the
// shared function registry, and a side-table of ambient singletons (the
// active scope, the expression factory, host extensions).
//
// A Context retrieved from the per-scope cache is shared by every caller
// presenting the same scope and lives as long as the scope does. A Context
// built for an ad-hoc variable source is owned by its caller alone.
type Context struct {
	resolvers *Chain
	functions *FunctionRegistry
	ambient   map[any]any
}

func newContext(resolvers *Chain, functions *FunctionRegistry) *Context {
	return &Context{
		resolvers: resolvers,
		functions: functions,
		ambient:   make(map[any]any),
	}
}

// Resolvers returns the resolver chain.
func (c *Context) Resolvers() *Chain {
	return c.resolvers
}

// Functions returns the function registry. The registry is held by
// reference: bindings registered after this context was built are visible
// through it.
func (c *Context) Functions() *FunctionRegistry {
	return c.functions
}

// Scope returns the active variable scope, or nil for ad-hoc contexts.
func (c *Context) Scope() scope.VariableScope {
	s, _ := c.ambient[scopeKey{}].(scope.VariableScope)
	return s
}

// Variables returns the ad-hoc variable source, or nil for scope-bound
// contexts.
func (c *Context) Variables() scope.VariableContext {
	v, _ := c.ambient[variablesKey{}].(scope.VariableContext)
	return v
}

// Factory returns the expression factory that evaluations delegate to.
func (c *Context) Factory() ExpressionFactory {
	f, _ := c.ambient[factoryKey{}].(ExpressionFactory)
	return f
}

// Put stores a host-defined ambient singleton under key. Keys follow the
// context.Context convention: use an unexported type to avoid collisions.
func (c *Context) Put(key, value any) {
	c.ambient[key] = value
}

// Value returns the ambient singleton stored under key, or nil.
func (c *Context) Value(key any) any {
	return c.ambient[key]
}

func (c *Context) bindScope(s scope.VariableScope) {
	c.ambient[scopeKey{}] = s
}

func (c *Context) bindVariables(v scope.VariableContext) {
	c.ambient[variablesKey{}] = v
}

func (c *Context) bindFactory(f ExpressionFactory) {
	c.ambient[factoryKey{}] = f
}
