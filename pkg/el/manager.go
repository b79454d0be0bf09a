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
	"log/slog"
	"sync"

	"github.com/tombee/exprkit/internal/metrics"
	"github.com/tombee/exprkit/pkg/errors"
	"github.com/tombee/exprkit/pkg/scope"
)

// Config configures a Manager.
type Config struct {
	// Factory parses and evaluates expression text. Required.
	Factory ExpressionFactory

	// Functions is the function registry to consult. Optional; a fresh
	// registry is created when nil.
	Functions *FunctionRegistry

	// Beans is the configured read-only name→object map. Optional; when
	// empty, no bean resolver is added to the chain.
	Beans map[string]any

	// Boundary supplies the host-application isolation boundary for
	// delegate resolution. Optional.
	Boundary BoundaryProvider

	// Logger receives structured engine logs. Optional; defaults to a
	// discarding logger.
	Logger *slog.Logger
}

// Manager is the expression engine facade. It owns the function registry,
// lazily builds and publishes the resolver chain exactly once, builds
// evaluation contexts (cached per scope or fresh), and produces parsed
// expression handles from text.
//
// A single Manager is shared by all evaluation threads of the host.
type Manager struct {
	factory   ExpressionFactory
	functions *FunctionRegistry
	beans     map[string]any
	boundary  BoundaryProvider
	logger    *slog.Logger

	// The chain and the provider are published exactly once each, on
	// first use. sync.Once gives the check-lock-check-publish semantics
	// with the memory visibility guarantees built in.
	chainOnce sync.Once
	chain     *Chain

	providerOnce sync.Once
	provider     *Provider
}

// NewManager creates a Manager from the given configuration.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Factory == nil {
		return nil, &errors.ValidationError{
			Field:      "factory",
			Message:    "expression factory is required",
			Suggestion: "pass the expr-lang backed factory from pkg/expression",
		}
	}

	functions := cfg.Functions
	if functions == nil {
		functions = NewFunctionRegistry()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Manager{
		factory:   cfg.Factory,
		functions: functions,
		beans:     cfg.Beans,
		boundary:  cfg.Boundary,
		logger:    logger,
	}, nil
}

// CreateExpression parses text into a reusable handle. Parsing runs in a
// parse-only environment holding just the function registry; no scope is
// bound yet. Malformed text fails with *errors.SyntaxError. The expression
// is not evaluated.
func (m *Manager) CreateExpression(text string) (*ParsedExpression, error) {
	compiled, err := m.factory.Parse(text)
	if err != nil {
		return nil, err
	}
	return &ParsedExpression{
		text:     text,
		manager:  m,
		compiled: compiled,
	}, nil
}

// Context returns the evaluation context for the given scope. The first
// call for a scope builds the context and caches it on the scope when the
// scope supports caching; subsequent calls return the identical context.
//
// The cache slot is a plain store: the host contract that a scope is
// evaluated against by at most one thread at a time makes a synchronized
// structure unnecessary.
func (m *Manager) Context(s scope.VariableScope) *Context {
	cacher, cacheable := s.(scope.ContextCacher)
	if cacheable {
		if cached, ok := cacher.CachedContext().(*Context); ok && cached != nil {
			metrics.RecordContextCache("hit")
			return cached
		}
	}

	ectx := m.newContext()
	ectx.bindScope(s)

	if cacheable {
		cacher.SetCachedContext(ectx)
	}
	metrics.RecordContextCache("miss")
	return ectx
}

// VariableContext returns a fresh evaluation context bound to an ad-hoc
// variable source. Ad-hoc contexts are never cached: there is no stable
// owner to cache against.
func (m *Manager) VariableContext(vars scope.VariableContext) *Context {
	ectx := m.newContext()
	ectx.bindVariables(vars)
	return ectx
}

func (m *Manager) newContext() *Context {
	ectx := newContext(m.ResolverChain(), m.functions)
	ectx.bindFactory(m.factory)
	return ectx
}

// ResolverChain returns the published resolver chain, building it on first
// use. Construction runs exactly once for the Manager's lifetime, even
// under concurrent first use; every caller, including those that lose the
// build race, observes the same fully constructed chain.
func (m *Manager) ResolverChain() *Chain {
	m.chainOnce.Do(func() {
		m.chain = m.buildChain()
		m.logger.Debug("resolver chain built",
			"resolvers", m.chain.Names())
	})
	return m.chain
}

// buildChain instantiates the resolver variants in canonical precedence
// order. The configured-bean resolver is inserted only when beans were
// supplied at construction. Pure function of the manager configuration.
func (m *Manager) buildChain() *Chain {
	resolvers := []Resolver{
		ScopeResolver{},
		VariableContextResolver{},
		MockResolver{},
	}

	if len(m.beans) > 0 {
		resolvers = append(resolvers, NewBeanResolver(m.beans))
	}

	resolvers = append(resolvers,
		NewDelegateResolver(m.boundary),
		ArrayResolver{},
		SliceResolver{},
		MapResolver{},
		NewBeanDelegateResolver(m.boundary),
	)

	return NewChain(resolvers...)
}

// RegisterFunction adds a named callable usable inside expression text.
// Safe to call concurrently with evaluations in progress; the new binding
// is visible to already-cached contexts because they hold the registry by
// reference.
func (m *Manager) RegisterFunction(name string, fn Function) error {
	if err := m.functions.Register(name, fn); err != nil {
		return err
	}
	m.logger.Debug("function registered", "function", name)
	return nil
}

// Functions returns the manager's function registry.
func (m *Manager) Functions() *FunctionRegistry {
	return m.functions
}

// Factory returns the expression factory the manager delegates to.
func (m *Manager) Factory() ExpressionFactory {
	return m.factory
}

// Provider returns the one-shot evaluation facade, building it on first
// use with the same exactly-once discipline as the resolver chain.
func (m *Manager) Provider() *Provider {
	m.providerOnce.Do(func() {
		m.provider = newProvider(m)
	})
	return m.provider
}
