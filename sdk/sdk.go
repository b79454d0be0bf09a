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

// Package sdk assembles a ready-to-use expression Manager: the expr-lang
// backed factory from pkg/expression wired to the resolution engine in
// pkg/el, with the standard function bindings registered.
//
// Minimal usage:
//
//	mgr, err := sdk.New(sdk.WithBeans(map[string]any{"pricing": pricing}))
//	expr, err := mgr.CreateExpression("${amount * pricing.Rate}")
//	value, err := expr.Evaluate(mgr.Context(s))
package sdk

import (
	"log/slog"
	"time"

	"github.com/tombee/exprkit/internal/jq"
	"github.com/tombee/exprkit/pkg/el"
	"github.com/tombee/exprkit/pkg/expression"
)

type options struct {
	beans            map[string]any
	boundary         el.BoundaryProvider
	logger           *slog.Logger
	cacheLimit       int
	defaultFunctions bool
	jqTimeout        time.Duration
	jqMaxInputSize   int64
}

// Option configures New.
type Option func(*options)

// WithBeans configures the read-only bean map exposed to expressions.
func WithBeans(beans map[string]any) Option {
	return func(o *options) {
		o.beans = beans
	}
}

// WithBoundary configures the host-application isolation boundary provider
// consulted by the delegate resolvers.
func WithBoundary(provider el.BoundaryProvider) Option {
	return func(o *options) {
		o.boundary = provider
	}
}

// WithLogger configures structured logging for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithParseCacheLimit bounds the factory's compiled-expression cache.
func WithParseCacheLimit(n int) Option {
	return func(o *options) {
		o.cacheLimit = n
	}
}

// WithJQLimits bounds the jq function binding: timeout per query and
// maximum JSON-encoded input size in bytes. Zero values keep the defaults.
func WithJQLimits(timeout time.Duration, maxInputSize int64) Option {
	return func(o *options) {
		o.jqTimeout = timeout
		o.jqMaxInputSize = maxInputSize
	}
}

// WithoutDefaultFunctions skips registration of the standard function
// bindings (has, includes, length, jq, uuid).
func WithoutDefaultFunctions() Option {
	return func(o *options) {
		o.defaultFunctions = false
	}
}

// New builds a Manager with the default wiring.
func New(opts ...Option) (*el.Manager, error) {
	o := &options{defaultFunctions: true}
	for _, opt := range opts {
		opt(o)
	}

	registry := el.NewFunctionRegistry()

	factoryOpts := []expression.Option{
		expression.WithFunctions(registry),
	}
	if o.cacheLimit > 0 {
		factoryOpts = append(factoryOpts, expression.WithCacheLimit(o.cacheLimit))
	}
	factory := expression.NewFactory(factoryOpts...)

	mgr, err := el.NewManager(el.Config{
		Factory:   factory,
		Functions: registry,
		Beans:     o.beans,
		Boundary:  o.boundary,
		Logger:    o.logger,
	})
	if err != nil {
		return nil, err
	}

	if o.defaultFunctions {
		executor := jq.NewExecutor(o.jqTimeout, o.jqMaxInputSize)
		for _, b := range expression.DefaultFunctionsWith(executor) {
			if err := mgr.RegisterFunction(b.Name, b.Fn); err != nil {
				return nil, err
			}
		}
	}

	return mgr, nil
}
