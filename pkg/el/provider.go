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

	"github.com/tombee/exprkit/pkg/scope"
)

// Provider is a one-shot evaluation facade over the Manager, for hosts
// (condition gates, mapping rules) that evaluate text directly instead of
// managing ParsedExpression handles. Parsed handles are cached per source
// text under a read-write lock, so repeated conditions compile once.
type Provider struct {
	manager *Manager

	mu    sync.RWMutex
	cache map[string]*ParsedExpression
}

func newProvider(m *Manager) *Provider {
	return &Provider{
		manager: m,
		cache:   make(map[string]*ParsedExpression),
	}
}

// Evaluate parses (or reuses) text and evaluates it against the scope's
// cached context.
func (p *Provider) Evaluate(text string, s scope.VariableScope) (any, error) {
	expr, err := p.expression(text)
	if err != nil {
		return nil, err
	}
	return expr.Evaluate(p.manager.Context(s))
}

// EvaluateVariables parses (or reuses) text and evaluates it against an
// ad-hoc variable source.
func (p *Provider) EvaluateVariables(text string, vars scope.VariableContext) (any, error) {
	expr, err := p.expression(text)
	if err != nil {
		return nil, err
	}
	return expr.Evaluate(p.manager.VariableContext(vars))
}

func (p *Provider) expression(text string) (*ParsedExpression, error) {
	p.mu.RLock()
	if expr, ok := p.cache[text]; ok {
		p.mu.RUnlock()
		return expr, nil
	}
	p.mu.RUnlock()

	expr, err := p.manager.CreateExpression(text)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[text] = expr
	p.mu.Unlock()

	return expr, nil
}

// CacheSize returns the number of cached parsed expressions.
func (p *Provider) CacheSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}

// ClearCache drops all cached parsed expressions.
func (p *Provider) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]*ParsedExpression)
}
