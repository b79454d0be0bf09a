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
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/exprkit/pkg/errors"
	"github.com/tombee/exprkit/pkg/scope"
)

// stubFactory is a minimal ExpressionFactory for exercising the manager
// without the expr-lang backed implementation.
type stubFactory struct{}

func (stubFactory) Parse(text string) (Compiled, error) {
	if strings.HasPrefix(text, "${bad") {
		return nil, &errors.SyntaxError{Expression: text, Message: "unterminated"}
	}
	return text, nil
}

func (stubFactory) Evaluate(compiled Compiled, ectx *Context) (any, error) {
	return compiled, nil
}

func (stubFactory) SetValue(Compiled, *Context, any) error {
	return nil
}

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.Factory == nil {
		cfg.Factory = stubFactory{}
	}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresFactory(t *testing.T) {
	_, err := NewManager(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestManager_CreateExpression(t *testing.T) {
	m := newTestManager(t, Config{})

	expr, err := m.CreateExpression("${amount}")
	require.NoError(t, err)
	assert.Equal(t, "${amount}", expr.Text())

	_, err = m.CreateExpression("${bad")
	require.Error(t, err)
	assert.True(t, errors.IsSyntax(err))
}

func TestManager_ChainOrder(t *testing.T) {
	t.Run("without beans", func(t *testing.T) {
		m := newTestManager(t, Config{})
		assert.Equal(t,
			[]string{"scope", "variables", "mock", "delegate", "array", "slice", "map", "bean_delegate"},
			m.ResolverChain().Names())
	})

	t.Run("with beans", func(t *testing.T) {
		m := newTestManager(t, Config{Beans: map[string]any{"pricing": 1}})
		assert.Equal(t,
			[]string{"scope", "variables", "mock", "bean", "delegate", "array", "slice", "map", "bean_delegate"},
			m.ResolverChain().Names())
	})
}

func TestManager_ChainBuiltExactlyOnce(t *testing.T) {
	m := newTestManager(t, Config{})

	const callers = 32
	chains := make([]*Chain, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			chains[i] = m.ResolverChain()
		}(i)
	}
	start.Done()
	done.Wait()

	first := chains[0]
	require.NotNil(t, first)
	require.Positive(t, first.Len())
	for i := 1; i < callers; i++ {
		// Every caller, including race losers, observes the same
		// fully constructed chain.
		assert.Same(t, first, chains[i])
	}
}

func TestManager_ContextCachedPerScope(t *testing.T) {
	m := newTestManager(t, Config{})
	s := scope.NewMemoryScope()

	first := m.Context(s)
	second := m.Context(s)
	assert.Same(t, first, second)
	assert.Same(t, s, first.Scope())
}

func TestManager_DistinctScopesGetDistinctContexts(t *testing.T) {
	m := newTestManager(t, Config{})

	// Identical variables, distinct identities.
	a := scope.NewMemoryScopeWithVariables(map[string]any{"role": "admin"})
	b := scope.NewMemoryScopeWithVariables(map[string]any{"role": "admin"})

	ca := m.Context(a)
	cb := m.Context(b)
	assert.NotSame(t, ca, cb)

	// Both share the single immutable chain.
	assert.Same(t, ca.Resolvers(), cb.Resolvers())
}

// plainScope implements VariableScope without the ContextCacher slot.
type plainScope struct {
	vars map[string]any
}

func (p *plainScope) ID() string { return "plain" }

func (p *plainScope) GetVariable(name string) (any, bool) {
	v, ok := p.vars[name]
	return v, ok
}

func (p *plainScope) SetVariable(name string, value any) {
	p.vars[name] = value
}

func (p *plainScope) HasVariable(name string) bool {
	_, ok := p.vars[name]
	return ok
}

func (p *plainScope) VariableNames() []string {
	names := make([]string, 0, len(p.vars))
	for n := range p.vars {
		names = append(names, n)
	}
	return names
}

func TestManager_ScopeWithoutCacheSlot(t *testing.T) {
	m := newTestManager(t, Config{})
	s := &plainScope{vars: map[string]any{}}

	first := m.Context(s)
	second := m.Context(s)
	// No cache slot: each call builds a fresh context.
	assert.NotSame(t, first, second)
}

func TestManager_AdHocContextsNeverCached(t *testing.T) {
	m := newTestManager(t, Config{})
	vars := scope.MapVariables{"x": 1}

	first := m.VariableContext(vars)
	second := m.VariableContext(vars)
	assert.NotSame(t, first, second)
	assert.Nil(t, first.Scope())

	v, ok := first.Variables().Resolve("x")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestManager_RegisterFunction(t *testing.T) {
	m := newTestManager(t, Config{})

	err := m.RegisterFunction("", constant(1))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	require.NoError(t, m.RegisterFunction("f", constant(1)))

	// Live reference: a context cached before registration sees it.
	s := scope.NewMemoryScope()
	ectx := m.Context(s)
	require.NoError(t, m.RegisterFunction("late", constant(2)))

	fn, ok := ectx.Functions().Lookup("", "late")
	require.True(t, ok)
	v, _ := fn()
	assert.Equal(t, 2, v)
}

func TestManager_ProviderPublishedOnce(t *testing.T) {
	m := newTestManager(t, Config{})

	const callers = 16
	providers := make([]*Provider, callers)

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			providers[i] = m.Provider()
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, providers[0], providers[i])
	}
}

func TestContext_AmbientSideTable(t *testing.T) {
	m := newTestManager(t, Config{})
	ectx := m.Context(scope.NewMemoryScope())

	type hostKey struct{}
	ectx.Put(hostKey{}, "payload")
	assert.Equal(t, "payload", ectx.Value(hostKey{}))
	assert.Nil(t, ectx.Value("absent"))

	// The factory singleton is pre-bound by the manager.
	assert.NotNil(t, ectx.Factory())
}
