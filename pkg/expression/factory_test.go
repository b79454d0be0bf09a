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

package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/exprkit/pkg/el"
	"github.com/tombee/exprkit/pkg/errors"
	"github.com/tombee/exprkit/pkg/scope"
)

// newTestEngine wires a factory to a manager sharing one registry, the
// same shape the sdk package assembles.
func newTestEngine(t *testing.T, beans map[string]any) (*el.Manager, *Factory) {
	t.Helper()

	registry := el.NewFunctionRegistry()
	factory := NewFactory(WithFunctions(registry))
	mgr, err := el.NewManager(el.Config{
		Factory:   factory,
		Functions: registry,
		Beans:     beans,
	})
	require.NoError(t, err)
	return mgr, factory
}

func TestFactory_LiteralText(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)

	expr, err := mgr.CreateExpression("just text")
	require.NoError(t, err)

	v, err := expr.Evaluate(mgr.Context(scope.NewMemoryScope()))
	require.NoError(t, err)
	assert.Equal(t, "just text", v)
}

func TestFactory_SingleExpressionKeepsType(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)
	s := scope.NewMemoryScopeWithVariables(map[string]any{"amount": 42})

	expr, err := mgr.CreateExpression("${amount}")
	require.NoError(t, err)

	v, err := expr.Evaluate(mgr.Context(s))
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFactory_Arithmetic(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)
	s := scope.NewMemoryScopeWithVariables(map[string]any{"amount": 42})

	expr, err := mgr.CreateExpression("${amount * 2 + 1}")
	require.NoError(t, err)

	v, err := expr.Evaluate(mgr.Context(s))
	require.NoError(t, err)
	assert.Equal(t, 85, v)
}

func TestFactory_TemplatesInterpolateToString(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)
	s := scope.NewMemoryScopeWithVariables(map[string]any{
		"name":  "world",
		"count": 3,
	})

	expr, err := mgr.CreateExpression("Hello ${name}, you have ${count} items")
	require.NoError(t, err)

	v, err := expr.Evaluate(mgr.Context(s))
	require.NoError(t, err)
	assert.Equal(t, "Hello world, you have 3 items", v)
}

func TestFactory_SyntaxErrorAtParseOnly(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)

	_, err := mgr.CreateExpression("${amount +}")
	require.Error(t, err)
	assert.True(t, errors.IsSyntax(err))

	_, err = mgr.CreateExpression("${amount")
	require.Error(t, err)
	assert.True(t, errors.IsSyntax(err))
}

func TestFactory_UnresolvableNameFailsEvaluation(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)

	expr, err := mgr.CreateExpression("${undeclared}")
	require.NoError(t, err)

	_, err = expr.Evaluate(mgr.Context(scope.NewMemoryScope()))
	require.Error(t, err)

	var resolution *errors.ResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, "undeclared", resolution.Property)
}

func TestFactory_ChainPrecedence_ScopeVariableBeatsBean(t *testing.T) {
	mgr, _ := newTestEngine(t, map[string]any{"x": "bean"})
	s := scope.NewMemoryScopeWithVariables(map[string]any{"x": "variable"})

	expr, err := mgr.CreateExpression("${x}")
	require.NoError(t, err)

	v, err := expr.Evaluate(mgr.Context(s))
	require.NoError(t, err)
	assert.Equal(t, "variable", v)

	// Without the variable, the bean resolves.
	v, err = expr.Evaluate(mgr.Context(scope.NewMemoryScope()))
	require.NoError(t, err)
	assert.Equal(t, "bean", v)
}

func TestFactory_BeanNavigation(t *testing.T) {
	type pricing struct {
		Rate float64
	}
	mgr, _ := newTestEngine(t, map[string]any{"pricing": pricing{Rate: 1.5}})

	expr, err := mgr.CreateExpression("${pricing.Rate * 2}")
	require.NoError(t, err)

	v, err := expr.Evaluate(mgr.Context(scope.NewMemoryScope()))
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

func TestFactory_MapAndSliceNavigation(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)
	s := scope.NewMemoryScopeWithVariables(map[string]any{
		"order": map[string]any{
			"items": []any{
				map[string]any{"sku": "a-1"},
				map[string]any{"sku": "b-2"},
			},
		},
	})

	expr, err := mgr.CreateExpression(`${order.items[1].sku}`)
	require.NoError(t, err)

	v, err := expr.Evaluate(mgr.Context(s))
	require.NoError(t, err)
	assert.Equal(t, "b-2", v)
}

func TestFactory_FunctionsResolveFromLiveRegistry(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)

	// Parse before the function exists.
	expr, err := mgr.CreateExpression("${double(21)}")
	require.NoError(t, err)
	ectx := mgr.Context(scope.NewMemoryScope())

	_, err = expr.Evaluate(ectx)
	require.Error(t, err)

	require.NoError(t, mgr.RegisterFunction("double", func(args ...any) (any, error) {
		return args[0].(int) * 2, nil
	}))

	// Same handle, same cached context: the late binding is visible.
	v, err := expr.Evaluate(ectx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFactory_ScopeVariableShadowedByCalledFunction(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)
	require.NoError(t, mgr.RegisterFunction("f", func(args ...any) (any, error) {
		return "function", nil
	}))

	s := scope.NewMemoryScopeWithVariables(map[string]any{"f": "variable"})

	called, err := mgr.CreateExpression("${f()}")
	require.NoError(t, err)
	v, err := called.Evaluate(mgr.Context(s))
	require.NoError(t, err)
	assert.Equal(t, "function", v)

	// Referenced without a call, the chain wins.
	referenced, err := mgr.CreateExpression("${f}")
	require.NoError(t, err)
	v, err = referenced.Evaluate(mgr.Context(s))
	require.NoError(t, err)
	assert.Equal(t, "variable", v)
}

func TestFactory_DeadBranchNamesStillResolved(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)
	s := scope.NewMemoryScopeWithVariables(map[string]any{
		"flag": true,
		"a":    1,
	})

	// Name resolution is eager: every referenced identifier must resolve
	// before the VM runs, even one only reachable through the branch the
	// condition short-circuits away.
	expr, err := mgr.CreateExpression("${flag ? a : missing}")
	require.NoError(t, err)

	_, err = expr.Evaluate(mgr.Context(s))
	require.Error(t, err)

	var resolution *errors.ResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, "missing", resolution.Property)
}

func TestFactory_LetBindingsAreNotResolved(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)
	s := scope.NewMemoryScopeWithVariables(map[string]any{"amount": 3})

	expr, err := mgr.CreateExpression("${let doubled = amount * 2; doubled + 1}")
	require.NoError(t, err)

	v, err := expr.Evaluate(mgr.Context(s))
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestFactory_SetValue(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)

	t.Run("variable write", func(t *testing.T) {
		s := scope.NewMemoryScopeWithVariables(map[string]any{"amount": 1})
		expr, err := mgr.CreateExpression("${amount}")
		require.NoError(t, err)

		require.NoError(t, expr.SetValue(mgr.Context(s), 42))
		v, _ := s.GetVariable("amount")
		assert.Equal(t, 42, v)
	})

	t.Run("undeclared name is not created", func(t *testing.T) {
		s := scope.NewMemoryScope()
		expr, err := mgr.CreateExpression("${amount}")
		require.NoError(t, err)

		err = expr.SetValue(mgr.Context(s), 42)
		require.Error(t, err)
		assert.True(t, errors.IsResolution(err))
		assert.False(t, s.HasVariable("amount"))
	})

	t.Run("nested map write", func(t *testing.T) {
		s := scope.NewMemoryScopeWithVariables(map[string]any{
			"order": map[string]any{"status": "open"},
		})
		expr, err := mgr.CreateExpression("${order.status}")
		require.NoError(t, err)

		require.NoError(t, expr.SetValue(mgr.Context(s), "closed"))
		order, ok := s.GetVariable("order")
		require.True(t, ok)
		assert.Equal(t, "closed", order.(map[string]any)["status"])
	})

	t.Run("non-writable expression", func(t *testing.T) {
		s := scope.NewMemoryScope()
		expr, err := mgr.CreateExpression("${1 + 2}")
		require.NoError(t, err)

		err = expr.SetValue(mgr.Context(s), 9)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("template is not writable", func(t *testing.T) {
		s := scope.NewMemoryScope()
		expr, err := mgr.CreateExpression("total: ${amount}")
		require.NoError(t, err)

		err = expr.SetValue(mgr.Context(s), 9)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})
}

func TestFactory_SetValueBeanWriteRejected(t *testing.T) {
	mgr, _ := newTestEngine(t, map[string]any{"rate": 1.5})
	s := scope.NewMemoryScope()

	expr, err := mgr.CreateExpression("${rate}")
	require.NoError(t, err)

	// The scope never declared "rate": the write reaches the read-only
	// bean resolver and fails there instead of minting a shadow variable.
	err = expr.SetValue(mgr.Context(s), 99)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.False(t, s.HasVariable("rate"))

	v, err := expr.Evaluate(mgr.Context(s))
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestFactory_ParseCache(t *testing.T) {
	_, factory := newTestEngine(t, nil)

	first, err := factory.Parse("${amount}")
	require.NoError(t, err)
	second, err := factory.Parse("${amount}")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, factory.CacheSize())

	factory.ClearCache()
	assert.Equal(t, 0, factory.CacheSize())
}

func TestFactory_CacheLimit(t *testing.T) {
	registry := el.NewFunctionRegistry()
	factory := NewFactory(WithFunctions(registry), WithCacheLimit(1))

	_, err := factory.Parse("${a}")
	require.NoError(t, err)
	_, err = factory.Parse("${b}")
	require.NoError(t, err)

	// The second expression still compiles, it just is not retained.
	assert.Equal(t, 1, factory.CacheSize())
}

func TestFactory_EvaluationErrorWrapsCause(t *testing.T) {
	mgr, _ := newTestEngine(t, nil)
	require.NoError(t, mgr.RegisterFunction("boom", func(args ...any) (any, error) {
		return nil, assert.AnError
	}))

	expr, err := mgr.CreateExpression("${boom()}")
	require.NoError(t, err)

	_, err = expr.Evaluate(mgr.Context(scope.NewMemoryScope()))
	require.Error(t, err)

	var evalErr *errors.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.ErrorIs(t, err, assert.AnError)
}
