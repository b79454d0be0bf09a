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
	"fmt"
	"math"

	"github.com/tombee/exprkit/pkg/errors"
)

// Compiled is the opaque compiled form an ExpressionFactory hands back
// from Parse and consumes in Evaluate and SetValue.
type Compiled any

// ExpressionFactory parses expression text and evaluates compiled forms
// against evaluation contexts. The engine invokes it; it does not
// implement it. Implementations resolve every property and variable access
// through the context's resolver chain.
type ExpressionFactory interface {
	// Parse compiles text. Malformed text fails with
	// *errors.SyntaxError.
	Parse(text string) (Compiled, error)

	// Evaluate evaluates a compiled form against the context. An
	// unresolvable name fails with *errors.ResolutionError.
	Evaluate(compiled Compiled, ectx *Context) (any, error)

	// SetValue assigns through a writable compiled form (a variable or
	// navigable path). Non-writable forms fail with
	// *errors.ValidationError.
	SetValue(compiled Compiled, ectx *Context, value any) error
}

// ParsedExpression binds expression text to the manager that created it.
// The handle is immutable and holds no per-evaluation state: the same
// handle may be evaluated against many contexts, concurrently.
type ParsedExpression struct {
	text     string
	manager  *Manager
	compiled Compiled
}

// Text returns the original expression source text.
func (e *ParsedExpression) Text() string {
	return e.text
}

// Evaluate evaluates the expression against the given context.
func (e *ParsedExpression) Evaluate(ectx *Context) (any, error) {
	return e.manager.factory.Evaluate(e.compiled, ectx)
}

// SetValue assigns value through the expression, which must denote a
// writable variable or navigable path.
func (e *ParsedExpression) SetValue(ectx *Context, value any) error {
	return e.manager.factory.SetValue(e.compiled, ectx, value)
}

// EvaluateString evaluates and coerces the result to a string. Primitive
// results are formatted; nil and composite values fail with
// *errors.CoercionError.
func (e *ParsedExpression) EvaluateString(ectx *Context) (string, error) {
	v, err := e.Evaluate(ectx)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", s), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return "", &errors.CoercionError{Value: v, TargetType: "string"}
}

// EvaluateBool evaluates and requires a boolean result.
func (e *ParsedExpression) EvaluateBool(ectx *Context) (bool, error) {
	v, err := e.Evaluate(ectx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &errors.CoercionError{Value: v, TargetType: "bool"}
	}
	return b, nil
}

// EvaluateInt evaluates and coerces the result to an int. Floats convert
// only when integral.
func (e *ParsedExpression) EvaluateInt(ectx *Context) (int, error) {
	v, err := e.Evaluate(ectx)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	case float32:
		if float64(n) == math.Trunc(float64(n)) {
			return int(n), nil
		}
	}
	return 0, &errors.CoercionError{Value: v, TargetType: "int"}
}

// EvaluateFloat evaluates and coerces the result to a float64.
func (e *ParsedExpression) EvaluateFloat(ectx *Context) (float64, error) {
	v, err := e.Evaluate(ectx)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	}
	return 0, &errors.CoercionError{Value: v, TargetType: "float64"}
}
