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
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/tombee/exprkit/internal/jq"
	"github.com/tombee/exprkit/pkg/el"
)

// Binding pairs a function name with its callable for registration.
type Binding struct {
	Name string
	Fn   el.Function
}

// DefaultFunctions returns the standard function bindings: collection
// helpers, jq queries, and uuid generation. Hosts register them through
// the manager; none are mandatory. jq runs with the default timeout and
// input-size limits; use DefaultFunctionsWith to supply tuned ones.
func DefaultFunctions() []Binding {
	return DefaultFunctionsWith(jq.NewExecutor(0, 0))
}

// DefaultFunctionsWith returns the standard bindings with jq backed by the
// given executor.
func DefaultFunctionsWith(executor *jq.Executor) []Binding {
	return []Binding{
		{Name: "has", Fn: containsFunc},
		{Name: "includes", Fn: containsFunc}, // alias
		{Name: "length", Fn: lenFunc},
		{Name: "jq", Fn: jqFunc(executor)},
		{Name: "uuid", Fn: uuidFunc},
	}
}

// containsFunc checks if a collection contains an element.
// Usage: has(order.tags, "priority")
//
// Supports slices of any type with deep equality, map key presence, and
// substring matching for strings.
func containsFunc(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("has requires exactly 2 arguments, got %d", len(args))
	}

	collection := args[0]
	target := args[1]

	if collection == nil {
		return false, nil
	}

	v := reflect.ValueOf(collection)

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if reflect.DeepEqual(v.Index(i).Interface(), target) {
				return true, nil
			}
		}
		return false, nil

	case reflect.Map:
		mapVal := v.MapIndex(reflect.ValueOf(target))
		return mapVal.IsValid(), nil

	case reflect.String:
		str, ok := collection.(string)
		if !ok {
			return false, nil
		}
		substr, ok := target.(string)
		if !ok {
			return false, nil
		}
		return substr != "" && strings.Contains(str, substr), nil

	default:
		return false, nil
	}
}

// lenFunc returns the length of a collection or string.
// Usage: length(order.items) > 0
func lenFunc(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("length requires exactly 1 argument, got %d", len(args))
	}

	if args[0] == nil {
		return 0, nil
	}

	v := reflect.ValueOf(args[0])

	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return v.Len(), nil
	default:
		return nil, fmt.Errorf("length: unsupported type %T", args[0])
	}
}

// jqFunc adapts the jq executor into a function binding.
// Usage: jq(".items[].id", order)
func jqFunc(executor *jq.Executor) el.Function {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("jq requires exactly 2 arguments, got %d", len(args))
		}
		query, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("jq: first argument must be a query string, got %T", args[0])
		}
		return executor.Execute(context.Background(), query, args[1])
	}
}

// uuidFunc returns a fresh random UUID string.
// Usage: uuid()
func uuidFunc(args ...any) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("uuid takes no arguments, got %d", len(args))
	}
	return uuid.NewString(), nil
}
