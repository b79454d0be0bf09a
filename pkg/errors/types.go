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

package errors

import (
	"fmt"
)

// ValidationError represents invalid input supplied by the embedding host.
// Use this for bad configuration values, empty function names, or other
// constraint violations detected before evaluation.
type ValidationError struct {
	// Field identifies which input failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// SyntaxError represents malformed expression text rejected at creation
// time. It is never raised during evaluation: an expression that parsed
// successfully stays parseable.
type SyntaxError struct {
	// Expression is the source text that failed to parse
	Expression string

	// Message describes what the parser rejected
	Message string

	// Cause is the underlying parser error
	Cause error
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid expression %q: %s", e.Expression, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SyntaxError) Unwrap() error {
	return e.Cause
}

// ResolutionError represents a property or variable lookup that no resolver
// in the chain claimed. Evaluation surfaces this instead of silently
// substituting a default value.
type ResolutionError struct {
	// Property is the name that could not be resolved
	Property string

	// Expression is the source text being evaluated (optional)
	Expression string

	// Suggestion provides actionable guidance for resolving the error
	Suggestion string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Expression != "" {
		return fmt.Sprintf("cannot resolve %q in expression %q", e.Property, e.Expression)
	}
	return fmt.Sprintf("cannot resolve %q", e.Property)
}

// CoercionError represents a resolved value that cannot be converted to the
// type the caller asked for.
type CoercionError struct {
	// Value is the value that could not be converted
	Value any

	// TargetType names the requested type (e.g. "string", "bool")
	TargetType string
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot convert %T (%v) to %s", e.Value, e.Value, e.TargetType)
}

// EvaluationError represents a runtime failure inside the expression
// evaluator (nil dereference, bad operand types, failed function call).
// The underlying evaluator error is preserved as the cause.
type EvaluationError struct {
	// Expression is the source text being evaluated
	Expression string

	// Message describes the failure
	Message string

	// Cause is the underlying evaluator error
	Cause error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating %q: %s", e.Expression, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// NotFoundError represents a requested resource that does not exist, such
// as an unknown scope in a durable store.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "scope", "function")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}
