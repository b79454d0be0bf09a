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

// Package expression implements the expression factory on top of
// expr-lang/expr. Text uses ${...} delimiters: a lone ${...} evaluates to
// the inner expression's value, text without delimiters is a literal, and
// mixed text interpolates each ${...} part into a string.
//
// Every top-level name referenced by an expression is resolved through the
// evaluation context's resolver chain before the expr VM runs. Chain
// precedence (scope variables, then beans, then delegates) therefore holds
// for every evaluation, and an unclaimed name surfaces as a ResolutionError
// instead of a silent default.
package expression

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/tombee/exprkit/internal/metrics"
	"github.com/tombee/exprkit/pkg/el"
	"github.com/tombee/exprkit/pkg/errors"
)

type kind int

const (
	kindLiteral kind = iota
	kindExpr
	kindTemplate
)

// part is one segment of a template expression: either literal text or a
// compiled sub-expression.
type part struct {
	literal string
	program *program
}

// program is a compiled sub-expression plus the name analysis used to
// build its run environment.
type program struct {
	source  string
	vm      *vm.Program
	idents  []string
	called  map[string]bool
	path    []string
}

// compiled is the opaque form handed back from Parse.
type compiled struct {
	text    string
	kind    kind
	literal string
	expr    *program
	parts   []part
}

// Option configures a Factory.
type Option func(*Factory)

// WithFunctions supplies the function registry consulted when compiling.
// The parse environment holds just these bindings; scopes bind later, at
// evaluation time.
func WithFunctions(src el.FunctionSource) Option {
	return func(f *Factory) {
		f.functions = src
	}
}

// WithCacheLimit bounds the compiled-expression cache. Zero means
// unbounded. When the cache is full, new expressions still compile but are
// not retained.
func WithCacheLimit(n int) Option {
	return func(f *Factory) {
		f.cacheLimit = n
	}
}

// Factory parses and evaluates ${...} expression text. It caches compiled
// expressions per source text for repeated evaluations, mirroring the
// compile-once run-many discipline of the underlying VM.
type Factory struct {
	functions  el.FunctionSource
	cacheLimit int

	mu    sync.RWMutex
	cache map[string]*compiled
}

// NewFactory creates a Factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		cache: make(map[string]*compiled),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Parse implements el.ExpressionFactory.
func (f *Factory) Parse(text string) (el.Compiled, error) {
	f.mu.RLock()
	if c, ok := f.cache[text]; ok {
		f.mu.RUnlock()
		metrics.RecordParseCacheHit()
		return c, nil
	}
	f.mu.RUnlock()

	c, err := f.parse(text)
	if err != nil {
		metrics.RecordParse("error")
		return nil, err
	}
	metrics.RecordParse("ok")

	f.mu.Lock()
	if f.cacheLimit == 0 || len(f.cache) < f.cacheLimit {
		f.cache[text] = c
	}
	f.mu.Unlock()

	return c, nil
}

func (f *Factory) parse(text string) (*compiled, error) {
	segments, err := splitTemplate(text)
	if err != nil {
		return nil, err
	}

	// No delimiters: the text itself is the value.
	if len(segments) == 1 && segments[0].literal {
		return &compiled{text: text, kind: kindLiteral, literal: segments[0].text}, nil
	}

	// A single ${...} spanning the whole text keeps its native type.
	if len(segments) == 1 {
		prog, err := f.compile(text, segments[0].text)
		if err != nil {
			return nil, err
		}
		return &compiled{text: text, kind: kindExpr, expr: prog}, nil
	}

	parts := make([]part, 0, len(segments))
	for _, seg := range segments {
		if seg.literal {
			parts = append(parts, part{literal: seg.text})
			continue
		}
		prog, err := f.compile(text, seg.text)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part{program: prog})
	}
	return &compiled{text: text, kind: kindTemplate, parts: parts}, nil
}

// compile compiles one ${...} body and records its referenced names.
func (f *Factory) compile(text, source string) (*program, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, &errors.SyntaxError{
			Expression: text,
			Message:    err.Error(),
			Cause:      err,
		}
	}

	idents, called := analyze(tree.Node)

	env := map[string]any{}
	if f.functions != nil {
		for name, fn := range f.functions.Snapshot() {
			env[name] = fn
		}
	}

	prog, err := expr.Compile(source,
		expr.Env(env),
		// The run environment is assembled per evaluation from the
		// resolver chain; names unknown at compile time are expected.
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, &errors.SyntaxError{
			Expression: text,
			Message:    err.Error(),
			Cause:      err,
		}
	}

	return &program{
		source: source,
		vm:     prog,
		idents: idents,
		called: called,
		path:   writablePath(tree.Node),
	}, nil
}

// Evaluate implements el.ExpressionFactory.
func (f *Factory) Evaluate(compiledForm el.Compiled, ectx *el.Context) (any, error) {
	c, ok := compiledForm.(*compiled)
	if !ok {
		return nil, &errors.ValidationError{
			Field:   "compiled",
			Message: fmt.Sprintf("unknown compiled form %T", compiledForm),
		}
	}

	start := time.Now()
	value, err := f.evaluate(c, ectx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordEvaluation(status, time.Since(start).Seconds())
	return value, err
}

func (f *Factory) evaluate(c *compiled, ectx *el.Context) (any, error) {
	switch c.kind {
	case kindLiteral:
		return c.literal, nil

	case kindExpr:
		return f.run(c.text, c.expr, ectx)

	case kindTemplate:
		var sb strings.Builder
		for _, p := range c.parts {
			if p.program == nil {
				sb.WriteString(p.literal)
				continue
			}
			v, err := f.run(c.text, p.program, ectx)
			if err != nil {
				return nil, err
			}
			sb.WriteString(stringify(v))
		}
		return sb.String(), nil
	}

	return nil, &errors.ValidationError{
		Field:   "compiled",
		Message: "corrupt compiled form",
	}
}

// run assembles the environment for one compiled program and executes it.
// Function bindings come from the live registry; every other referenced
// name must be claimed by the resolver chain.
func (f *Factory) run(text string, p *program, ectx *el.Context) (any, error) {
	env := make(map[string]any, len(p.idents)+4)

	var functions map[string]el.Function
	if reg := ectx.Functions(); reg != nil {
		functions = reg.Snapshot()
	}

	for _, ident := range p.idents {
		fn, isFunction := functions[ident]

		// A called name binds to its function; otherwise the chain
		// takes precedence and the function is a fallback.
		if isFunction && p.called[ident] {
			env[ident] = fn
			continue
		}

		if v, ok := ectx.Resolvers().Resolve(ectx, nil, ident); ok {
			env[ident] = v
			continue
		}

		if isFunction {
			env[ident] = fn
			continue
		}

		return nil, &errors.ResolutionError{
			Property:   ident,
			Expression: text,
			Suggestion: "declare the variable on the scope or configure a bean under this name",
		}
	}

	// Uncalled function bindings the analysis did not see (method-style
	// pipes) still need to be reachable.
	for name, fn := range functions {
		if _, exists := env[name]; !exists {
			env[name] = fn
		}
	}

	out, err := expr.Run(p.vm, env)
	if err != nil {
		return nil, &errors.EvaluationError{
			Expression: text,
			Message:    err.Error(),
			Cause:      err,
		}
	}
	return out, nil
}

// SetValue implements el.ExpressionFactory. The expression must denote a
// writable path: a bare name or a member chain of constant keys.
func (f *Factory) SetValue(compiledForm el.Compiled, ectx *el.Context, value any) error {
	c, ok := compiledForm.(*compiled)
	if !ok {
		return &errors.ValidationError{
			Field:   "compiled",
			Message: fmt.Sprintf("unknown compiled form %T", compiledForm),
		}
	}
	if c.kind != kindExpr || len(c.expr.path) == 0 {
		return &errors.ValidationError{
			Field:      "expression",
			Message:    fmt.Sprintf("expression %q is not writable", c.text),
			Suggestion: "assignment requires a variable or a dotted path of constant keys",
		}
	}

	chain := ectx.Resolvers()
	path := c.expr.path

	// Navigate to the container owning the final segment.
	var base any
	for i, seg := range path[:len(path)-1] {
		v, ok := chain.Resolve(ectx, base, seg)
		if !ok {
			return &errors.ResolutionError{
				Property:   fmt.Sprintf("%v", seg),
				Expression: c.text,
			}
		}
		if v == nil {
			return &errors.ResolutionError{
				Property:   fmt.Sprintf("%v", path[i+1]),
				Expression: c.text,
				Suggestion: "intermediate path segment resolved to nil",
			}
		}
		base = v
	}

	claimed, err := chain.TrySet(ectx, base, path[len(path)-1], value)
	if err != nil {
		return err
	}
	if !claimed {
		return &errors.ResolutionError{
			Property:   fmt.Sprintf("%v", path[len(path)-1]),
			Expression: c.text,
			Suggestion: "no resolver accepts writes for this target",
		}
	}
	return nil
}

// CacheSize returns the number of cached compiled expressions.
func (f *Factory) CacheSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

// ClearCache drops all cached compiled expressions.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]*compiled)
}

// stringify renders an interpolated value. nil renders empty, matching
// template semantics where absence reads as blank text.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// analyze collects the top-level identifiers a parsed tree references and
// which of them are called as functions. Names bound by let declarations
// are excluded.
func analyze(node ast.Node) (idents []string, called map[string]bool) {
	declared := map[string]bool{}
	ast.Walk(&node, &declCollector{declared: declared})

	c := &identCollector{
		declared: declared,
		seen:     map[string]bool{},
		called:   map[string]bool{},
	}
	ast.Walk(&node, c)
	return c.idents, c.called
}

type declCollector struct {
	declared map[string]bool
}

func (d *declCollector) Visit(node *ast.Node) {
	if decl, ok := (*node).(*ast.VariableDeclaratorNode); ok {
		d.declared[decl.Name] = true
	}
}

type identCollector struct {
	declared map[string]bool
	seen     map[string]bool
	called   map[string]bool
	idents   []string
}

func (c *identCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if c.declared[n.Value] || c.seen[n.Value] {
			return
		}
		c.seen[n.Value] = true
		c.idents = append(c.idents, n.Value)
	case *ast.CallNode:
		if callee, ok := n.Callee.(*ast.IdentifierNode); ok {
			c.called[callee.Value] = true
		}
	}
}

// writablePath reports the constant navigation path of a tree whose root
// is a bare identifier or a member chain of constant string keys. Nil
// means the expression is not writable.
func writablePath(node ast.Node) []string {
	switch n := node.(type) {
	case *ast.IdentifierNode:
		return []string{n.Value}
	case *ast.MemberNode:
		base := writablePath(n.Node)
		if base == nil {
			return nil
		}
		if prop, ok := n.Property.(*ast.StringNode); ok {
			return append(base, prop.Value)
		}
		return nil
	}
	return nil
}
