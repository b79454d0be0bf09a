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
	"reflect"

	"github.com/tombee/exprkit/pkg/errors"
)

// ScopeName is the reserved identifier that resolves to the active scope
// itself, so expressions can pass the scope to functions or navigate it.
const ScopeName = "scope"

// Boundary is a host-application isolation boundary: an external resolution
// authority used in multi-tenant hosting to look up names outside the
// default namespace.
type Boundary interface {
	// ResolveVariable resolves a top-level variable name.
	ResolveVariable(name string) (any, bool)

	// ResolveBean resolves a bean name.
	ResolveBean(name string) (any, bool)
}

// BoundaryProvider returns the boundary active for the calling evaluation,
// or nil when none is. Lookups pass through silently when no boundary is
// active.
type BoundaryProvider func() Boundary

// ScopeResolver reads and writes named variables on the active scope.
// It also resolves the reserved name "scope" to the scope itself.
type ScopeResolver struct{}

// Name implements Resolver.
func (ScopeResolver) Name() string { return "scope" }

// Resolve implements Resolver.
func (ScopeResolver) Resolve(ectx *Context, base, property any) (any, bool) {
	if base != nil {
		return nil, false
	}
	name, ok := property.(string)
	if !ok {
		return nil, false
	}
	s := ectx.Scope()
	if s == nil {
		return nil, false
	}
	if name == ScopeName {
		return s, true
	}
	if s.HasVariable(name) {
		v, _ := s.GetVariable(name)
		return v, true
	}
	return nil, false
}

// TrySet implements Writer. Assignment is claimed only for variables the
// scope already declares: an undeclared name passes through so a later
// resolver (a read-only bean, for one) can claim and reject the write.
// Creating new variables is the scope API's job, not the chain's.
func (ScopeResolver) TrySet(ectx *Context, base, property, value any) (bool, error) {
	if base != nil {
		return false, nil
	}
	name, ok := property.(string)
	if !ok {
		return false, nil
	}
	s := ectx.Scope()
	if s == nil || name == ScopeName || !s.HasVariable(name) {
		return false, nil
	}
	s.SetVariable(name, value)
	return true, nil
}

// VariableContextResolver reads from an externally supplied name→value
// source not tied to a scope.
type VariableContextResolver struct{}

// Name implements Resolver.
func (VariableContextResolver) Name() string { return "variables" }

// Resolve implements Resolver.
func (VariableContextResolver) Resolve(ectx *Context, base, property any) (any, bool) {
	if base != nil {
		return nil, false
	}
	name, ok := property.(string)
	if !ok {
		return nil, false
	}
	vc := ectx.Variables()
	if vc == nil {
		return nil, false
	}
	return vc.Resolve(name)
}

// MockResolver intercepts top-level lookups registered through the mock
// registry. It sits after the scope resolvers but ahead of beans and
// delegates, so a mock shadows any name the active scope does not declare.
type MockResolver struct{}

// Name implements Resolver.
func (MockResolver) Name() string { return "mock" }

// Resolve implements Resolver.
func (MockResolver) Resolve(_ *Context, base, property any) (any, bool) {
	if base != nil {
		return nil, false
	}
	name, ok := property.(string)
	if !ok {
		return nil, false
	}
	return lookupMock(name)
}

// BeanResolver resolves configured beans from a read-only name→object map.
type BeanResolver struct {
	beans map[string]any
}

// NewBeanResolver creates a resolver over the given bean map.
func NewBeanResolver(beans map[string]any) *BeanResolver {
	return &BeanResolver{beans: beans}
}

// Name implements Resolver.
func (*BeanResolver) Name() string { return "bean" }

// Resolve implements Resolver.
func (r *BeanResolver) Resolve(_ *Context, base, property any) (any, bool) {
	if base != nil {
		return nil, false
	}
	name, ok := property.(string)
	if !ok {
		return nil, false
	}
	v, ok := r.beans[name]
	return v, ok
}

// TrySet implements Writer. The bean map is read-only: a write to a
// configured bean name is claimed and rejected.
func (r *BeanResolver) TrySet(_ *Context, base, property, _ any) (bool, error) {
	if base != nil {
		return false, nil
	}
	name, ok := property.(string)
	if !ok {
		return false, nil
	}
	if _, exists := r.beans[name]; !exists {
		return false, nil
	}
	return true, &errors.ValidationError{
		Field:      name,
		Message:    "configured beans are read-only",
		Suggestion: "assign to a scope variable instead",
	}
}

// DelegateResolver defers top-level variable lookups to the active
// host-application isolation boundary. When no boundary is active the
// lookup passes through silently.
type DelegateResolver struct {
	provider BoundaryProvider
}

// NewDelegateResolver creates a resolver over the given boundary provider.
func NewDelegateResolver(provider BoundaryProvider) *DelegateResolver {
	return &DelegateResolver{provider: provider}
}

// Name implements Resolver.
func (*DelegateResolver) Name() string { return "delegate" }

// Resolve implements Resolver.
func (r *DelegateResolver) Resolve(_ *Context, base, property any) (any, bool) {
	if base != nil || r.provider == nil {
		return nil, false
	}
	name, ok := property.(string)
	if !ok {
		return nil, false
	}
	b := r.provider()
	if b == nil {
		return nil, false
	}
	return b.ResolveVariable(name)
}

// ArrayResolver resolves integer-indexed access on array bases. An index
// out of range declines rather than failing; resolution is total.
type ArrayResolver struct{}

// Name implements Resolver.
func (ArrayResolver) Name() string { return "array" }

// Resolve implements Resolver.
func (ArrayResolver) Resolve(_ *Context, base, property any) (any, bool) {
	if base == nil {
		return nil, false
	}
	v := reflect.ValueOf(base)
	if v.Kind() != reflect.Array {
		return nil, false
	}
	i, ok := asIndex(property)
	if !ok || i < 0 || i >= v.Len() {
		return nil, false
	}
	return v.Index(i).Interface(), true
}

// SliceResolver resolves integer-indexed access on slice bases.
type SliceResolver struct{}

// Name implements Resolver.
func (SliceResolver) Name() string { return "slice" }

// Resolve implements Resolver.
func (SliceResolver) Resolve(_ *Context, base, property any) (any, bool) {
	if base == nil {
		return nil, false
	}
	v := reflect.ValueOf(base)
	if v.Kind() != reflect.Slice {
		return nil, false
	}
	i, ok := asIndex(property)
	if !ok || i < 0 || i >= v.Len() {
		return nil, false
	}
	return v.Index(i).Interface(), true
}

// TrySet implements Writer. Slice elements share a backing array with the
// caller's slice, so in-range writes are visible to the owner.
func (SliceResolver) TrySet(_ *Context, base, property, value any) (bool, error) {
	if base == nil {
		return false, nil
	}
	v := reflect.ValueOf(base)
	if v.Kind() != reflect.Slice {
		return false, nil
	}
	i, ok := asIndex(property)
	if !ok || i < 0 || i >= v.Len() {
		return false, nil
	}
	elem := v.Index(i)
	val := reflect.ValueOf(value)
	if value == nil || !val.Type().AssignableTo(elem.Type()) {
		return true, &errors.CoercionError{Value: value, TargetType: elem.Type().String()}
	}
	elem.Set(val)
	return true, nil
}

// MapResolver resolves keyed access on map bases. A map base always claims
// the lookup; a missing key resolves to nil, matching keyed-container
// semantics where absence is a value, not a failure.
type MapResolver struct{}

// Name implements Resolver.
func (MapResolver) Name() string { return "map" }

// Resolve implements Resolver.
func (MapResolver) Resolve(_ *Context, base, property any) (any, bool) {
	if base == nil {
		return nil, false
	}
	v := reflect.ValueOf(base)
	if v.Kind() != reflect.Map {
		return nil, false
	}
	key, ok := asKey(property, v.Type().Key())
	if !ok {
		return nil, true
	}
	entry := v.MapIndex(key)
	if !entry.IsValid() {
		return nil, true
	}
	return entry.Interface(), true
}

// TrySet implements Writer.
func (MapResolver) TrySet(_ *Context, base, property, value any) (bool, error) {
	if base == nil {
		return false, nil
	}
	v := reflect.ValueOf(base)
	if v.Kind() != reflect.Map {
		return false, nil
	}
	key, ok := asKey(property, v.Type().Key())
	if !ok {
		return true, &errors.CoercionError{Value: property, TargetType: v.Type().Key().String()}
	}
	val := reflect.ValueOf(value)
	if value == nil || !val.Type().AssignableTo(v.Type().Elem()) {
		return true, &errors.CoercionError{Value: value, TargetType: v.Type().Elem().String()}
	}
	v.SetMapIndex(key, val)
	return true, nil
}

// BeanDelegateResolver is the final fallback: it defers top-level bean
// lookups to the active isolation boundary. A configured bean map always
// wins over the boundary for overlapping names, since the BeanResolver
// sits earlier in the chain.
type BeanDelegateResolver struct {
	provider BoundaryProvider
}

// NewBeanDelegateResolver creates a resolver over the given boundary provider.
func NewBeanDelegateResolver(provider BoundaryProvider) *BeanDelegateResolver {
	return &BeanDelegateResolver{provider: provider}
}

// Name implements Resolver.
func (*BeanDelegateResolver) Name() string { return "bean_delegate" }

// Resolve implements Resolver.
func (r *BeanDelegateResolver) Resolve(_ *Context, base, property any) (any, bool) {
	if base != nil || r.provider == nil {
		return nil, false
	}
	name, ok := property.(string)
	if !ok {
		return nil, false
	}
	b := r.provider()
	if b == nil {
		return nil, false
	}
	return b.ResolveBean(name)
}

// asIndex converts a property to a slice/array index.
func asIndex(property any) (int, bool) {
	switch p := property.(type) {
	case int:
		return p, true
	case int32:
		return int(p), true
	case int64:
		return int(p), true
	case uint:
		return int(p), true
	case float64:
		if p == float64(int(p)) {
			return int(p), true
		}
	}
	return 0, false
}

// asKey converts a property to a map key of the required type.
func asKey(property any, keyType reflect.Type) (reflect.Value, bool) {
	if property == nil {
		return reflect.Value{}, false
	}
	key := reflect.ValueOf(property)
	if key.Type().AssignableTo(keyType) {
		return key, true
	}
	if key.Type().ConvertibleTo(keyType) {
		return key.Convert(keyType), true
	}
	return reflect.Value{}, false
}
