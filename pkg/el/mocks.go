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
)

// The mock registry lets host test suites intercept top-level lookups with
// test doubles. The MockResolver consults it before beans and delegates,
// so a registered mock shadows anything except a declared scope variable.
var mockRegistry = struct {
	mu     sync.RWMutex
	values map[string]any
}{
	values: make(map[string]any),
}

// RegisterMock registers value under name for the MockResolver.
func RegisterMock(name string, value any) {
	mockRegistry.mu.Lock()
	defer mockRegistry.mu.Unlock()
	mockRegistry.values[name] = value
}

// UnregisterMock removes a single registered mock.
func UnregisterMock(name string) {
	mockRegistry.mu.Lock()
	defer mockRegistry.mu.Unlock()
	delete(mockRegistry.values, name)
}

// ResetMocks removes all registered mocks. Call from test cleanup.
func ResetMocks() {
	mockRegistry.mu.Lock()
	defer mockRegistry.mu.Unlock()
	mockRegistry.values = make(map[string]any)
}

func lookupMock(name string) (any, bool) {
	mockRegistry.mu.RLock()
	defer mockRegistry.mu.RUnlock()
	v, ok := mockRegistry.values[name]
	return v, ok
}
