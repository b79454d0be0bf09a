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

package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryScope_Variables(t *testing.T) {
	s := NewMemoryScope()

	_, ok := s.GetVariable("amount")
	assert.False(t, ok)
	assert.False(t, s.HasVariable("amount"))

	s.SetVariable("amount", 42)
	v, ok := s.GetVariable("amount")
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.True(t, s.HasVariable("amount"))

	s.SetVariable("amount", 100)
	v, _ = s.GetVariable("amount")
	assert.Equal(t, 100, v)

	assert.ElementsMatch(t, []string{"amount"}, s.VariableNames())
}

func TestMemoryScope_DistinctIDs(t *testing.T) {
	a := NewMemoryScope()
	b := NewMemoryScope()

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestMemoryScope_SeededVariables(t *testing.T) {
	s := NewMemoryScopeWithVariables(map[string]any{"role": "admin"})

	v, ok := s.GetVariable("role")
	require.True(t, ok)
	assert.Equal(t, "admin", v)
}

func TestMemoryScope_CachedContextSlot(t *testing.T) {
	s := NewMemoryScope()
	assert.Nil(t, s.CachedContext())

	marker := &struct{ name string }{"ctx"}
	s.SetCachedContext(marker)
	assert.Same(t, marker, s.CachedContext())
}

func TestMapVariables(t *testing.T) {
	vars := MapVariables{"region": "eu-west-1"}

	v, ok := vars.Resolve("region")
	require.True(t, ok)
	assert.Equal(t, "eu-west-1", v)

	_, ok = vars.Resolve("missing")
	assert.False(t, ok)
}
