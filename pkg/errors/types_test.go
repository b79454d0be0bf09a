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
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "with field",
			err:  &ValidationError{Field: "name", Message: "cannot be empty"},
			want: "validation failed on name: cannot be empty",
		},
		{
			name: "without field",
			err:  &ValidationError{Message: "bad input"},
			want: "validation failed: bad input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestSyntaxError_Unwrap(t *testing.T) {
	cause := stderrors.New("unexpected token")
	err := &SyntaxError{Expression: "${foo", Message: "unexpected token", Cause: cause}

	assert.Contains(t, err.Error(), "${foo")
	assert.ErrorIs(t, err, cause)
}

func TestResolutionError(t *testing.T) {
	err := &ResolutionError{Property: "amount"}
	assert.Equal(t, `cannot resolve "amount"`, err.Error())

	err = &ResolutionError{Property: "amount", Expression: "${amount + 1}"}
	assert.Contains(t, err.Error(), "${amount + 1}")
}

func TestCoercionError(t *testing.T) {
	err := &CoercionError{Value: 42, TargetType: "string"}
	assert.Contains(t, err.Error(), "int")
	assert.Contains(t, err.Error(), "string")
}

func TestHelpers_As(t *testing.T) {
	inner := &ResolutionError{Property: "x"}
	wrapped := fmt.Errorf("evaluation failed: %w", inner)

	var target *ResolutionError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, "x", target.Property)

	assert.True(t, IsResolution(wrapped))
	assert.False(t, IsSyntax(wrapped))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	base := stderrors.New("boom")
	err := Wrap(base, "loading config")
	require.Error(t, err)
	assert.Equal(t, "loading config: boom", err.Error())
	assert.ErrorIs(t, err, base)

	err = Wrapf(base, "loading %s", "file.yaml")
	assert.Equal(t, "loading file.yaml: boom", err.Error())
}

func TestIsValidationAndCoercion(t *testing.T) {
	assert.True(t, IsValidation(&ValidationError{Message: "bad"}))
	assert.True(t, IsCoercion(&CoercionError{Value: "x", TargetType: "int"}))
	assert.False(t, IsValidation(stderrors.New("plain")))
}
