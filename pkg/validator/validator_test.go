// SPDX-License-Identifier: BSL-1.1

package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testStruct struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Age      int    `json:"age" validate:"gte=0,lte=150"`
	Optional string `json:"optional" validate:"omitempty,min=5"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   testStruct
		wantErr bool
	}{
		{
			name:    "valid struct",
			input:   testStruct{Username: "alice", Name: "Alice Doe", Age: 25},
			wantErr: false,
		},
		{
			name:    "missing required username",
			input:   testStruct{Name: "Alice Doe", Age: 25},
			wantErr: true,
		},
		{
			name:    "username too short",
			input:   testStruct{Username: "al", Name: "Alice Doe", Age: 25},
			wantErr: true,
		},
		{
			name:    "name too short",
			input:   testStruct{Username: "alice", Name: "J", Age: 25},
			wantErr: true,
		},
		{
			name:    "negative age",
			input:   testStruct{Username: "alice", Name: "Alice Doe", Age: -1},
			wantErr: true,
		},
		{
			name:    "optional field valid",
			input:   testStruct{Username: "alice", Name: "Alice Doe", Age: 25, Optional: "hello world"},
			wantErr: false,
		},
		{
			name:    "optional field too short",
			input:   testStruct{Username: "alice", Name: "Alice Doe", Age: 25, Optional: "hi"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateVar(t *testing.T) {
	tests := []struct {
		name    string
		field   interface{}
		tag     string
		wantErr bool
	}{
		{name: "valid uuid", field: "550e8400-e29b-41d4-a716-446655440000", tag: "uuid", wantErr: false},
		{name: "invalid uuid", field: "not-a-uuid", tag: "uuid", wantErr: true},
		{name: "min length valid", field: "hello", tag: "min=3", wantErr: false},
		{name: "min length invalid", field: "hi", tag: "min=3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVar(tt.field, tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "username", Message: "this field is required"},
		{Field: "name", Message: "must be at least 2 characters"},
	}

	expected := "username: this field is required; name: must be at least 2 characters"
	assert.Equal(t, expected, errs.Error())
}

func TestValidateTimezone(t *testing.T) {
	type tzStruct struct {
		Timezone string `validate:"timezone"`
	}

	tests := []struct {
		name     string
		timezone string
		wantErr  bool
	}{
		{"valid Europe/Paris", "Europe/Paris", false},
		{"valid UTC", "UTC", false},
		{"valid America/New_York", "America/New_York", false},
		{"invalid timezone", "Invalid/Zone", true},
		{"empty timezone", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tzStruct{Timezone: tt.timezone}
			err := Validate(&s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
