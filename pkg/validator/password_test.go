// SPDX-License-Identifier: BSL-1.1

package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStrongPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "valid strong password", password: "MyP@ss1!", want: true},
		{name: "valid with all special chars", password: "Str0ng!P@ss#", want: true},
		{name: "too short (7 chars)", password: "MyP@s1!", want: false},
		{name: "no uppercase", password: "myp@ss1!", want: false},
		{name: "no lowercase", password: "MYP@SS1!", want: false},
		{name: "no digit", password: "MyP@ssword!", want: false},
		{name: "no special character", password: "MyPassword1", want: false},
		{name: "empty password", password: "", want: false},
		{name: "exactly 8 chars valid", password: "MyP@ss1!", want: true},
		{name: "very long valid password", password: "ThisIsAVeryLong&SecureP@ssw0rd123!WithManyCharacters", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			type TestStruct struct {
				Password string `validate:"strongpassword"`
			}
			err := Validate(&TestStruct{Password: tt.password})
			if tt.want {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPasswordValidationMessage(t *testing.T) {
	type TestStruct struct {
		Password string `json:"password" validate:"strongpassword"`
	}

	err := Validate(&TestStruct{Password: "weak"})
	require.Error(t, err)

	validationErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, validationErrs, 1)
	assert.Equal(t, "must be at least 8 characters with uppercase, lowercase, number, and special character", validationErrs[0].Message)
	assert.Equal(t, "password", validationErrs[0].Field)
}

func TestUsernameInPassword(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"username embedded", "alice", "MyAliceP@ss1!", true},
		{"username embedded case-insensitive", "Alice", "myALICEp@ss1!", true},
		{"username absent", "alice", "MyP@ssw0rd1!", false},
		{"short username ignored", "al", "MyAlP@ssw0rd1!", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UsernameInPassword(tt.username, tt.password))
		})
	}
}
