// SPDX-License-Identifier: BSL-1.1

package models

// RenamePasskeyRequest represents the request to rename a passkey
type RenamePasskeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}
