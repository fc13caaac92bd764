// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// Error codes returned by player and staff operations.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAlreadyAuthorized  = "AUTH_ALREADY_AUTHORIZED"
	CodeNotAuthorized      = "AUTH_NOT_AUTHORIZED"
	CodeNotRegistered      = "AUTH_NOT_REGISTERED"
	CodeAlreadyRegistered  = "AUTH_ALREADY_REGISTERED"
	CodePasswordMismatch   = "AUTH_PASSWORD_MISMATCH"
	CodePasswordTooShort   = "AUTH_PASSWORD_TOO_SHORT"
	CodeAlreadyPremium     = "AUTH_ALREADY_PREMIUM"
	CodeNotPremium         = "AUTH_NOT_PREMIUM"
	CodeNotPaid            = "PREMIUM_NOT_PAID"
	CodePremiumTaken       = "USER_PREMIUM_TAKEN"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeUserOnline         = "USER_ONLINE"
	CodeNameTaken          = "USER_NAME_TAKEN"
)
