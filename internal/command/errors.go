// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"fmt"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/crypto"
	"github.com/holomush/gatekeeper/internal/messages"
	"github.com/holomush/gatekeeper/internal/premium"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// Error codes for command dispatch.
const (
	CodeEmpty              = "COMMAND_EMPTY"
	CodeUnknown            = "COMMAND_UNKNOWN"
	CodeInvalidArgs        = "COMMAND_INVALID_ARGS"
	CodeThrottled          = "COMMAND_THROTTLED"
	CodeConsoleUnsupported = "COMMAND_CONSOLE_UNSUPPORTED"
	CodePermissionDenied   = "COMMAND_PERMISSION_DENIED"
	CodeConflict           = "COMMAND_CONFLICT"
	CodeInvalidEntry       = "COMMAND_INVALID_ENTRY"
)

// ErrUnknownCommand reports a name with no registered entry.
func ErrUnknownCommand(name string) error {
	return oops.Code(CodeUnknown).With("command", name).Errorf("unknown command: %s", name)
}

// ErrInvalidArgs reports a syntax error; usage is shown to the sender.
func ErrInvalidArgs(name, usage string) error {
	return oops.Code(CodeInvalidArgs).
		With("command", name).
		With("usage", usage).
		Errorf("invalid arguments")
}

// ErrThrottled reports a sender that exceeded the command rate.
func ErrThrottled(retryAfter time.Duration) error {
	return oops.Code(CodeThrottled).
		With("retry_after_ms", retryAfter.Milliseconds()).
		Errorf("too many commands")
}

// ErrConsoleUnsupported reports a player-only command run from the console.
func ErrConsoleUnsupported(name string) error {
	return oops.Code(CodeConsoleUnsupported).With("command", name).Errorf("%s is not available on the console", name)
}

// ErrPermissionDenied reports a staff command run without permission.
func ErrPermissionDenied(name string) error {
	return oops.Code(CodePermissionDenied).With("command", name).Errorf("permission denied for command %s", name)
}

// messageKeys maps error codes to the message shown to the sender.
var messageKeys = map[string]string{
	CodeUnknown:                  "error-unknown-command",
	CodeInvalidArgs:              "error-invalid-syntax",
	CodeThrottled:                "error-throttle",
	CodeConsoleUnsupported:       "error-not-available-on-console",
	CodePermissionDenied:         "error-no-permission",
	auth.CodeInvalidCredentials:  "error-password-wrong",
	auth.CodePasswordMismatch:    "error-password-not-match",
	auth.CodePasswordTooShort:    "error-password-too-short",
	auth.CodeNotAuthorized:       "error-not-authorized",
	auth.CodeAlreadyAuthorized:   "error-already-authorized",
	auth.CodeNotRegistered:       "error-not-registered",
	auth.CodeAlreadyRegistered:   "error-already-registered",
	auth.CodeAlreadyPremium:      "error-already-premium",
	auth.CodeNotPremium:          "error-not-premium",
	auth.CodeNotPaid:             "error-not-paid",
	auth.CodePremiumTaken:        "error-premium-taken",
	auth.CodeUserNotFound:        "error-unknown-user",
	auth.CodeUserOnline:          "error-player-online",
	auth.CodeNameTaken:           "error-occupied-user",
	"USER_INVALID_NAME":          "error-invalid-name",
	crypto.CodeUnsupportedFormat: "error-unsupported-hash",
	premium.CodeThrottled:        "error-premium-throttled",
	premium.CodeServerException:  "error-premium-server",
	premium.CodeUndefined:        "error-premium-undefined",
	config.CodeInvalid:           "error-corrupted-configuration",
	messages.CodeInvalid:         "error-corrupted-messages",
}

// Describe returns the message key and placeholder pairs that explain err
// to a sender. Unclassified errors map to error-unknown.
func Describe(err error) (key string, replacements []string) {
	code := errutil.Code(err)
	key, ok := messageKeys[code]
	if !ok {
		return "error-unknown", nil
	}

	var ctx map[string]any
	if oopsErr, isOops := oops.AsOops(err); isOops {
		ctx = oopsErr.Context()
	}
	str := func(k string) string {
		if v, ok := ctx[k]; ok {
			return fmt.Sprint(v)
		}
		return ""
	}

	switch code {
	case CodeInvalidArgs:
		return key, []string{"syntax", str("usage")}
	case auth.CodePasswordTooShort:
		return key, []string{"length", str("min")}
	case auth.CodeUserNotFound, auth.CodeUserOnline, auth.CodeNameTaken, "USER_INVALID_NAME":
		return key, []string{"name", str("name")}
	case config.CodeInvalid, messages.CodeInvalid:
		return key, []string{"cause", err.Error()}
	}
	return key, nil
}
