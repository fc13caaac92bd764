// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"strings"

	"github.com/samber/oops"
)

// ParsedCommand holds the parsed components of a command line.
type ParsedCommand struct {
	Name string // first token, lowercased, without a leading slash
	Args string // remainder with leading whitespace removed
	Raw  string // original input
}

// Parse splits input into a command name and its arguments.
func Parse(input string) (*ParsedCommand, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(input), "/")
	if trimmed == "" {
		return nil, oops.Code(CodeEmpty).Errorf("no command provided")
	}

	name, args := trimmed, ""
	if idx := strings.IndexAny(trimmed, " \t"); idx >= 0 {
		name, args = trimmed[:idx], trimmed[idx+1:]
	}
	return &ParsedCommand{
		Name: strings.ToLower(name),
		Args: strings.TrimSpace(args),
		Raw:  input,
	}, nil
}

// Fields splits arguments on whitespace.
func Fields(args string) []string {
	return strings.Fields(args)
}

// ExactArgs splits args and fails with CodeInvalidArgs unless there are n.
func ExactArgs(exec *Execution, usage string, n int) ([]string, error) {
	fields := Fields(exec.Args)
	if len(fields) != n {
		return nil, ErrInvalidArgs(exec.InvokedAs, usage)
	}
	return fields, nil
}
