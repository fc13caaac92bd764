// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		name  string
		args  string
	}{
		{"login hunter22", "login", "hunter22"},
		{"/login hunter22", "login", "hunter22"},
		{"  /REGISTER a  b ", "register", "a  b"},
		{"cracked", "cracked", ""},
		{"gatekeeper\tuser info Alice", "gatekeeper", "user info Alice"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.name, got.Name)
			assert.Equal(t, tt.args, got.Args)
			assert.Equal(t, tt.input, got.Raw)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	for _, input := range []string{"", "   ", "/"} {
		_, err := Parse(input)
		errutil.AssertErrorCode(t, err, CodeEmpty)
	}
}

func TestExactArgs(t *testing.T) {
	exec := &Execution{Args: "old  new", InvokedAs: "passwd"}
	args, err := ExactArgs(exec, "changepassword <old> <new>", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, args)

	_, err = ExactArgs(exec, "login <password>", 1)
	errutil.AssertErrorCode(t, err, CodeInvalidArgs)
	errutil.AssertErrorContext(t, err, "usage", "login <password>")
	errutil.AssertErrorContext(t, err, "command", "passwd")
}
