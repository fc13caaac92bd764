// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package premium_test

import (
	"io"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/premium"
)

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}

func errThrottled() error {
	return oops.Code(premium.CodeThrottled).Errorf("remote throttle")
}

func errServer() error {
	return oops.Code(premium.CodeServerException).Errorf("bad gateway")
}
