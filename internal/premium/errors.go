// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package premium

import (
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/pkg/errutil"
)

// Issue classifies a resolution failure.
type Issue int

const (
	// IssueUndefined is any failure that is not otherwise classified.
	IssueUndefined Issue = iota
	// IssueThrottled means the lookup was rejected by a local or remote rate limit.
	IssueThrottled
	// IssueServerException means the identity service failed or was unreachable.
	IssueServerException
)

// Error codes carried by resolution failures.
const (
	CodeThrottled       = "PREMIUM_THROTTLED"
	CodeServerException = "PREMIUM_SERVER_EXCEPTION"
	CodeUndefined       = "PREMIUM_UNDEFINED"
)

func (i Issue) String() string {
	switch i {
	case IssueThrottled:
		return "throttled"
	case IssueServerException:
		return "server_exception"
	default:
		return "undefined"
	}
}

// Code returns the error code for the issue.
func (i Issue) Code() string {
	switch i {
	case IssueThrottled:
		return CodeThrottled
	case IssueServerException:
		return CodeServerException
	default:
		return CodeUndefined
	}
}

// IssueOf extracts the issue from a resolution error. ok is false when err
// did not come from this package.
func IssueOf(err error) (issue Issue, ok bool) {
	switch errutil.Code(err) {
	case CodeThrottled:
		return IssueThrottled, true
	case CodeServerException:
		return IssueServerException, true
	case CodeUndefined:
		return IssueUndefined, true
	default:
		return IssueUndefined, false
	}
}

func newError(issue Issue, name string, err error) error {
	b := oops.Code(issue.Code()).With("name", name).With("issue", issue.String())
	if err == nil {
		return b.Errorf("premium lookup %s", issue)
	}
	return b.Wrap(err)
}
