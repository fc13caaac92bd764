// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package premium resolves display names to trusted identities issued by the
// central account service.
//
// Lookups are throttled per caller before any network traffic. Failures are
// classified into three issues: throttled (retry after backoff), server
// exception, and undefined. A name with no trusted identity is not an error;
// Resolve returns a nil Identity.
package premium
