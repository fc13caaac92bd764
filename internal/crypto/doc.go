// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package crypto provides pluggable password hashing.
//
// Stored hashes are tagged: "<tag>:<payload>". The tag names the Provider
// that produced the payload, so several algorithms can coexist in storage.
// Verification always dispatches on the stored tag while new hashes are
// produced by the registry's default provider. Logging in with a hash whose
// tag is not the default is the signal to re-hash (see Registry.NeedsUpgrade).
package crypto
