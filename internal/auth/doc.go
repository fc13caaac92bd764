// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements account authentication on top of the session
// tracker.
//
// # Services
//
//   - Service - the self-service player commands: login, register,
//     change password, premium and cracked
//   - StaffService - account administration for the console
//   - Engine - the authorization transition shared by both
//   - Prompter - the login or register prompt for pending players
//
// Services are created with New* constructors that validate their Deps.
package auth
