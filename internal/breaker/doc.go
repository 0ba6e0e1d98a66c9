// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package breaker implements per-backend circuit breaking.
//
// One Breaker guards all calls to one backend service name: CLOSED
// passes calls and counts consecutive failures, OPEN fails fast until
// a reset timeout elapses, and HALF_OPEN admits exactly one trial call
// that either closes or reopens the circuit. State-change observers
// register as synchronous StateListeners; there is no event bus. The
// Manager creates breakers lazily per backend and applies configured
// per-backend overrides.
package breaker
