// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package ratelimit enforces per-caller request quotas.
//
// Quotas are independent named fixed-window policies (default, auth,
// search, payment, subscription). Each (policy, caller) pair gets one
// window counter anchored at its first request; a request is allowed
// while count <= limit. The subscription policy substitutes the
// caller's plan quota before delegating to the same windowed check.
// A background sweeper prunes elapsed windows, but expiry is also
// applied lazily, so the sweep is purely a memory bound.
package ratelimit
