// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

//go:build !wal

package wal

// Open fails in builds without the `wal` tag; the event pipeline then
// publishes without a durable buffer.
func Open(opts Options) (Store, error) {
	return nil, ErrDisabled
}
