// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

package plans

import (
	"github.com/tomtom215/ostium/internal/config"
)

// NewDefault assembles the production resolution chain:
// token claim, then cached billing lookup, then the static default.
// A nil executor (no billing pool configured) skips the HTTP hop.
func NewDefault(exec Executor, cfg config.PlansConfig) Resolver {
	chain := Chain{ClaimsResolver{}}
	if exec != nil {
		chain = append(chain, NewCachingResolver(NewHTTPResolver(exec, cfg), cfg))
	}
	chain = append(chain, StaticResolver{Plan: cfg.DefaultPlan})
	return chain
}
