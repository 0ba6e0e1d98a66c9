// Ostium - Media Streaming API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ostium

// Package config provides layered configuration for the gateway.
//
// Configuration is loaded with Koanf v2 from three layers, later layers
// overriding earlier ones:
//
//  1. Struct defaults (Defaults)
//  2. Optional YAML file (config.yaml, or OSTIUM_CONFIG)
//  3. Environment variables (OSTIUM_ prefix, "__" separates nesting:
//     OSTIUM_SERVER__PORT -> server.port)
//
// The loaded Config is validated before use: struct tags via
// go-playground/validator, plus cross-field rules (unique route
// prefixes, referenced pools and policies exist, positive durations,
// production-mode credential checks). A gateway never starts with a
// configuration it cannot fully apply.
package config
