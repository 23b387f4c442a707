// Package http sends the requests built from definitions.
//
// It wraps the standard library client with:
//   - Configurable timeouts, redirect policy, TLS verification and proxy
//   - Default headers applied to every request
//   - An optional requests-per-second limiter
//   - Responses that expose their body and headers as values for path lookups
package http
