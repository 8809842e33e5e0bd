// Package services defines shared utilities consumed by the request,
// operation, and history packages.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and operation names
//     for logging and for the X-Request-ID header sent to the backend.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (validation, precondition, request, transport, history) with
//     errors.Is instead of string matching.
//
// Use these helpers when adding new backend calls so error handling and
// observability stay uniform across the client.
package services
