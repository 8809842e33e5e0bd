// Package request validates user-supplied download and convert options and
// serializes them into backend payloads.
//
// Everything here is a pure transform: no I/O, no logging. Validation failures
// surface as *ValidationError before any network call; a convert with nothing
// to convert surfaces as *PreconditionError. The convert output format is a
// small ordered rule table so the audio-only/selected/fallback precedence can
// be tested on its own.
package request
