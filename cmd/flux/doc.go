// Package main hosts the flux CLI entrypoint and command graph.
//
// Each command builds a short-lived session (config, logger, backend client,
// history cache) and drives the operation controller from the terminal. The
// controller's resting state decides the exit code: a Failed download or
// convert exits non-zero after its message has been printed.
//
// Keep behaviour in the internal packages; commands here only gather flags,
// render output, and wire the pieces together.
package main
