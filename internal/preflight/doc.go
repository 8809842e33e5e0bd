// Package preflight provides readiness checks for the backend and the local
// paths the flux client depends on.
//
// The CLI "flux status" command runs RunAll and renders each Result. Checks
// never return errors; a failure is reported through Result.Detail so every
// check is shown even when an earlier one fails.
package preflight
