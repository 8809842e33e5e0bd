// Package batch runs a YAML list of download intents through one operation
// controller, strictly one item at a time.
package batch
