// Package stores provides durable storage for prepare-run history.
// The preparer records each run and its per-requirement outcomes so
// the CLI can show what was provisioned when, and why something
// failed. Recording is advisory: a store failure never affects the
// outcome of a prepare.
package stores
