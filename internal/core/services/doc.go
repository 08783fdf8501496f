// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The ingestion engine fans entries out to a bounded worker pool,
// isolates entry failures in per-entry reports and merges duplicate
// records once every worker has returned.
package services
