// Package store provides BoltDB-backed persistence for the incident history
// and the per-target leases that serialize invocations across processes.
package store
