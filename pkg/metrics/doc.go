// Package metrics defines the controller's Prometheus metrics. The deploy
// command can expose them for the duration of a run via --metrics-addr.
package metrics
