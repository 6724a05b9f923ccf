// Package health provides the low-level HTTP and TCP probes the verifier
// composes into its check battery. The HTTP probe carries a bounded internal
// retry with jittered backoff; the TCP probe is single-shot.
package health
