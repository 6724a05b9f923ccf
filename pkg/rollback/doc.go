/*
Package rollback resolves and applies rollback targets.

Two policies exist. Graceful selects the revision immediately older than the
one currently deployed and applies it as an ordinary rolling update.
Emergency models "stop the bleeding first, then bring back a known-safe
baseline": it scales the service to zero, applies the oldest revision within
a bounded history window, and restores the desired capacity afterwards.

Resolution always emits a RollbackDecision before anything is applied, so
the incident record carries the decision even when the application fails.
*/
package rollback
