/*
Package waiter implements the bounded rollout polling loop.

State machine: Pending -> InProgress -> {Completed, Failed, TimedOut}. The
loop terminates early the first time a poll reports Completed or Failed, and
with TimedOut once the attempt budget is exhausted. TimedOut is treated like
Failed by the coordinator but recorded distinctly, so infrastructure
slowness can be told apart from a genuine rollout failure.

Rollback confirmation uses a longer budget than ordinary deployment
confirmation; rollback is expected to take longer on constrained platforms.
*/
package waiter
