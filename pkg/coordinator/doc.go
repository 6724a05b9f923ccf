/*
Package coordinator drives a deployment invocation end to end.

Control flow:

	Idle -> ArtifactReady -> InfraApplied -> RolloutWaiting -> HealthChecking
	                                                               |
	                                  +--------- pass ----------+  |
	                                  v                            v fail
	                              Succeeded                  RollingBack
	                                                               |
	                                              RolloutWaiting -> HealthChecking
	                                                               |
	                                                 +---- pass ---+--- fail ----+
	                                                 v                           v
	                                            RolledBack                  Abandoned

At most one automatic rollback per invocation. When the rolled-back revision
is itself unhealthy the coordinator records the run as abandoned and stops;
a second automatic action on an already misbehaving target does more harm
than a page.

Same-target invocations are mutually exclusive: an in-process keyed mutex
covers goroutines, a store lease with a TTL covers other processes on the
host. Different targets proceed independently.

Every terminal path except Succeeded persists an IncidentRecord, including
fatal aborts where no rollback was attempted.
*/
package coordinator
