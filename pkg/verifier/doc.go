/*
Package verifier runs the ordered battery of deployment health checks.

The battery: infrastructure existence, platform resources, service activity,
rollout completion, endpoint reachability, and optionally dependency
reachability. The infrastructure check is a prerequisite; when it fails the
rest of the battery is skipped, since probing a service whose declared
infrastructure does not exist only produces noise. All other checks run to
completion regardless of individual failures so the aggregate lands in the
incident record. Checks never mutate cluster state; verification is
idempotent against an unchanged cluster.
*/
package verifier
