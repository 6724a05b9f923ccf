/*
Package types defines the shared domain model for the rollout controller.

Entities fall into three lifecycle groups:

  - DeploymentTarget and RevisionRef are supplied or queried externally and
    are read-only to this program.
  - RolloutStatus and HealthCheckResult are ephemeral, recomputed on every
    poll or verification pass.
  - RollbackDecision and IncidentRecord are created once per failure episode
    and are the only entities the controller persists.
*/
package types
