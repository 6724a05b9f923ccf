/*
Package cluster provides the narrow facade over the managed container
platform and its version registry.

The Facade interface is the controller's only I/O boundary. The AWS adapter
maps it onto ECS (service state, revision registry, updates and scaling),
ECR (registry existence), CloudFormation (declared infrastructure and the
public endpoint output) and Secrets Manager (declared secret handles).

Failures are classified into two kinds that drive retry policy upstream:

  - Unavailable: the platform could not be reached. Retried only inside the
    rollout waiter's bounded loop and the endpoint reachability probe.
  - NotFound: the addressed object does not exist. Never retried.

The facade itself performs no retries and holds no state between calls.
*/
package cluster
