// Package collab adapts the external collaborators the deploy flow consumes
// through narrow interfaces: the artifact build/push gate and the
// infrastructure apply. Their internals stay external; this package only
// invokes configured commands and reports their outcome.
package collab
