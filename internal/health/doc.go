// Package health provides composable checks and the liveness and readiness
// handlers served on the ops listener.
//
// Checks combine with [All] and [Named]; [Fixed] is static and
// [CheckFunc] adapts a plain function. Readiness for the content API is
// All(gate, store loaded): [ShutdownGate] fails it as soon as draining
// starts, so load balancers stop routing before in-flight requests finish.
package health
