// Package coordinator decides how trip manager requests map onto the
// orchestration registry: idempotent start by key, status reads, driver
// event routing and termination. It holds no locks and caches nothing;
// every decision is made on a fresh registry read.
package coordinator
