// Package host runs workflow instances keyed by trip code. It persists
// instance state through a dao.Service, schedules runs on a messaging
// queue consumed by a worker pool, and enforces at most one active
// instance per key.
package host
