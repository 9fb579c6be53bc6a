// Package syncer drains the offline mutation queue against the backend.
//
// The engine enforces single-flight execution: at most one drain runs at a
// time, concurrent triggers are rejected without touching the queue, and the
// lock is released on every exit path including panics. Items are delivered
// one at a time in priority order; a failed item is recorded and the drain
// continues. Items that exhausted their attempt budget are marked failed
// without contacting the backend. When pending work remains after a run and
// the network is up, a short one-shot timer schedules a follow-up run rather
// than looping synchronously.
package syncer
