// Package queue persists the offline mutation queue.
//
// The Store serializes every mutating operation through a single writer so
// concurrent enqueue and state-transition calls execute in strict program
// order with no lost updates. Reads bypass the writer and see the current
// persisted state. Completed items are removed; failed items are retained
// with their last error for retry or inspection.
package queue
