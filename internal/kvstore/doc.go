// Package kvstore provides the durable key-value blob storage backing the
// mutation queue and device identity.
//
// The SQLite implementation is the production store; Memory backs tests.
// Callers treat values as opaque blobs keyed by fixed names.
package kvstore
