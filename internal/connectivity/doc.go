// Package connectivity reports whether the device can reach the sync backend.
//
// The Probe implementation issues HTTP requests against a configured URL,
// caches the latest result, and notifies subscribers on transitions.
package connectivity
