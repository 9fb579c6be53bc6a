// Package daemon hosts the long-running fieldsync process. It owns the lock
// file that enforces single-instance execution, runs the connectivity watcher,
// and triggers sync runs on a timer and on connectivity restoration. The IPC
// server exposes its operations to the CLI.
package daemon
