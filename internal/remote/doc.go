// Package remote talks to the sync backend: single-item mutation delivery and
// the best-effort bulk finalize call.
package remote
