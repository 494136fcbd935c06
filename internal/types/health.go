// Node health status definitions.
package types

import "time"

// HealthStatus represents the liveness of the ledger node, judged by how long
// ago the execution environment last committed a block.
type HealthStatus string

const (
	// HealthOnline - blocks are being committed on schedule
	HealthOnline HealthStatus = "online"

	// HealthDegraded - the last commit is late but within the degraded window
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline - no commit for longer than the degraded window
	HealthOffline HealthStatus = "offline"

	// HealthStarting - state restored but no block committed since start
	HealthStarting HealthStatus = "starting"

	// HealthUnknown - nothing committed and nothing restored
	HealthUnknown HealthStatus = "unknown"
)

// HealthThresholds defines time-based health determination
type HealthThresholds struct {
	OnlineWindow   time.Duration // Max time since last commit for "online" (default: 30s)
	DegradedWindow time.Duration // Max time for "degraded" before "offline" (default: 90s)
	StartingWindow time.Duration // Max time in "starting" before the node counts as offline (default: 60s)
}

// DefaultHealthThresholds returns sensible defaults for health checking
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{
		OnlineWindow:   30 * time.Second,
		DegradedWindow: 90 * time.Second,
		StartingWindow: 60 * time.Second,
	}
}

// NodeStatus is what the node reports about its own progress.
type NodeStatus struct {
	Height       int64     `json:"height"`
	AppHash      string    `json:"app_hash"`
	LastCommit   time.Time `json:"last_commit"`
	StartedAt    time.Time `json:"started_at"`
	RestoredFrom int64     `json:"restored_from"`
}

// DetermineHealth calculates the health status at now.
func DetermineHealth(status NodeStatus, now time.Time, thresholds HealthThresholds) HealthStatus {
	if status.LastCommit.IsZero() {
		if status.StartedAt.IsZero() {
			return HealthUnknown
		}
		if now.Sub(status.StartedAt) <= thresholds.StartingWindow {
			return HealthStarting
		}
		return HealthOffline
	}

	since := now.Sub(status.LastCommit)
	if since <= thresholds.OnlineWindow {
		return HealthOnline
	} else if since <= thresholds.DegradedWindow {
		return HealthDegraded
	}

	return HealthOffline
}

// HealthDescription returns a human-readable description of the health status
func HealthDescription(status HealthStatus) string {
	switch status {
	case HealthOnline:
		return "Committing blocks"
	case HealthDegraded:
		return "Commits delayed"
	case HealthOffline:
		return "Not committing"
	case HealthStarting:
		return "Waiting for first block"
	case HealthUnknown:
		return "Status unknown"
	default:
		return "Unknown"
	}
}
