package protocol

import "time"

// Directory and path constants used throughout Relay.
const (
	// RelayDir is the user-level state directory (e.g., ~/.relay).
	RelayDir = ".relay"

	// QueueDir is the subdirectory of the data dir holding per-project
	// queue documents.
	QueueDir = "queue"

	// ProjectsFile is the project registry filename inside the data dir.
	ProjectsFile = "projects.yaml"

	// DBFile is the runtime state database filename inside the data dir.
	DBFile = "relay.db"

	// UnknownProjectPath is recorded on tasks queued for projects that are
	// not present in the project registry.
	UnknownProjectPath = "/unknown"
)

// Timing defaults for the core loops.
const (
	// SessionTTL is how long a session may stay idle before the sweep
	// removes it.
	SessionTTL = 30 * time.Minute

	// SweepInterval is how often the session sweep runs.
	SweepInterval = 5 * time.Minute

	// QueueRetentionDays is how long delivered tasks are kept before the
	// queue cleanup removes them.
	QueueRetentionDays = 7
)
