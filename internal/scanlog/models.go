package scanlog

import "time"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run is one recorded scan invocation.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Roots            []string
	Quality          string
	FilesScanned     int
	GroupsFound      int
	BytesReclaimable int64
	Status           string
}

// GroupRecord is one resolved duplicate group belonging to a run.
type GroupRecord struct {
	RunID      string
	Method     string
	Score      float64
	KeepPath   string
	LoserPaths []string
	LoserBytes int64
}
