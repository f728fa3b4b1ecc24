// Package protocol defines the shared domain types for the Relay bridge:
// sessions, queued tasks, spawned processes, inbox messages, and the error
// taxonomy used across components. It is dependency-free so every other
// package can import it.
package protocol

import "time"

// SessionStatus is the lifecycle state of a registered worker session.
type SessionStatus string

// Session status constants.
const (
	SessionActive SessionStatus = "active"
	SessionIdle   SessionStatus = "idle"
)

// Session is a registered, time-bounded binding between a session id and a
// project, representing a believed-live worker.
type Session struct {
	ID           string        `json:"sessionId"`
	ProjectName  string        `json:"projectName"`
	ProjectPath  string        `json:"projectPath"`
	StartTime    time.Time     `json:"startTime"`
	LastActivity time.Time     `json:"lastActivity"`
	Status       SessionStatus `json:"status"`

	// IdleMinutes is derived at snapshot time; it is not stored.
	IdleMinutes int `json:"idleMinutes"`
}

// TaskStatus is the delivery state of a queued task.
type TaskStatus string

// Task status constants.
const (
	TaskPending   TaskStatus = "pending"
	TaskDelivered TaskStatus = "delivered"
	TaskExpired   TaskStatus = "expired"
)

// TaskPriority orders tasks within a project queue.
type TaskPriority string

// Task priority constants.
const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
)

// Task is one undelivered (or delivered-and-retained) message in a
// project's durable queue.
type Task struct {
	ID          string       `json:"id"`
	ProjectName string       `json:"projectName"`
	ProjectPath string       `json:"projectPath"`
	Message     string       `json:"message"`
	From        string       `json:"from"`
	Timestamp   time.Time    `json:"timestamp"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
}

// QueueSummary aggregates one project's queue for overview displays.
type QueueSummary struct {
	ProjectName string `json:"projectName"`
	Pending     int    `json:"pending"`
	Total       int    `json:"total"`
}

// ProcessInfo is a snapshot of one supervised worker process.
type ProcessInfo struct {
	ProjectName    string    `json:"projectName"`
	PID            int       `json:"pid"`
	StartTime      time.Time `json:"startTime"`
	InitialPrompt  string    `json:"initialPrompt,omitempty"`
	RunningMinutes int       `json:"runningMinutes"`
}

// Project is one entry in the project registry: a named unit of work with
// a filesystem path and an auto-spawn policy.
type Project struct {
	Name         string            `yaml:"name" json:"name"`
	Path         string            `yaml:"path" json:"path"`
	AutoSpawn    bool              `yaml:"auto_spawn" json:"autoSpawn"`
	Env          map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	LastAccessed time.Time         `yaml:"last_accessed,omitempty" json:"lastAccessed,omitempty"`
}

// InboxMessage is one entry in the generic inbox: an inbound message that
// could not be routed to any session.
type InboxMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// OutputLine is one line of worker output, forwarded from the supervisor
// to the caller-supplied sink.
type OutputLine struct {
	ProjectName string
	Text        string
	Stderr      bool
}
