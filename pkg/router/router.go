// Package router classifies each inbound chat message and produces exactly
// one outcome: deliver to a live worker session, auto-spawn a worker then
// deliver, enqueue for later, resolve a pending question, or file into the
// generic inbox. It composes the session registry, task queue, process
// supervisor, project directory, and pending-question registry.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"relay/pkg/protocol"
	"relay/pkg/queue"
)

// prefixPattern matches an explicit routing target: identifier characters,
// a colon, whitespace, then the payload (which may span lines).
var prefixPattern = regexp.MustCompile(`(?s)^([A-Za-z0-9_-]+):\s+(.+)$`)

// --- Collaborator interfaces ---

// Sessions is the session registry surface the router needs.
type Sessions interface {
	FindByProject(projectName string) (protocol.Session, bool)
	Touch(id string)
	Evict(id string)
}

// Supervisor is the process lifecycle surface the router needs.
type Supervisor interface {
	IsRunning(projectName string) bool
	Spawn(projectName, initialPrompt string, sink chan<- protocol.OutputLine) (protocol.ProcessInfo, error)
}

// Directory is the project registry surface the router needs.
type Directory interface {
	Find(name string) *protocol.Project
	Touch(name string) error
}

// TaskQueue persists messages that cannot be delivered immediately.
type TaskQueue interface {
	Enqueue(ctx context.Context, p queue.EnqueueParams) (protocol.Task, error)
}

// Questions matches inbound text against outstanding blocking questions.
type Questions interface {
	Answer(text string) bool
}

// Inbox receives messages with no routable target.
type Inbox interface {
	InboxAdd(ctx context.Context, from, body string) (protocol.InboxMessage, error)
}

// EventLog records routing outcomes. Logging failures never affect routing.
type EventLog interface {
	LogEvent(ctx context.Context, evType, project, sessionID, payload string) error
}

// Deliverer hands a message to a live worker session. Production wiring
// pushes through the worker's fetch channel; tests capture the call.
type Deliverer interface {
	Deliver(ctx context.Context, session protocol.Session, from, text string) error
}

// --- Outcomes ---

// Action identifies what the router did with a message.
type Action string

// Routing actions.
const (
	ActionDelivered Action = "delivered" // handed to a live session
	ActionSpawned   Action = "spawned"   // worker launched with the payload as initial prompt
	ActionQueued    Action = "queued"    // persisted for later delivery
	ActionInbox     Action = "inbox"     // filed in the generic inbox
	ActionAnswer    Action = "answer"    // consumed by a pending question
)

// Outcome describes the single action taken for one inbound message.
type Outcome struct {
	Action      Action                 `json:"action"`
	ProjectName string                 `json:"projectName,omitempty"`
	SessionID   string                 `json:"sessionId,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Task        *protocol.Task         `json:"task,omitempty"`
	Process     *protocol.ProcessInfo  `json:"process,omitempty"`
	Message     *protocol.InboxMessage `json:"message,omitempty"`
}

// --- Router ---

// Router orchestrates message routing.
//
// Thread-safe: the last-active bookkeeping is protected by a mutex; all
// other state lives in the collaborators, each of which guards its own.
type Router struct {
	sessions   Sessions
	supervisor Supervisor
	directory  Directory
	tasks      TaskQueue
	questions  Questions
	inbox      Inbox
	events     EventLog
	deliverer  Deliverer
	sink       chan<- protocol.OutputLine
	logger     *slog.Logger

	mu          sync.Mutex
	lastProject string // project of the most recent successful routing outcome
}

// Config collects the router's collaborators.
type Config struct {
	Sessions   Sessions
	Supervisor Supervisor
	Directory  Directory
	Tasks      TaskQueue
	Questions  Questions
	Inbox      Inbox
	Events     EventLog
	Deliverer  Deliverer

	// Sink receives output lines from workers the router spawns.
	Sink chan<- protocol.OutputLine

	Logger *slog.Logger
}

// New creates a Router from its collaborators.
func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		sessions:   cfg.Sessions,
		supervisor: cfg.Supervisor,
		directory:  cfg.Directory,
		tasks:      cfg.Tasks,
		questions:  cfg.Questions,
		inbox:      cfg.Inbox,
		events:     cfg.Events,
		deliverer:  cfg.Deliverer,
		sink:       cfg.Sink,
		logger:     logger,
	}
}

// RouteIncoming classifies one inbound message and executes the resulting
// action. Errors from collaborators degrade along the spec'd fallback
// chain; only a failure of the final fallback itself is returned.
func (r *Router) RouteIncoming(ctx context.Context, from, text string) (Outcome, error) {
	if text == "" {
		return Outcome{}, &protocol.ValidationError{Field: "text"}
	}

	if m := prefixPattern.FindStringSubmatch(text); m != nil {
		return r.routeNamed(ctx, from, m[1], m[2])
	}
	return r.routeUnaddressed(ctx, from, text)
}

// routeNamed handles a message with an explicit `Name: payload` target.
func (r *Router) routeNamed(ctx context.Context, from, target, payload string) (Outcome, error) {
	// A registered session alone is not sufficient: supervisor state can
	// diverge when the worker exits without deregistering. Require both.
	if s, ok := r.sessions.FindByProject(target); ok {
		if r.supervisor.IsRunning(target) {
			return r.deliver(ctx, s, from, payload)
		}
		// Stale session: evict immediately so the registry self-heals,
		// then fall through to the directory.
		r.sessions.Evict(s.ID)
		r.logEvent(ctx, "session_evicted", s.ProjectName, s.ID, "")
		r.logger.Info("evicted stale session", "session", s.ID, "project", s.ProjectName)
	}

	project := r.directory.Find(target)
	if project == nil {
		return r.enqueue(ctx, target, protocol.UnknownProjectPath, from, payload, "unregistered project")
	}
	if err := r.directory.Touch(project.Name); err != nil {
		r.logger.Warn("directory touch failed", "project", project.Name, "error", err)
	}

	if !project.AutoSpawn {
		return r.enqueue(ctx, project.Name, project.Path, from, payload, "offline project")
	}

	info, err := r.supervisor.Spawn(project.Name, payload, r.sink)
	if err != nil {
		// Degrade to enqueue rather than dropping the message.
		r.logger.Warn("auto-spawn failed", "project", project.Name, "error", err)
		return r.enqueue(ctx, project.Name, project.Path, from, payload, fmt.Sprintf("spawn failed: %v", err))
	}

	r.setLastProject(project.Name)
	r.logEvent(ctx, string(ActionSpawned), project.Name, "", fmt.Sprintf(`{"pid":%d}`, info.PID))
	return Outcome{
		Action:      ActionSpawned,
		ProjectName: project.Name,
		Process:     &info,
	}, nil
}

// routeUnaddressed handles a message with no routing prefix: pending
// questions first, then the last active session, then the generic inbox.
func (r *Router) routeUnaddressed(ctx context.Context, from, text string) (Outcome, error) {
	if r.questions.Answer(text) {
		r.logEvent(ctx, string(ActionAnswer), "", "", "")
		return Outcome{Action: ActionAnswer}, nil
	}

	if last := r.getLastProject(); last != "" {
		if s, ok := r.sessions.FindByProject(last); ok && r.supervisor.IsRunning(last) {
			return r.deliver(ctx, s, from, text)
		}
	}

	msg, err := r.inbox.InboxAdd(ctx, from, text)
	if err != nil {
		return Outcome{}, fmt.Errorf("file inbox message: %w", err)
	}
	r.logEvent(ctx, string(ActionInbox), "", "", "")
	return Outcome{Action: ActionInbox, Message: &msg}, nil
}

// deliver hands the payload to a live session and refreshes bookkeeping.
// Delivery failure degrades to enqueue.
func (r *Router) deliver(ctx context.Context, s protocol.Session, from, payload string) (Outcome, error) {
	if err := r.deliverer.Deliver(ctx, s, from, payload); err != nil {
		r.logger.Warn("delivery failed", "session", s.ID, "project", s.ProjectName, "error", err)
		return r.enqueue(ctx, s.ProjectName, s.ProjectPath, from, payload, fmt.Sprintf("delivery failed: %v", err))
	}

	r.sessions.Touch(s.ID)
	r.setLastProject(s.ProjectName)
	r.logEvent(ctx, string(ActionDelivered), s.ProjectName, s.ID, "")
	return Outcome{
		Action:      ActionDelivered,
		ProjectName: s.ProjectName,
		SessionID:   s.ID,
	}, nil
}

// enqueue persists the message for later delivery.
func (r *Router) enqueue(ctx context.Context, projectName, projectPath, from, payload, reason string) (Outcome, error) {
	task, err := r.tasks.Enqueue(ctx, queue.EnqueueParams{
		ProjectName: projectName,
		ProjectPath: projectPath,
		Message:     payload,
		From:        from,
		Priority:    protocol.PriorityNormal,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("enqueue for %s: %w", projectName, err)
	}

	r.logEvent(ctx, string(ActionQueued), projectName, "", fmt.Sprintf(`{"reason":%q}`, reason))
	return Outcome{
		Action:      ActionQueued,
		ProjectName: projectName,
		Reason:      reason,
		Task:        &task,
	}, nil
}

// NoteSessionActivity records that a session produced a successful routing
// outcome by other means (e.g. registration after an auto-spawn), so
// subsequent unaddressed messages keep reaching the same worker.
func (r *Router) NoteSessionActivity(projectName string) {
	r.setLastProject(projectName)
}

// LastProject returns the current last-active project bookkeeping.
func (r *Router) LastProject() string {
	return r.getLastProject()
}

func (r *Router) setLastProject(name string) {
	r.mu.Lock()
	r.lastProject = name
	r.mu.Unlock()
}

func (r *Router) getLastProject() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastProject
}

// logEvent records a routing event, best-effort.
func (r *Router) logEvent(ctx context.Context, evType, project, sessionID, payload string) {
	if r.events == nil {
		return
	}
	if err := r.events.LogEvent(ctx, evType, project, sessionID, payload); err != nil {
		r.logger.Warn("event log write failed", "type", evType, "error", err)
	}
}
