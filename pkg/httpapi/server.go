// Package httpapi exposes the bridge over HTTP: session registration and
// heartbeats, queue operations, process lifecycle, message routing, the
// inbox, and blocking questions. Domain errors map onto status codes at
// this boundary and nowhere else.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"relay/pkg/protocol"
	"relay/pkg/queue"
	"relay/pkg/router"
	"relay/pkg/store"
)

// defaultAskTimeout bounds a blocking question when the caller does not
// specify one.
const defaultAskTimeout = 60 * time.Second

// --- Collaborator interfaces ---

// Sessions is the session registry surface the API needs.
type Sessions interface {
	Register(id, projectName, projectPath string) protocol.Session
	Heartbeat(id string) (protocol.Session, error)
	List() []protocol.Session
}

// Tasks is the durable queue surface the API needs.
type Tasks interface {
	Enqueue(ctx context.Context, p queue.EnqueueParams) (protocol.Task, error)
	Pending(ctx context.Context, projectName string) []protocol.Task
	MarkDelivered(ctx context.Context, projectName, taskID string) error
	Summary(ctx context.Context) ([]protocol.QueueSummary, error)
}

// Processes is the supervisor surface the API needs.
type Processes interface {
	Spawn(projectName, initialPrompt string, sink chan<- protocol.OutputLine) (protocol.ProcessInfo, error)
	Kill(projectName string) error
	List() []protocol.ProcessInfo
}

// Projects is the project registry surface the API needs.
type Projects interface {
	List() []protocol.Project
	Find(name string) *protocol.Project
}

// MessageRouter classifies inbound chat messages.
type MessageRouter interface {
	RouteIncoming(ctx context.Context, from, text string) (router.Outcome, error)
	NoteSessionActivity(projectName string)
}

// Questions is the pending-question surface the API needs.
type Questions interface {
	Ask(ctx context.Context, question string, timeout time.Duration) (string, error)
	PendingCount() int
}

// Mailbox is the inbox surface the API needs.
type Mailbox interface {
	InboxList(ctx context.Context, unreadOnly bool) ([]protocol.InboxMessage, error)
	InboxMarkRead(ctx context.Context, id string) error
}

// Events is the event log read surface the API needs.
type Events interface {
	Events(ctx context.Context, q store.EventQuery) ([]store.Event, error)
}

// --- Server ---

// Server is the HTTP API over the bridge components.
type Server struct {
	sessions  Sessions
	tasks     Tasks
	processes Processes
	projects  Projects
	router    MessageRouter
	questions Questions
	mailbox   Mailbox
	events    Events
	sink      chan<- protocol.OutputLine
	logger    *slog.Logger

	mux chi.Router
}

// Config collects the server's collaborators.
type Config struct {
	Sessions  Sessions
	Tasks     Tasks
	Processes Processes
	Projects  Projects
	Router    MessageRouter
	Questions Questions
	Mailbox   Mailbox
	Events    Events

	// Sink receives output lines from workers spawned via the API.
	Sink chan<- protocol.OutputLine

	Logger *slog.Logger
}

// NewServer builds the API server and its route table.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sessions:  cfg.Sessions,
		tasks:     cfg.Tasks,
		processes: cfg.Processes,
		projects:  cfg.Projects,
		router:    cfg.Router,
		questions: cfg.Questions,
		mailbox:   cfg.Mailbox,
		events:    cfg.Events,
		sink:      cfg.Sink,
		logger:    logger,
	}
	s.mux = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleRegisterSession)
			r.Post("/{sessionID}/heartbeat", s.handleHeartbeat)
		})

		r.Get("/projects", s.handleListProjects)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", s.handleQueueSummary)
			r.Post("/", s.handleEnqueue)
			r.Get("/{project}", s.handlePendingTasks)
			r.Post("/{project}/tasks/{taskID}/delivered", s.handleMarkDelivered)
		})

		r.Route("/processes", func(r chi.Router) {
			r.Get("/", s.handleListProcesses)
			r.Post("/", s.handleSpawn)
			r.Get("/{project}", s.handleGetProcess)
			r.Delete("/{project}", s.handleKill)
		})

		r.Post("/messages", s.handleRouteMessage)

		r.Route("/inbox", func(r chi.Router) {
			r.Get("/", s.handleInboxList)
			r.Post("/{messageID}/read", s.handleInboxMarkRead)
		})

		r.Post("/ask", s.handleAsk)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerSessionRequest struct {
	SessionID   string `json:"sessionId"`
	ProjectName string `json:"projectName"`
	ProjectPath string `json:"projectPath"`
}

func (s *Server) handleRegisterSession(w http.ResponseWriter, r *http.Request) {
	var req registerSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		s.writeError(w, &protocol.ValidationError{Field: "sessionId"})
		return
	}
	if req.ProjectName == "" {
		s.writeError(w, &protocol.ValidationError{Field: "projectName"})
		return
	}

	sess := s.sessions.Register(req.SessionID, req.ProjectName, req.ProjectPath)
	// Registration counts as activity so unaddressed messages reach this
	// worker, e.g. right after an auto-spawn.
	s.router.NoteSessionActivity(sess.ProjectName)
	s.writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Heartbeat(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.projects.List())
}

type enqueueRequest struct {
	ProjectName string                `json:"projectName"`
	ProjectPath string                `json:"projectPath"`
	Message     string                `json:"message"`
	From        string                `json:"from"`
	Priority    protocol.TaskPriority `json:"priority"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.ProjectPath == "" {
		if p := s.projects.Find(req.ProjectName); p != nil {
			req.ProjectPath = p.Path
		} else {
			req.ProjectPath = protocol.UnknownProjectPath
		}
	}

	task, err := s.tasks.Enqueue(r.Context(), queue.EnqueueParams{
		ProjectName: req.ProjectName,
		ProjectPath: req.ProjectPath,
		Message:     req.Message,
		From:        req.From,
		Priority:    req.Priority,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleQueueSummary(w http.ResponseWriter, r *http.Request) {
	sums, err := s.tasks.Summary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sums == nil {
		sums = []protocol.QueueSummary{}
	}
	s.writeJSON(w, http.StatusOK, sums)
}

func (s *Server) handlePendingTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.tasks.Pending(r.Context(), chi.URLParam(r, "project"))
	if tasks == nil {
		tasks = []protocol.Task{}
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	taskID := chi.URLParam(r, "taskID")
	if err := s.tasks.MarkDelivered(r.Context(), project, taskID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

type spawnRequest struct {
	ProjectName   string `json:"projectName"`
	InitialPrompt string `json:"initialPrompt"`
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req spawnRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ProjectName == "" {
		s.writeError(w, &protocol.ValidationError{Field: "projectName"})
		return
	}

	info, err := s.processes.Spawn(req.ProjectName, req.InitialPrompt, s.sink)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	if err := s.processes.Kill(chi.URLParam(r, "project")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "killed"})
}

func (s *Server) handleListProcesses(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.processes.List())
}

// handleGetProcess returns the snapshot of one project's worker; clients
// use it as a liveness probe, so an untracked project is a 404.
func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	for _, info := range s.processes.List() {
		if strings.EqualFold(info.ProjectName, project) {
			s.writeJSON(w, http.StatusOK, info)
			return
		}
	}
	s.writeError(w, &protocol.NotFoundError{Kind: "process", ID: project})
}

type routeMessageRequest struct {
	From string `json:"from"`
	Text string `json:"text"`
}

func (s *Server) handleRouteMessage(w http.ResponseWriter, r *http.Request) {
	var req routeMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.router.RouteIncoming(r.Context(), req.From, req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInboxList(w http.ResponseWriter, r *http.Request) {
	unreadOnly := r.URL.Query().Get("unread") == "true"
	msgs, err := s.mailbox.InboxList(r.Context(), unreadOnly)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []protocol.InboxMessage{}
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleInboxMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.mailbox.InboxMarkRead(r.Context(), chi.URLParam(r, "messageID")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

type askRequest struct {
	Question       string `json:"question"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// handleAsk blocks the calling request until the question is answered or
// the timeout elapses. Timeouts map to 504.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Question == "" {
		s.writeError(w, &protocol.ValidationError{Field: "question"})
		return
	}
	timeout := defaultAskTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	answer, err := s.questions.Ask(r.Context(), req.Question, timeout)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := store.EventQuery{
		Type:    r.URL.Query().Get("type"),
		Project: r.URL.Query().Get("project"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, &protocol.ValidationError{Field: "limit", Reason: "must be a non-negative integer"})
			return
		}
		q.Limit = n
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, &protocol.ValidationError{Field: "since", Reason: "must be an RFC 3339 timestamp"})
			return
		}
		q.Since = ts
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, &protocol.ValidationError{Field: "until", Reason: "must be an RFC 3339 timestamp"})
			return
		}
		q.Until = ts
	}

	events, err := s.events.Events(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

// --- Encoding ---

type errorResponse struct {
	Error string `json:"error"`
}

// decode parses the request body into v; on failure it writes a 400 and
// returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, &protocol.ValidationError{Field: "body", Reason: err.Error()})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var (
		validation  *protocol.ValidationError
		notFound    *protocol.NotFoundError
		conflict    *protocol.ConflictError
		timeout     *protocol.TimeoutError
		unavailable *protocol.BridgeUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict):
		status = http.StatusConflict
	case errors.As(err, &timeout):
		status = http.StatusGatewayTimeout
	case errors.As(err, &unavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		// Client went away mid-request.
		status = 499
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
