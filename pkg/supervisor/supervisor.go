// Package supervisor owns worker process lifecycle: at most one live
// process per project name, detached spawn with per-line output streaming,
// and exit reaping that keeps the bookkeeping honest.
package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"relay/pkg/protocol"
)

// killGracePeriod is how long Kill waits for SIGTERM to take effect before
// escalating to SIGKILL.
const killGracePeriod = 3 * time.Second

// ProjectFinder resolves project names. Production impl is the directory
// registry.
type ProjectFinder interface {
	Find(name string) *protocol.Project
}

// entry tracks one live worker process. The handle never leaves the
// supervisor.
type entry struct {
	projectName   string
	proc          *os.Process
	startTime     time.Time
	initialPrompt string
}

// Supervisor spawns and tracks worker processes, one per project name.
//
// Thread-safe: all access to the process map is protected by a mutex. The
// map insert under lock is the sole spawn race-breaker — two concurrent
// spawns for one project cannot both claim the slot.
type Supervisor struct {
	projects ProjectFinder
	logger   *slog.Logger

	mu    sync.Mutex
	procs map[string]*entry
	wg    sync.WaitGroup

	// onExit, when set, is invoked after a worker's bookkeeping entry is
	// removed (normal exit, error, or kill).
	onExit func(projectName string, err error)

	// cmdFactory builds the exec.Cmd for a project. Defaults to the worker
	// command configured at construction. Tests override this to spawn a
	// controllable command like `sleep`.
	cmdFactory func(project protocol.Project, initialPrompt string) *exec.Cmd

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// New creates a Supervisor that launches workerCmd (argv form, e.g.
// ["claude", "--print"]) in the project's directory. The initial prompt,
// when present, is appended as the final argument.
func New(projects ProjectFinder, workerCmd []string, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Supervisor{
		projects: projects,
		logger:   logger,
		procs:    make(map[string]*entry),
		nowFunc:  time.Now,
	}
	s.cmdFactory = func(project protocol.Project, initialPrompt string) *exec.Cmd {
		args := append([]string(nil), workerCmd[1:]...)
		if initialPrompt != "" {
			args = append(args, initialPrompt)
		}
		cmd := exec.Command(workerCmd[0], args...) //nolint:gosec // intentionally spawning the configured worker
		cmd.Dir = project.Path
		return cmd
	}
	return s
}

// SetCmdFactory replaces the command factory. Tests use this to spawn
// dummy processes without a real worker binary.
func (s *Supervisor) SetCmdFactory(f func(project protocol.Project, initialPrompt string) *exec.Cmd) {
	s.cmdFactory = f
}

// SetOnExit registers a hook invoked whenever a worker leaves the
// bookkeeping (exit, error, or kill).
func (s *Supervisor) SetOnExit(f func(projectName string, err error)) {
	s.onExit = f
}

// Spawn launches a worker for the named project and returns as soon as the
// process is started — it does not wait for the worker to become ready.
// Fails with ConflictError if a worker is already tracked for the name,
// NotFoundError if the project is not registered, and SpawnError if the
// launch itself fails (no dangling bookkeeping entry is left behind).
//
// Output lines are forwarded to sink tagged with a stderr flag; a nil sink
// discards output. Sink sends are non-blocking: a full sink drops the line
// rather than stalling the worker.
func (s *Supervisor) Spawn(projectName, initialPrompt string, sink chan<- protocol.OutputLine) (protocol.ProcessInfo, error) {
	project := s.projects.Find(projectName)
	if project == nil {
		return protocol.ProcessInfo{}, &protocol.NotFoundError{Kind: "project", ID: projectName}
	}

	key := strings.ToLower(project.Name)

	// Claim the slot before launching. This check-and-insert under lock is
	// the race-breaker: it must happen immediately before the launch, not
	// earlier in a handler.
	s.mu.Lock()
	if existing, ok := s.procs[key]; ok {
		s.mu.Unlock()
		return protocol.ProcessInfo{}, &protocol.ConflictError{
			ProjectName: project.Name,
			PID:         existing.proc.Pid,
		}
	}
	e := &entry{
		projectName:   project.Name,
		startTime:     s.nowFunc(),
		initialPrompt: initialPrompt,
	}
	s.procs[key] = e
	s.mu.Unlock()

	cmd := s.cmdFactory(*project, initialPrompt)
	cmd.Env = mergeEnv(os.Environ(), project)
	// Each worker gets its own process group so Kill can terminate the
	// entire tree, and so the worker outlives the supervisor.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.release(key)
		return protocol.ProcessInfo{}, &protocol.SpawnError{ProjectName: project.Name, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.release(key)
		return protocol.ProcessInfo{}, &protocol.SpawnError{ProjectName: project.Name, Err: err}
	}

	if err := cmd.Start(); err != nil {
		s.release(key)
		return protocol.ProcessInfo{}, &protocol.SpawnError{ProjectName: project.Name, Err: err}
	}
	e.proc = cmd.Process

	// Stream output lines to the sink. The reaper must not call Wait until
	// both streams hit EOF: Wait closes the pipes, and closing them under a
	// reader discards whatever output is still buffered.
	var streams sync.WaitGroup
	streams.Add(2)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		defer streams.Done()
		s.forwardLines(project.Name, stdout, false, sink)
	}()
	go func() {
		defer s.wg.Done()
		defer streams.Done()
		s.forwardLines(project.Name, stderr, true, sink)
	}()

	// Reap the child in the background: fire-and-forget spawn, but exit is
	// still observed so the bookkeeping entry is removed.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		streams.Wait()
		waitErr := cmd.Wait()
		if s.release(key) && s.onExit != nil {
			s.onExit(project.Name, waitErr)
		}
	}()

	s.logger.Info("spawned worker", "project", project.Name, "pid", cmd.Process.Pid)
	return protocol.ProcessInfo{
		ProjectName:   project.Name,
		PID:           cmd.Process.Pid,
		StartTime:     e.startTime,
		InitialPrompt: initialPrompt,
	}, nil
}

// Kill sends a termination signal to the named project's worker and
// removes the bookkeeping immediately — it does not wait for confirmed
// exit. SIGKILL follows in the background if the grace period expires.
func (s *Supervisor) Kill(projectName string) error {
	key := strings.ToLower(projectName)

	s.mu.Lock()
	e, ok := s.procs[key]
	if !ok {
		s.mu.Unlock()
		return &protocol.NotFoundError{Kind: "process", ID: projectName}
	}
	delete(s.procs, key)
	s.mu.Unlock()

	// Signal the whole process group (negative pid) so descendants die too.
	pgid := e.proc.Pid
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		// SIGTERM failure means the process already exited.
		_ = e.proc.Kill()
		return nil
	}

	go func() {
		time.Sleep(killGracePeriod)
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}()

	s.logger.Info("killed worker", "project", e.projectName, "pid", pgid)
	if s.onExit != nil {
		s.onExit(e.projectName, nil)
	}
	return nil
}

// IsRunning reports whether a worker process is tracked for the name.
func (s *Supervisor) IsRunning(projectName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.procs[strings.ToLower(projectName)]
	return ok
}

// List returns snapshots of all tracked workers, sorted by project name.
func (s *Supervisor) List() []protocol.ProcessInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	out := make([]protocol.ProcessInfo, 0, len(s.procs))
	for _, e := range s.procs {
		out = append(out, protocol.ProcessInfo{
			ProjectName:    e.projectName,
			PID:            e.proc.Pid,
			StartTime:      e.startTime,
			InitialPrompt:  e.initialPrompt,
			RunningMinutes: int(now.Sub(e.startTime).Minutes()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectName < out[j].ProjectName })
	return out
}

// Wait blocks until all reaper and streaming goroutines have completed.
// Useful for tests and clean shutdown.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// release removes the bookkeeping entry for key. Returns false when the
// entry was already gone (e.g. removed by Kill before the reaper ran).
func (s *Supervisor) release(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.procs[key]; !ok {
		return false
	}
	delete(s.procs, key)
	return true
}

// forwardLines scans r until EOF, forwarding each line to the sink. Sink
// failures are isolated per line: a full channel drops the line with a
// warning and the worker is never affected.
func (s *Supervisor) forwardLines(projectName string, r io.Reader, stderr bool, sink chan<- protocol.OutputLine) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if sink == nil {
			continue
		}
		line := protocol.OutputLine{
			ProjectName: projectName,
			Text:        scanner.Text(),
			Stderr:      stderr,
		}
		select {
		case sink <- line:
		default:
			s.logger.Warn("output sink full, dropping line", "project", projectName)
		}
	}
}

// mergeEnv layers the project's environment overlay over base. The overlay
// comes from the registry entry's env map plus the project's own .env file
// (file entries win).
func mergeEnv(base []string, project *protocol.Project) []string {
	overlay := make(map[string]string, len(project.Env))
	for k, v := range project.Env {
		overlay[k] = v
	}
	for k, v := range readDotEnv(filepath.Join(project.Path, ".env")) {
		overlay[k] = v
	}
	if len(overlay) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, shadowed := overlay[name]; !shadowed {
			out = append(out, kv)
		}
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, overlay[k]))
	}
	return out
}

// readDotEnv parses simple KEY=VALUE lines. Comments and blank lines are
// skipped; quotes around values are stripped. Missing files yield nil.
func readDotEnv(path string) map[string]string {
	data, err := os.ReadFile(path) //nolint:gosec // project path comes from the registry
	if err != nil {
		return nil
	}
	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			out[key] = value
		}
	}
	return out
}
