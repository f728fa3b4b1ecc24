// Package queue implements the per-project durable task queue. Each
// project's undelivered messages live in one JSON document keyed by a
// sanitized project name; every mutation rewrites the whole document
// atomically. The store assumes a single writer process.
package queue

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"relay/pkg/protocol"
)

// Store persists per-project task lists under dir.
//
// Thread-safe within this process: a mutex serializes read-modify-write
// cycles. The files are not safe for concurrent external writers.
type Store struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create queue dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger, nowFunc: time.Now}, nil
}

// SetNowFunc replaces the clock. Tests use this to age tasks.
func (s *Store) SetNowFunc(f func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = f
}

// EnqueueParams is a task without id and status, as supplied by callers.
type EnqueueParams struct {
	ProjectName string
	ProjectPath string
	Message     string
	From        string
	Priority    protocol.TaskPriority
}

// Enqueue assigns an id, marks the task pending, appends it to the named
// project's durable list, and persists the whole list.
func (s *Store) Enqueue(ctx context.Context, p EnqueueParams) (protocol.Task, error) {
	if p.ProjectName == "" {
		return protocol.Task{}, &protocol.ValidationError{Field: "projectName"}
	}
	if p.Message == "" {
		return protocol.Task{}, &protocol.ValidationError{Field: "message"}
	}
	if p.Priority == "" {
		p.Priority = protocol.PriorityNormal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task := protocol.Task{
		ID:          s.newTaskID(),
		ProjectName: p.ProjectName,
		ProjectPath: p.ProjectPath,
		Message:     p.Message,
		From:        p.From,
		Timestamp:   s.nowFunc(),
		Priority:    p.Priority,
		Status:      protocol.TaskPending,
	}

	tasks := s.loadLocked(p.ProjectName)
	tasks = append(tasks, task)
	if err := s.persistLocked(p.ProjectName, tasks); err != nil {
		return protocol.Task{}, err
	}
	return task, nil
}

// Pending returns the project's tasks still awaiting delivery, oldest
// first.
func (s *Store) Pending(ctx context.Context, projectName string) []protocol.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []protocol.Task
	for _, t := range s.loadLocked(projectName) {
		if t.Status == protocol.TaskPending {
			out = append(out, t)
		}
	}
	return out
}

// MarkDelivered flips the task to delivered. Unknown ids are a no-op, and
// re-acknowledging a delivered task succeeds — double-acks are expected
// under at-least-once delivery.
func (s *Store) MarkDelivered(ctx context.Context, projectName, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.loadLocked(projectName)
	changed := false
	for i := range tasks {
		if tasks[i].ID == taskID && tasks[i].Status != protocol.TaskDelivered {
			tasks[i].Status = protocol.TaskDelivered
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persistLocked(projectName, tasks)
}

// Cleanup removes delivered tasks older than maxAgeDays and returns the
// count removed. Pending and expired tasks are never removed by this path.
func (s *Store) Cleanup(ctx context.Context, projectName string, maxAgeDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.nowFunc().AddDate(0, 0, -maxAgeDays)
	tasks := s.loadLocked(projectName)

	kept := tasks[:0]
	removed := 0
	for _, t := range tasks {
		if t.Status == protocol.TaskDelivered && !t.Timestamp.After(cutoff) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.persistLocked(projectName, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Summary reports pending and total counts for every project that has ever
// queued a task, excluding projects whose total is zero. Sorted by name for
// stable output.
func (s *Store) Summary(ctx context.Context) ([]protocol.QueueSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read queue dir %s: %w", s.dir, err)
	}

	var out []protocol.QueueSummary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		tasks := s.loadFileLocked(filepath.Join(s.dir, e.Name()))
		if len(tasks) == 0 {
			continue
		}
		sum := protocol.QueueSummary{
			// The display name comes from the stored tasks, not the
			// sanitized key.
			ProjectName: tasks[0].ProjectName,
			Total:       len(tasks),
		}
		for _, t := range tasks {
			if t.Status == protocol.TaskPending {
				sum.Pending++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectName < out[j].ProjectName })
	return out, nil
}

// RunJanitor runs Cleanup across all queues on the given interval until
// ctx is cancelled.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration, maxAgeDays int) {
	if interval == 0 {
		interval = time.Hour
	}
	if maxAgeDays == 0 {
		maxAgeDays = protocol.QueueRetentionDays
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sums, err := s.Summary(ctx)
			if err != nil {
				s.logger.Warn("queue janitor summary failed", "error", err)
				continue
			}
			for _, sum := range sums {
				if n, err := s.Cleanup(ctx, sum.ProjectName, maxAgeDays); err != nil {
					s.logger.Warn("queue cleanup failed", "project", sum.ProjectName, "error", err)
				} else if n > 0 {
					s.logger.Info("removed delivered tasks", "project", sum.ProjectName, "removed", n)
				}
			}
		}
	}
}

// --- Persistence ---

func (s *Store) filePath(projectName string) string {
	return filepath.Join(s.dir, protocol.QueueKey(projectName)+".json")
}

// loadLocked reads the project's task list. Read failures degrade to an
// empty list with a logged warning: losing a read is preferable to
// crashing the router. Caller must hold s.mu.
func (s *Store) loadLocked(projectName string) []protocol.Task {
	return s.loadFileLocked(s.filePath(projectName))
}

func (s *Store) loadFileLocked(path string) []protocol.Task {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		s.logger.Warn("queue read failed", "path", path, "error", err)
		return nil
	}
	var tasks []protocol.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		s.logger.Warn("queue parse failed", "path", path, "error", err)
		return nil
	}
	return tasks
}

// persistLocked serializes the whole list atomically via temp file +
// rename. Caller must hold s.mu.
func (s *Store) persistLocked(projectName string, tasks []protocol.Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal queue %s: %w", projectName, err)
	}
	path := s.filePath(projectName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write queue %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename queue %s: %w", path, err)
	}
	return nil
}

// newTaskID builds a unique-enough id from the current time and a random
// suffix. Ids are unique within a queue, not globally sortable.
func (s *Store) newTaskID() string {
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("%d-%s", s.nowFunc().UnixMilli(), hex.EncodeToString(suffix[:]))
}
