package supervisor_test

import (
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"relay/pkg/protocol"
	"relay/pkg/supervisor"
)

// fakeFinder resolves a fixed set of projects.
type fakeFinder struct {
	projects map[string]protocol.Project
}

func (f *fakeFinder) Find(name string) *protocol.Project {
	for n, p := range f.projects {
		if strings.EqualFold(n, name) {
			out := p
			return &out
		}
	}
	return nil
}

func newSupervisor(t *testing.T, names ...string) *supervisor.Supervisor {
	t.Helper()
	projects := make(map[string]protocol.Project)
	for _, n := range names {
		projects[n] = protocol.Project{Name: n, Path: t.TempDir(), AutoSpawn: true}
	}
	return supervisor.New(&fakeFinder{projects: projects}, []string{"sleep", "3600"}, nil)
}

// sleepFactory spawns a long-lived dummy process.
func sleepFactory(protocol.Project, string) *exec.Cmd {
	return exec.Command("sleep", "3600")
}

// TestSpawn_TracksProcessAndReturnsPID verifies a successful spawn is
// tracked and reports a positive pid.
func TestSpawn_TracksProcessAndReturnsPID(t *testing.T) {
	s := newSupervisor(t, "web")
	s.SetCmdFactory(sleepFactory)

	info, err := s.Spawn("web", "", nil)
	if err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Kill("web") })

	if info.PID <= 0 {
		t.Fatalf("expected positive PID, got %d", info.PID)
	}
	if !s.IsRunning("web") {
		t.Error("IsRunning = false after spawn")
	}
}

// TestSpawn_SecondCallConflicts verifies the at-most-one-process invariant:
// spawning twice without an intervening exit fails and leaves the original
// running.
func TestSpawn_SecondCallConflicts(t *testing.T) {
	s := newSupervisor(t, "web")
	s.SetCmdFactory(sleepFactory)

	if _, err := s.Spawn("web", "", nil); err != nil {
		t.Fatalf("first Spawn returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Kill("web") })

	_, err := s.Spawn("web", "", nil)
	var conflict *protocol.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second Spawn error = %v, want ConflictError", err)
	}
	if !s.IsRunning("web") {
		t.Error("IsRunning = false after rejected duplicate spawn")
	}
}

// TestSpawn_UnknownProjectReturnsNotFound verifies spawn consults the
// project registry.
func TestSpawn_UnknownProjectReturnsNotFound(t *testing.T) {
	s := newSupervisor(t)

	_, err := s.Spawn("ghost", "", nil)
	var nf *protocol.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

// TestSpawn_LaunchFailureLeavesNoBookkeeping verifies a failed launch
// (missing binary) surfaces as SpawnError and does not leave a dangling
// entry that would block later spawns.
func TestSpawn_LaunchFailureLeavesNoBookkeeping(t *testing.T) {
	s := newSupervisor(t, "web")
	s.SetCmdFactory(func(protocol.Project, string) *exec.Cmd {
		return exec.Command("/nonexistent/worker-binary")
	})

	_, err := s.Spawn("web", "", nil)
	var spawnErr *protocol.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error = %v, want SpawnError", err)
	}
	if s.IsRunning("web") {
		t.Error("dangling bookkeeping entry after failed spawn")
	}

	// The slot must be reusable.
	s.SetCmdFactory(sleepFactory)
	if _, err := s.Spawn("web", "", nil); err != nil {
		t.Fatalf("respawn after failure returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Kill("web") })
}

// TestExit_RemovesBookkeepingAndFiresHook verifies the reaper removes the
// entry when the worker exits on its own and the exit hook runs once.
func TestExit_RemovesBookkeepingAndFiresHook(t *testing.T) {
	s := newSupervisor(t, "web")
	s.SetCmdFactory(func(protocol.Project, string) *exec.Cmd {
		return exec.Command("true")
	})

	exited := make(chan string, 1)
	s.SetOnExit(func(projectName string, err error) {
		exited <- projectName
	})

	if _, err := s.Spawn("web", "", nil); err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}

	select {
	case name := <-exited:
		if name != "web" {
			t.Errorf("exit hook project = %q, want web", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("exit hook never fired")
	}

	s.Wait()
	if s.IsRunning("web") {
		t.Error("bookkeeping entry survives worker exit")
	}
}

// TestOutputSink_ReceivesTaggedLines verifies stdout and stderr lines
// arrive on the sink with the right flags.
func TestOutputSink_ReceivesTaggedLines(t *testing.T) {
	s := newSupervisor(t, "web")
	s.SetCmdFactory(func(protocol.Project, string) *exec.Cmd {
		return exec.Command("sh", "-c", "echo out-line; echo err-line >&2")
	})

	sink := make(chan protocol.OutputLine, 16)
	if _, err := s.Spawn("web", "", sink); err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}
	s.Wait()
	close(sink)

	var sawStdout, sawStderr bool
	for line := range sink {
		switch {
		case line.Text == "out-line" && !line.Stderr:
			sawStdout = true
		case line.Text == "err-line" && line.Stderr:
			sawStderr = true
		}
		if line.ProjectName != "web" {
			t.Errorf("line project = %q, want web", line.ProjectName)
		}
	}
	if !sawStdout || !sawStderr {
		t.Errorf("sink missing lines: stdout=%v stderr=%v", sawStdout, sawStderr)
	}
}

// TestOutputSink_NoLinesLostOnFastExit verifies output buffered at the
// moment the worker exits is still forwarded: the reaper must drain both
// streams to EOF before reaping, or the exit discards pending lines.
func TestOutputSink_NoLinesLostOnFastExit(t *testing.T) {
	const want = 200

	for i := 0; i < 10; i++ {
		s := newSupervisor(t, "web")
		s.SetCmdFactory(func(protocol.Project, string) *exec.Cmd {
			return exec.Command("seq", "1", "200")
		})

		sink := make(chan protocol.OutputLine, want+1)
		if _, err := s.Spawn("web", "", sink); err != nil {
			t.Fatalf("iteration %d: Spawn returned error: %v", i, err)
		}
		s.Wait()
		close(sink)

		got := 0
		for range sink {
			got++
		}
		if got != want {
			t.Fatalf("iteration %d: got %d of %d lines", i, got, want)
		}
	}
}

// TestKill_UnknownProjectReturnsNotFound verifies kill on an untracked
// name fails cleanly.
func TestKill_UnknownProjectReturnsNotFound(t *testing.T) {
	s := newSupervisor(t, "web")

	err := s.Kill("web")
	var nf *protocol.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

// TestKill_RemovesBookkeepingImmediately verifies kill does not wait for
// confirmed exit before dropping the entry.
func TestKill_RemovesBookkeepingImmediately(t *testing.T) {
	s := newSupervisor(t, "web")
	s.SetCmdFactory(sleepFactory)

	if _, err := s.Spawn("web", "", nil); err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}
	if err := s.Kill("web"); err != nil {
		t.Fatalf("Kill returned error: %v", err)
	}
	if s.IsRunning("web") {
		t.Error("IsRunning = true immediately after Kill")
	}
}

// TestList_ReportsInitialPromptAndRuntime verifies list snapshots carry
// the spawn metadata.
func TestList_ReportsInitialPromptAndRuntime(t *testing.T) {
	s := newSupervisor(t, "web", "api")
	s.SetCmdFactory(sleepFactory)

	if _, err := s.Spawn("web", "build it", nil); err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Kill("web") })

	list := s.List()
	if len(list) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(list))
	}
	if list[0].InitialPrompt != "build it" {
		t.Errorf("InitialPrompt = %q, want %q", list[0].InitialPrompt, "build it")
	}
	if list[0].RunningMinutes != 0 {
		t.Errorf("RunningMinutes = %d, want 0", list[0].RunningMinutes)
	}
}

// TestIsRunning_CaseInsensitiveNames verifies tracking keys fold case the
// same way routing does.
func TestIsRunning_CaseInsensitiveNames(t *testing.T) {
	s := newSupervisor(t, "Web")
	s.SetCmdFactory(sleepFactory)

	if _, err := s.Spawn("Web", "", nil); err != nil {
		t.Fatalf("Spawn returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Kill("web") })

	if !s.IsRunning("WEB") {
		t.Error("IsRunning(WEB) = false for tracked project Web")
	}
}
