package session

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	t.Setenv(RuntimeDirEnv, t.TempDir())
	return NewManager()
}

func TestStartCapturesOutput(t *testing.T) {
	m := newTestManager(t)

	var mu sync.Mutex
	var got strings.Builder
	sess, err := m.Start("abc12300", "sh", []string{"-c", "echo hello"}, "", nil, func(chunk []byte) {
		mu.Lock()
		got.Write(chunk)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.PID == 0 {
		t.Fatal("expected nonzero PID")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		out := got.String()
		mu.Unlock()
		if strings.Contains(out, "hello") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected output to contain \"hello\"")
}

func TestSessionBecomesNotAliveAfterExit(t *testing.T) {
	m := newTestManager(t)
	sess, err := m.Start("abc12301", "sh", []string{"-c", "exit 0"}, "", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !sess.IsAlive() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected session to report not alive after process exit")
}

func TestKillTerminatesLongRunningSession(t *testing.T) {
	m := newTestManager(t)
	sess, err := m.Start("abc12302", "sleep", []string{"30"}, "", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !sess.IsAlive() {
		t.Fatal("expected session alive immediately after start")
	}

	if err := m.Kill("abc12302", false); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !sess.IsAlive() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected session to die after Kill")
}

func TestDiscoverListsStartedSessions(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Start("abc12303", "sleep", []string{"5"}, "", nil, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Kill("abc12303", true)

	names, err := Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "abc12303" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Discover to list abc12303, got %v", names)
	}
}

func TestAttachUnknownSessionReturnsNotFound(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Attach("nonexistent", nil); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteToDeadSessionFails(t *testing.T) {
	m := newTestManager(t)
	sess, err := m.Start("abc12304", "sh", []string{"-c", "exit 0"}, "", nil, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sess.IsAlive() {
		time.Sleep(10 * time.Millisecond)
	}

	if err := sess.Write([]byte("hi")); err != ErrNotAlive {
		t.Errorf("expected ErrNotAlive, got %v", err)
	}
}
