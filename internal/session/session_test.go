package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s-%d", n)
	}
}

func TestResolveCreatesAndReusesSessions(t *testing.T) {
	m := NewManager(time.Hour, WithIDGenerator(sequentialIDs()))

	first, created := m.Resolve("")
	if !created || first.ID != "s-1" {
		t.Fatalf("Resolve(\"\") = %q created=%v", first.ID, created)
	}
	again, created := m.Resolve("s-1")
	if created || again != first {
		t.Fatalf("Resolve(s-1) returned a different session, created=%v", created)
	}
	unknown, created := m.Resolve("forged")
	if !created || unknown.ID == "forged" {
		t.Fatalf("Resolve(forged) = %q created=%v", unknown.ID, created)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d", m.Len())
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(time.Hour)
	a, _ := m.Resolve("")
	b, _ := m.Resolve("")
	if err := a.Schema.AddTable("orders", "id"); err != nil {
		t.Fatalf("AddTable() error = %v", err)
	}
	if b.Schema.Len() != 0 {
		t.Fatalf("second session sees %d tables", b.Schema.Len())
	}
}

func TestExpiredSessionIsReplaced(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewManager(10*time.Minute, WithClock(clock.Now), WithIDGenerator(sequentialIDs()))
	sess, _ := m.Resolve("")

	clock.Advance(5 * time.Minute)
	if same, created := m.Resolve(sess.ID); created || same != sess {
		t.Fatal("session expired too early")
	}
	clock.Advance(11 * time.Minute)
	next, created := m.Resolve(sess.ID)
	if !created || next.ID == sess.ID {
		t.Fatalf("Resolve() after expiry = %q created=%v", next.ID, created)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, expired session was not dropped", m.Len())
	}
}

func TestResolveKeepsExpiredBusySession(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewManager(10*time.Minute, WithClock(clock.Now), WithIDGenerator(sequentialIDs()))
	sess, _ := m.Resolve("")
	if !sess.TryBegin() {
		t.Fatal("TryBegin() = false")
	}

	clock.Advance(time.Hour)
	got, created := m.Resolve(sess.ID)
	if created || got != sess {
		t.Fatalf("Resolve() replaced a busy session: created=%v", created)
	}

	sess.End()
	clock.Advance(time.Hour)
	if _, created := m.Resolve(sess.ID); !created {
		t.Fatal("idle session should expire once the conversion ended")
	}
}

func TestSweepKeepsBusySessions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewManager(time.Minute, WithClock(clock.Now))
	idle, _ := m.Resolve("")
	busy, _ := m.Resolve("")
	if !busy.TryBegin() {
		t.Fatal("TryBegin() = false")
	}
	clock.Advance(2 * time.Minute)

	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("Sweep() removed %d", removed)
	}
	if _, ok := m.sessions[idle.ID]; ok {
		t.Fatal("idle session survived sweep")
	}
	if _, ok := m.sessions[busy.ID]; !ok {
		t.Fatal("busy session was swept")
	}
}

func TestTryBeginRejectsSecondConversion(t *testing.T) {
	sess := newSession("x", time.Now())
	if !sess.TryBegin() {
		t.Fatal("first TryBegin() = false")
	}
	if sess.TryBegin() {
		t.Fatal("second TryBegin() = true while busy")
	}
	if !sess.State().Busy {
		t.Fatal("State().Busy = false")
	}
	sess.End()
	if !sess.TryBegin() {
		t.Fatal("TryBegin() after End() = false")
	}
}

func TestTryBeginIsExclusiveUnderContention(t *testing.T) {
	sess := newSession("x", time.Now())
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sess.TryBegin() {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("winners = %d", winners)
	}
}

func TestFailureKeepsPreviousQuery(t *testing.T) {
	sess := newSession("x", time.Now())
	sess.RecordSuccess("SELECT 1;")
	sess.RecordFailure("inference endpoint returned 500")

	state := sess.State()
	if state.LastQuery != "SELECT 1;" {
		t.Fatalf("LastQuery = %q", state.LastQuery)
	}
	if state.LastError == "" {
		t.Fatal("LastError is empty")
	}
	sess.RecordSuccess("SELECT 2;")
	if state := sess.State(); state.LastError != "" || state.LastQuery != "SELECT 2;" {
		t.Fatalf("State() = %+v", state)
	}
}
