package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recorder is a Notifier that records every published transition.
type recorder struct {
	mu    sync.Mutex
	got   []Transition
	topic string
	err   error
}

func (r *recorder) Publish(_ context.Context, topic string, tr Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topic = topic
	r.got = append(r.got, tr)
	return r.err
}

func (r *recorder) transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.got))
	copy(out, r.got)
	return out
}

// counts is a Counter keyed by "name/value".
type counts struct {
	mu sync.Mutex
	m  map[string]int
}

func (c *counts) Inc(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]int)
	}
	c.m[name+"/"+value]++
}

func (c *counts) get(name, value string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[name+"/"+value]
}

func newTracker(t *testing.T, n Notifier, c Counter) *Tracker {
	t.Helper()
	tr, err := New(Config{
		Metric:        "wifi.station",
		Tag:           "mac",
		Values:        []string{"alice", "bob"},
		Topic:         "presence/state",
		SilenceWindow: 10 * time.Minute,
	}, n, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestNew_Defaults(t *testing.T) {
	tr, err := New(Config{Metric: "m", Tag: "t", Values: []string{"v"}}, &recorder{}, &counts{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.cfg.SweepInterval != DefaultSweepInterval {
		t.Errorf("SweepInterval: got %v, want %v", tr.cfg.SweepInterval, DefaultSweepInterval)
	}
	if tr.cfg.SilenceWindow != DefaultSilenceWindow {
		t.Errorf("SilenceWindow: got %v, want %v", tr.cfg.SilenceWindow, DefaultSilenceWindow)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no metric", Config{Tag: "t", Values: []string{"v"}}},
		{"no tag", Config{Metric: "m", Values: []string{"v"}}},
		{"no values", Config{Metric: "m", Tag: "t"}},
		{"empty value", Config{Metric: "m", Tag: "t", Values: []string{"v", ""}}},
		{"negative window", Config{Metric: "m", Tag: "t", Values: []string{"v"}, SilenceWindow: -time.Second}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg, &recorder{}, &counts{})
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("New: got %v, want ErrConfig", err)
			}
		})
	}
}

func TestNew_NilCollaborators(t *testing.T) {
	cfg := Config{Metric: "m", Tag: "t", Values: []string{"v"}}
	if _, err := New(cfg, nil, &counts{}); !errors.Is(err, ErrConfig) {
		t.Errorf("nil notifier: got %v, want ErrConfig", err)
	}
	if _, err := New(cfg, &recorder{}, nil); !errors.Is(err, ErrConfig) {
		t.Errorf("nil counter: got %v, want ErrConfig", err)
	}
}

func TestObserve_FirstMatchEmitsHome(t *testing.T) {
	rec, cnt := &recorder{}, &counts{}
	tr := newTracker(t, rec, cnt)

	tr.Observe(true, "alice", at(0))
	tr.Observe(true, "alice", at(1))

	got := rec.transitions()
	if len(got) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(got))
	}
	if got[0] != (Transition{Value: "alice", Status: StatusHome}) {
		t.Errorf("notification: got %+v", got[0])
	}
	if rec.topic != "presence/state" {
		t.Errorf("topic: got %q, want presence/state", rec.topic)
	}
	if n := cnt.get(CounterHome, "alice"); n != 1 {
		t.Errorf("home{alice}: got %d, want 1", n)
	}
}

func TestObserve_IgnoredEvents(t *testing.T) {
	tests := []struct {
		name    string
		matches bool
		value   string
	}{
		{"metric mismatch", false, "alice"},
		{"missing tag", true, ""},
		{"untracked value", true, "charlie"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, cnt := &recorder{}, &counts{}
			tr := newTracker(t, rec, cnt)

			tr.Observe(tc.matches, tc.value, at(0))

			if n := len(rec.transitions()); n != 0 {
				t.Errorf("notifications: got %d, want 0", n)
			}
			if n := tr.PresentCount(); n != 0 {
				t.Errorf("PresentCount: got %d, want 0", n)
			}
			if n := cnt.get(CounterHome, tc.value); n != 0 {
				t.Errorf("home counter: got %d, want 0", n)
			}
		})
	}
}

func TestSweep_EvictsAtWindow(t *testing.T) {
	rec, cnt := &recorder{}, &counts{}
	tr := newTracker(t, rec, cnt)
	tr.Observe(true, "alice", at(0))

	tr.Sweep(at(9), 10*time.Minute)
	if n := len(rec.transitions()); n != 1 {
		t.Fatalf("notifications before window: got %d, want 1", n)
	}

	tr.Sweep(at(10), 10*time.Minute)
	got := rec.transitions()
	if len(got) != 2 {
		t.Fatalf("notifications after window: got %d, want 2", len(got))
	}
	if got[1] != (Transition{Value: "alice", Status: StatusAway}) {
		t.Errorf("notification: got %+v, want AWAY alice", got[1])
	}
	if n := cnt.get(CounterAway, "alice"); n != 1 {
		t.Errorf("away{alice}: got %d, want 1", n)
	}
}

func TestSweep_Idempotent(t *testing.T) {
	rec, cnt := &recorder{}, &counts{}
	tr := newTracker(t, rec, cnt)
	tr.Observe(true, "alice", at(0))
	tr.Observe(true, "bob", at(0))

	tr.Sweep(at(20), 10*time.Minute)
	tr.Sweep(at(20), 10*time.Minute)

	if n := len(rec.transitions()); n != 4 {
		t.Errorf("notifications: got %d, want 4 (2 HOME + 2 AWAY)", n)
	}
	if n := cnt.get(CounterAway, "alice"); n != 1 {
		t.Errorf("away{alice}: got %d, want 1", n)
	}
}

// TestScenario_AliceComesAndGoes walks the reference timeline: HOME at 0,
// refresh at 5, no eviction at 12, AWAY at 16, HOME again at 17.
func TestScenario_AliceComesAndGoes(t *testing.T) {
	rec, cnt := &recorder{}, &counts{}
	tr := newTracker(t, rec, cnt)
	window := 10 * time.Minute

	tr.Observe(true, "alice", at(0))
	if n := cnt.get(CounterHome, "alice"); n != 1 {
		t.Fatalf("home{alice} after t=0: got %d, want 1", n)
	}

	tr.Observe(true, "alice", at(5))
	if n := len(rec.transitions()); n != 1 {
		t.Fatalf("notifications after t=5: got %d, want 1", n)
	}
	if e, _ := tr.Lookup("alice"); !e.LastSeen.Equal(at(5)) {
		t.Fatalf("LastSeen after t=5: got %v, want %v", e.LastSeen, at(5))
	}

	tr.Sweep(at(12), window)
	if e, _ := tr.Lookup("alice"); e.Status != StatusHome {
		t.Fatalf("status after sweep at 12: got %s, want HOME", e.Status)
	}

	tr.Sweep(at(16), window)
	if e, _ := tr.Lookup("alice"); e.Status != StatusAway {
		t.Fatalf("status after sweep at 16: got %s, want AWAY", e.Status)
	}
	if n := cnt.get(CounterAway, "alice"); n != 1 {
		t.Fatalf("away{alice}: got %d, want 1", n)
	}

	tr.Observe(true, "alice", at(17))

	want := []Status{StatusHome, StatusAway, StatusHome}
	got := rec.transitions()
	if len(got) != len(want) {
		t.Fatalf("notifications: got %d, want %d", len(got), len(want))
	}
	for i, s := range want {
		if got[i].Status != s || got[i].Value != "alice" {
			t.Errorf("notification[%d]: got %+v, want %s alice", i, got[i], s)
		}
	}
	if n := cnt.get(CounterHome, "alice"); n != 2 {
		t.Errorf("home{alice}: got %d, want 2", n)
	}
}

func TestObserve_ConcurrentSingleHome(t *testing.T) {
	rec, cnt := &recorder{}, &counts{}
	tr := newTracker(t, rec, cnt)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			tr.Observe(true, "bob", at(0))
		}()
	}
	close(start)
	wg.Wait()

	if n := len(rec.transitions()); n != 1 {
		t.Errorf("HOME notifications: got %d, want 1", n)
	}
	if n := cnt.get(CounterHome, "bob"); n != 1 {
		t.Errorf("home{bob}: got %d, want 1", n)
	}
}

// TestAlternation interleaves observes and sweeps from several goroutines and
// checks that each value's notification sequence strictly alternates.
func TestAlternation(t *testing.T) {
	rec, cnt := &recorder{}, &counts{}
	tr := newTracker(t, rec, cnt)

	var wg sync.WaitGroup
	for minute := 0; minute < 60; minute++ {
		for _, v := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(v string, m int) {
				defer wg.Done()
				if m%7 < 3 {
					tr.Observe(true, v, at(m))
				}
			}(v, minute)
		}
		wg.Wait()
		tr.Sweep(at(minute), 2*time.Minute)
	}

	last := map[string]Status{}
	for i, n := range rec.transitions() {
		prev, seen := last[n.Value]
		if !seen && n.Status != StatusHome {
			t.Fatalf("notification %d: first status for %s is %s, want HOME", i, n.Value, n.Status)
		}
		if seen && prev == n.Status {
			t.Fatalf("notification %d: %s repeated %s", i, n.Value, n.Status)
		}
		last[n.Value] = n.Status
	}
}

func TestNotifierFailure_StateKept(t *testing.T) {
	rec := &recorder{err: errors.New("broker unreachable")}
	cnt := &counts{}
	tr := newTracker(t, rec, cnt)

	tr.Observe(true, "alice", at(0))

	if e, _ := tr.Lookup("alice"); e.Status != StatusHome {
		t.Errorf("status after failed publish: got %s, want HOME", e.Status)
	}
	if n := cnt.get(CounterHome, "alice"); n != 1 {
		t.Errorf("home{alice}: got %d, want 1", n)
	}

	tr.Observe(true, "alice", at(1))
	if n := len(rec.transitions()); n != 1 {
		t.Errorf("publish attempts: got %d, want 1 (no retry)", n)
	}
}

func TestSnapshot_AllTrackedValues(t *testing.T) {
	tr := newTracker(t, &recorder{}, &counts{})
	tr.Observe(true, "bob", at(3))

	snap := tr.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot: got %d entries, want 2", len(snap))
	}
	if snap[0].Value != "alice" || snap[0].Status != StatusAway || !snap[0].LastSeen.IsZero() {
		t.Errorf("Snapshot[0]: got %+v, want alice AWAY", snap[0])
	}
	if snap[1].Value != "bob" || snap[1].Status != StatusHome || !snap[1].LastSeen.Equal(at(3)) {
		t.Errorf("Snapshot[1]: got %+v, want bob HOME", snap[1])
	}
}

func TestLookup_Untracked(t *testing.T) {
	tr := newTracker(t, &recorder{}, &counts{})
	if _, ok := tr.Lookup("charlie"); ok {
		t.Error("Lookup(charlie): expected false for untracked value")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	tr, err := New(Config{
		Metric:        "m",
		Tag:           "t",
		Values:        []string{"v"},
		SweepInterval: 5 * time.Millisecond,
		SilenceWindow: time.Nanosecond,
	}, &recorder{}, &counts{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr.Observe(true, "v", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for tr.PresentCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if tr.PresentCount() != 0 {
		t.Error("Run did not sweep the stale value")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
