package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Status is the state carried by a transition notification.
type Status string

const (
	StatusHome Status = "HOME"
	StatusAway Status = "AWAY"
)

// Counter names incremented once per emitted transition.
const (
	CounterHome = "home"
	CounterAway = "away"
)

// Default values for Config fields left at zero by the host.
const (
	DefaultSweepInterval = time.Minute
	DefaultSilenceWindow = 10 * time.Minute
)

// ErrConfig is wrapped by every configuration error returned from New.
var ErrConfig = errors.New("presence: invalid configuration")

// Transition is the payload published on every HOME or AWAY edge.
type Transition struct {
	Value  string `json:"value"`
	Status Status `json:"status"`
}

// Notifier delivers a transition to an external system. Implementations are
// expected to bound their own latency.
type Notifier interface {
	Publish(ctx context.Context, topic string, t Transition) error
}

// Counter records monotonic per-value transition counts.
type Counter interface {
	Inc(name, value string)
}

// Config holds the tracker settings supplied by the host at construction.
type Config struct {
	// Metric is the watched metric name; the ingestion glue compares against it.
	Metric string
	// Tag is the tag whose value identifies the tracked entity.
	Tag string
	// Values is the allow-list of tracked values.
	Values []string
	// Topic is passed to every Notifier.Publish call.
	Topic string
	// SweepInterval is the Run ticker period.
	SweepInterval time.Duration
	// SilenceWindow is how long a value may go unseen before it is AWAY.
	SilenceWindow time.Duration
}

// Entry is one tracked value as reported by Snapshot.
type Entry struct {
	Value    string
	Status   Status
	LastSeen time.Time // zero when AWAY
	Since    time.Time // zero when AWAY
}

// Tracker owns the presence Store and emits HOME/AWAY transitions.
//
// Observe and Sweep are safe for concurrent use.
type Tracker struct {
	cfg      Config
	values   map[string]struct{}
	store    *Store
	notifier Notifier
	counter  Counter
}

// New validates cfg and returns a Tracker publishing through n and counting
// through c. Zero SweepInterval and SilenceWindow take their defaults.
func New(cfg Config, n Notifier, c Counter) (*Tracker, error) {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.SilenceWindow == 0 {
		cfg.SilenceWindow = DefaultSilenceWindow
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if n == nil || c == nil {
		return nil, fmt.Errorf("%w: notifier and counter are required", ErrConfig)
	}

	values := make(map[string]struct{}, len(cfg.Values))
	for _, v := range cfg.Values {
		values[v] = struct{}{}
	}
	return &Tracker{
		cfg:      cfg,
		values:   values,
		store:    NewStore(),
		notifier: n,
		counter:  c,
	}, nil
}

func validate(cfg Config) error {
	if cfg.Metric == "" {
		return fmt.Errorf("%w: metric name is required", ErrConfig)
	}
	if cfg.Tag == "" {
		return fmt.Errorf("%w: tag name is required", ErrConfig)
	}
	if len(cfg.Values) == 0 {
		return fmt.Errorf("%w: at least one tracked value is required", ErrConfig)
	}
	for i, v := range cfg.Values {
		if v == "" {
			return fmt.Errorf("%w: values[%d] is empty", ErrConfig, i)
		}
	}
	if cfg.SweepInterval < 0 || cfg.SilenceWindow < 0 {
		return fmt.Errorf("%w: sweep interval and silence window must be positive", ErrConfig)
	}
	return nil
}

// Observe handles one inbound event. metricMatches reports whether the event
// carried the watched metric; tagValue is the value of the watched tag, empty
// when the tag was missing. Events that fail either check, or whose tag value
// is not tracked, are ignored.
//
// The first match after a period of absence emits HOME; later matches only
// refresh the last-seen time.
func (t *Tracker) Observe(metricMatches bool, tagValue string, now time.Time) {
	if !metricMatches || tagValue == "" {
		return
	}
	if _, ok := t.values[tagValue]; !ok {
		return
	}

	if t.store.UpsertAndClassify(tagValue, now) == WasPresent {
		return
	}
	t.emit(tagValue, StatusHome)
}

// Sweep evicts every value unseen for at least silenceWindow and emits AWAY
// for each. Calling it again with no intervening Observe is a no-op.
func (t *Tracker) Sweep(now time.Time, silenceWindow time.Duration) {
	for _, v := range t.store.EvictOlderThan(silenceWindow, now) {
		t.emit(v, StatusAway)
	}
}

// emit counts and publishes one transition. It never holds the store lock.
func (t *Tracker) emit(value string, status Status) {
	name := CounterHome
	if status == StatusAway {
		name = CounterAway
	}
	t.counter.Inc(name, value)

	slog.Info("tracker: presence changed", "value", value, "status", status)

	err := t.notifier.Publish(context.Background(), t.cfg.Topic, Transition{Value: value, Status: status})
	if err != nil {
		slog.Error("tracker: notification failed",
			"value", value,
			"status", status,
			"topic", t.cfg.Topic,
			"err", err,
		)
	}
}

// Run calls Sweep with the configured silence window once per sweep
// interval. Sweeps never overlap. Run blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	slog.Info("tracker: sweep loop started",
		"interval", t.cfg.SweepInterval,
		"silence_window", t.cfg.SilenceWindow,
	)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			t.Sweep(now, t.cfg.SilenceWindow)
		}
	}
}

// Snapshot returns every tracked value with its current status, sorted by value.
func (t *Tracker) Snapshot() []Entry {
	out := make([]Entry, 0, len(t.values))
	for v := range t.values {
		out = append(out, t.entry(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// Lookup returns the entry for value and whether value is tracked.
func (t *Tracker) Lookup(value string) (Entry, bool) {
	if _, ok := t.values[value]; !ok {
		return Entry{}, false
	}
	return t.entry(value), true
}

func (t *Tracker) entry(value string) Entry {
	r, ok := t.store.Get(value)
	if !ok {
		return Entry{Value: value, Status: StatusAway}
	}
	return Entry{Value: value, Status: StatusHome, LastSeen: r.LastSeen, Since: r.Since}
}

// PresentCount returns the number of values currently HOME.
func (t *Tracker) PresentCount() int { return t.store.Len() }

// TrackedCount returns the size of the allow-list.
func (t *Tracker) TrackedCount() int { return len(t.values) }

// Metric returns the watched metric name.
func (t *Tracker) Metric() string { return t.cfg.Metric }

// Tag returns the watched tag name.
func (t *Tracker) Tag() string { return t.cfg.Tag }
