package stats

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

const (
	namespace  = "presence"
	valueLabel = "value"
)

// Registry is a concurrency-safe set of monotonic counters keyed by counter
// name and tracked value. The zero value is not usable; call New.
type Registry struct {
	mu     sync.RWMutex
	counts map[string]map[string]uint64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{counts: make(map[string]map[string]uint64)}
}

// Inc adds one to the counter name for value.
func (r *Registry) Inc(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byValue, ok := r.counts[name]
	if !ok {
		byValue = make(map[string]uint64)
		r.counts[name] = byValue
	}
	byValue[value]++
}

// Value returns the current count for name and value.
func (r *Registry) Value(name, value string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[name][value]
}

// Families builds one counter family per counter name, sorted by family name,
// with samples sorted by value label.
func (r *Registry) Families() []*dto.MetricFamily {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.counts))
	for name := range r.counts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*dto.MetricFamily, 0, len(names))
	for _, name := range names {
		byValue := r.counts[name]
		values := make([]string, 0, len(byValue))
		for v := range byValue {
			values = append(values, v)
		}
		sort.Strings(values)

		mf := &dto.MetricFamily{
			Name: proto.String(fmt.Sprintf("%s_%s_total", namespace, name)),
			Help: proto.String(fmt.Sprintf("Number of %s transitions per tracked value.", name)),
			Type: dto.MetricType_COUNTER.Enum(),
		}
		for _, v := range values {
			mf.Metric = append(mf.Metric, &dto.Metric{
				Label:   []*dto.LabelPair{{Name: proto.String(valueLabel), Value: proto.String(v)}},
				Counter: &dto.Counter{Value: proto.Float64(float64(byValue[v]))},
			})
		}
		out = append(out, mf)
	}
	return out
}

// WriteText writes all counter families, followed by the presence_present
// gauge when present is non-nil, in text exposition format.
func (r *Registry) WriteText(w io.Writer, present func() int) error {
	families := r.Families()
	if present != nil {
		families = append(families, &dto.MetricFamily{
			Name: proto.String(namespace + "_present"),
			Help: proto.String("Number of tracked values currently HOME."),
			Type: dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{
				Gauge: &dto.Gauge{Value: proto.Float64(float64(present()))},
			}},
		})
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("stats: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the registry at GET /metrics.
func (r *Registry) Handler(present func() int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := r.WriteText(w, present); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
