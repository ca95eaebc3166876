package notify

import (
	"context"
	"strings"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsListener counts events and measures how long each operation took,
// pairing start and end events by run id.
type MetricsListener struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	started  *haxmap.Map[string, time.Time]
}

// NewMetricsListener creates the collectors and registers them with reg.
func NewMetricsListener(reg prometheus.Registerer) (*MetricsListener, error) {
	m := &MetricsListener{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quill",
			Name:      "events_total",
			Help:      "Number of lifecycle events by name.",
		}, []string{"event"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quill",
			Name:      "operation_duration_seconds",
			Help:      "Duration of serialize, deserialize and run operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		started: haxmap.New[string, time.Time](),
	}
	for _, c := range []prometheus.Collector{m.events, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MetricsListener) Handle(_ context.Context, e Event) error {
	m.events.WithLabelValues(e.Name).Inc()

	op, phase, ok := operation(e.Name)
	if !ok {
		return nil
	}
	key := op + "/" + e.RunID.String()
	switch phase {
	case "start":
		m.started.Set(key, time.Time(e.Timestamp))
	case "end":
		if start, ok := m.started.Get(key); ok {
			m.started.Del(key)
			m.duration.WithLabelValues(op).Observe(time.Time(e.Timestamp).Sub(start).Seconds())
		}
	}
	return nil
}

// operation splits "on_run_start" into ("run", "start").
func operation(name string) (string, string, bool) {
	rest, ok := strings.CutPrefix(name, "on_")
	if !ok {
		return "", "", false
	}
	idx := strings.LastIndexByte(rest, '_')
	if idx <= 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}
