package metrics

import "time"

// Tracker adapts Metrics to the aggregate.MetricsTracker interface without
// forcing domain packages to import prometheus.
type Tracker struct {
	m *Metrics
}

func NewTracker(m *Metrics) *Tracker {
	return &Tracker{m: m}
}

func (t *Tracker) AggregationsInc() {
	if t != nil && t.m != nil {
		t.m.AggregationsTotal.Inc()
	}
}

func (t *Tracker) AggregationErrorsInc() {
	if t != nil && t.m != nil {
		t.m.AggregationErrors.Inc()
	}
}

func (t *Tracker) AggregationDuration(d time.Duration) {
	if t != nil && t.m != nil {
		t.m.AggregationDuration.Observe(d.Seconds())
	}
}

func (t *Tracker) ResultRows(n int) {
	if t != nil && t.m != nil {
		t.m.LastResultRows.Set(float64(n))
	}
}

func (t *Tracker) ProfileLoadedInc() {
	if t != nil && t.m != nil {
		t.m.ProfilesLoaded.Inc()
	}
}

func (t *Tracker) RenderObserved(d time.Duration) {
	if t != nil && t.m != nil {
		t.m.RendersTotal.Inc()
		t.m.RenderDuration.Observe(d.Seconds())
	}
}
