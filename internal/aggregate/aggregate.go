// Package aggregate turns collections of per-instance Ceteris Paribus
// profiles into dataset-level explanation profiles: Partial Dependence,
// kernel-weighted conditional (ICE) aggregates, and Accumulated Local
// Effects.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"explainprof/internal/profile"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MetricsTracker receives aggregation telemetry. Implementations must be
// safe to skip; all hooks are optional.
type MetricsTracker interface {
	AggregationsInc()
	AggregationErrorsInc()
	AggregationDuration(d time.Duration)
	ResultRows(n int)
}

// Row is one bucket of the aggregated profile table.
type Row struct {
	Variable string        `json:"variable"`
	Value    profile.Value `json:"value"`
	Group    string        `json:"group,omitempty"`
	Label    string        `json:"label"`
	Yhat     float64       `json:"yhat"`
	Count    int           `json:"count"` // observations contributing to the bucket
}

// Profiles holds an aggregated explanation: the result table, the mean
// baseline prediction of the sampled observations, and, when a single
// profile container (not a list) was supplied to Fit, a deep copy of it for
// overlay plotting.
type Profiles struct {
	Result         []Row
	MeanPrediction float64
	Raw            *profile.CeterisParibus

	opts Options
}

// New validates the options and returns an empty Profiles object ready for
// Fit.
func New(opts Options) (*Profiles, error) {
	if opts.Span == 0 {
		opts.Span = DefaultOptions().Span
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Profiles{opts: opts}, nil
}

// FromRows rebuilds a Profiles from a previously computed result table, for
// example one reloaded from storage. The raw overlay reference is absent.
func FromRows(kind Kind, rows []Row, meanPrediction float64) *Profiles {
	opts := DefaultOptions()
	opts.Kind = kind
	return &Profiles{Result: rows, MeanPrediction: meanPrediction, opts: opts}
}

// Options returns a copy of the configured options.
func (p *Profiles) Options() Options { return p.opts }

// Kind returns the configured aggregation kind.
func (p *Profiles) Kind() Kind { return p.opts.Kind }

// Fit aggregates the supplied profiles. The input is a single
// *profile.CeterisParibus, a []*profile.CeterisParibus, or a []any whose
// elements are all *profile.CeterisParibus; anything else fails with
// ErrNotCeterisParibus.
func (p *Profiles) Fit(input any) error {
	return p.FitWithMetrics(input, nil)
}

// FitWithMetrics is Fit with an optional telemetry tracker.
func (p *Profiles) FitWithMetrics(input any, m MetricsTracker) error {
	start := time.Now()
	err := p.fit(input)
	if m != nil {
		m.AggregationDuration(time.Since(start))
		if err != nil {
			m.AggregationErrorsInc()
		} else {
			m.AggregationsInc()
			m.ResultRows(len(p.Result))
		}
	}
	return err
}

func (p *Profiles) fit(input any) error {
	cps, single, err := coerceProfiles(input)
	if err != nil {
		return err
	}

	var allRows []profile.ProfileRow
	var allObs []profile.Observation
	for _, cp := range cps {
		allRows = append(allRows, cp.Result...)
		allObs = append(allObs, cp.Observations...)
	}

	vars, err := p.selectVariables(allRows)
	if err != nil {
		return err
	}

	rows := make([]profile.ProfileRow, 0, len(allRows))
	keep := make(map[string]bool, len(vars))
	for _, v := range vars {
		keep[v] = true
	}
	for _, r := range allRows {
		if keep[r.Variable] {
			rows = append(rows, r)
		}
	}

	yhats := make([]float64, len(allObs))
	for i, o := range allObs {
		yhats[i] = o.Yhat
	}
	p.MeanPrediction = stat.Mean(yhats, nil)

	var bar *progressbar.ProgressBar
	if p.opts.Verbose {
		bar = progressbar.Default(int64(len(vars)), "calculating aggregated profiles")
	}

	p.Result = p.Result[:0]
	for _, v := range vars {
		series := splitSeries(rows, v, p.opts.Groups)
		for _, s := range series {
			p.Result = append(p.Result, p.aggregateSeries(s)...)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	sortRows(p.Result)

	if single {
		p.Raw = cps[0].Clone()
	} else {
		p.Raw = nil
	}

	log.Debug().
		Str("kind", string(p.opts.Kind)).
		Int("variables", len(vars)).
		Int("rows", len(p.Result)).
		Float64("mean_prediction", p.MeanPrediction).
		Msg("profiles aggregated")
	return nil
}

// coerceProfiles normalizes the Fit input into a profile slice and reports
// whether a single container was supplied.
func coerceProfiles(input any) ([]*profile.CeterisParibus, bool, error) {
	switch v := input.(type) {
	case *profile.CeterisParibus:
		return []*profile.CeterisParibus{v}, true, nil
	case []*profile.CeterisParibus:
		if len(v) == 0 {
			return nil, false, fmt.Errorf("%w: empty list", ErrNotCeterisParibus)
		}
		for _, cp := range v {
			if cp == nil {
				return nil, false, fmt.Errorf("%w: nil element", ErrNotCeterisParibus)
			}
		}
		return v, false, nil
	case []any:
		if len(v) == 0 {
			return nil, false, fmt.Errorf("%w: empty list", ErrNotCeterisParibus)
		}
		cps := make([]*profile.CeterisParibus, 0, len(v))
		for _, e := range v {
			cp, ok := e.(*profile.CeterisParibus)
			if !ok || cp == nil {
				return nil, false, fmt.Errorf("%w: element of type %T", ErrNotCeterisParibus, e)
			}
			cps = append(cps, cp)
		}
		return cps, false, nil
	default:
		return nil, false, fmt.Errorf("%w: got %T", ErrNotCeterisParibus, input)
	}
}

// selectVariables computes the effective variable set: the intersection of
// requested and available names, restricted to the configured variable type.
func (p *Profiles) selectVariables(rows []profile.ProfileRow) ([]string, error) {
	var available []string
	seen := make(map[string]bool)
	numeric := make(map[string]bool)
	for _, r := range rows {
		if !seen[r.Variable] {
			seen[r.Variable] = true
			numeric[r.Variable] = true
			available = append(available, r.Variable)
		}
		if !r.Value.IsNumeric() {
			numeric[r.Variable] = false
		}
	}

	if len(p.opts.Variables) > 0 {
		requested := make(map[string]bool, len(p.opts.Variables))
		for _, v := range p.opts.Variables {
			requested[v] = true
		}
		filtered := available[:0]
		for _, v := range available {
			if requested[v] {
				filtered = append(filtered, v)
			}
		}
		available = filtered
	}

	var out []string
	for _, v := range available {
		if (p.opts.VariableType == Numerical) == numeric[v] {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoVariables
	}
	return out, nil
}

// series is all profile points for one (variable, group, label) combination.
type series struct {
	variable string
	group    string
	label    string
	points   []profile.ProfileRow
}

func splitSeries(rows []profile.ProfileRow, variable string, groups []string) []*series {
	index := make(map[string]*series)
	var order []string
	for _, r := range rows {
		if r.Variable != variable {
			continue
		}
		g := groupKey(r, groups)
		k := g + "\x00" + r.Label
		s, ok := index[k]
		if !ok {
			s = &series{variable: variable, group: g, label: r.Label}
			index[k] = s
			order = append(order, k)
		}
		s.points = append(s.points, r)
	}
	sort.Strings(order)
	out := make([]*series, 0, len(order))
	for _, k := range order {
		out = append(out, index[k])
	}
	return out
}

func groupKey(r profile.ProfileRow, groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = r.Groups[g]
	}
	return strings.Join(parts, "_")
}

func (p *Profiles) aggregateSeries(s *series) []Row {
	switch p.opts.Kind {
	case KindConditional:
		return p.conditional(s)
	case KindAccumulated:
		return p.accumulated(s)
	default:
		return p.partial(s)
	}
}

// bucket groups the series points by grid value, in sorted value order.
type bucket struct {
	value profile.Value
	yhats []float64
	ids   map[string]bool
}

func splitBuckets(s *series) []*bucket {
	index := make(map[string]*bucket)
	var buckets []*bucket
	for _, r := range s.points {
		k := r.Value.Key()
		b, ok := index[k]
		if !ok {
			b = &bucket{value: r.Value, ids: make(map[string]bool)}
			index[k] = b
			buckets = append(buckets, b)
		}
		b.yhats = append(b.yhats, r.Yhat)
		b.ids[r.ID] = true
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].value.Less(buckets[j].value) })
	return buckets
}

// partial: plain mean of predictions per bucket.
func (p *Profiles) partial(s *series) []Row {
	buckets := splitBuckets(s)
	rows := make([]Row, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, Row{
			Variable: s.variable,
			Value:    b.value,
			Group:    s.group,
			Label:    s.label,
			Yhat:     stat.Mean(b.yhats, nil),
			Count:    len(b.ids),
		})
	}
	return rows
}

// conditional: gaussian-kernel weighted mean per bucket, with the kernel sd
// set to span times the value range of the series. Categorical axes have no
// distance, so their buckets reduce to exact-match means.
func (p *Profiles) conditional(s *series) []Row {
	buckets := splitBuckets(s)
	if len(buckets) == 0 {
		return nil
	}
	if !buckets[0].value.IsNumeric() {
		return p.partial(s)
	}

	lo := buckets[0].value.Float()
	hi := buckets[len(buckets)-1].value.Float()
	sd := p.opts.Span * (hi - lo)
	if sd <= 0 {
		return p.partial(s)
	}

	xs := make([]float64, len(s.points))
	ys := make([]float64, len(s.points))
	for i, r := range s.points {
		xs[i] = r.Value.Float()
		ys[i] = r.Yhat
	}

	rows := make([]Row, 0, len(buckets))
	weights := make([]float64, len(s.points))
	for _, b := range buckets {
		x0 := b.value.Float()
		for i, x := range xs {
			z := (x - x0) / sd
			weights[i] = math.Exp(-0.5 * z * z)
		}
		rows = append(rows, Row{
			Variable: s.variable,
			Value:    b.value,
			Group:    s.group,
			Label:    s.label,
			Yhat:     stat.Mean(ys, weights),
			Count:    len(b.ids),
		})
	}
	return rows
}

// accumulated: per-observation successive prediction differences along the
// sorted grid, averaged per bucket and cumulatively summed. Each step is
// attributed to its right-endpoint bucket; the first bucket carries a zero
// step. With centering enabled the curve is shifted so its count-weighted
// mean equals the overall mean prediction.
func (p *Profiles) accumulated(s *series) []Row {
	buckets := splitBuckets(s)
	if len(buckets) == 0 {
		return nil
	}

	position := make(map[string]int, len(buckets))
	for i, b := range buckets {
		position[b.value.Key()] = i
	}

	// Group the series points per observation curve.
	curves := make(map[string][]profile.ProfileRow)
	var ids []string
	for _, r := range s.points {
		if _, ok := curves[r.ID]; !ok {
			ids = append(ids, r.ID)
		}
		curves[r.ID] = append(curves[r.ID], r)
	}
	sort.Strings(ids)

	sums := make([]float64, len(buckets))
	counts := make([]float64, len(buckets))
	for _, id := range ids {
		pts := curves[id]
		sort.Slice(pts, func(i, j int) bool { return pts[i].Value.Less(pts[j].Value) })
		for i := 1; i < len(pts); i++ {
			pos := position[pts[i].Value.Key()]
			sums[pos] += pts[i].Yhat - pts[i-1].Yhat
			counts[pos]++
		}
	}

	steps := make([]float64, len(buckets))
	for i := range buckets {
		if counts[i] > 0 {
			steps[i] = sums[i] / counts[i]
		}
	}
	curve := make([]float64, len(steps))
	floats.CumSum(curve, steps)

	rowCounts := make([]float64, len(buckets))
	for i, b := range buckets {
		rowCounts[i] = float64(len(b.ids))
	}
	if p.opts.Center {
		shift := p.MeanPrediction - stat.Mean(curve, rowCounts)
		for i := range curve {
			curve[i] += shift
		}
	}

	rows := make([]Row, 0, len(buckets))
	for i, b := range buckets {
		rows = append(rows, Row{
			Variable: s.variable,
			Value:    b.value,
			Group:    s.group,
			Label:    s.label,
			Yhat:     curve[i],
			Count:    int(rowCounts[i]),
		})
	}
	return rows
}

func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Variable != b.Variable {
			return a.Variable < b.Variable
		}
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.Value.Less(b.Value)
	})
}

// Variables lists the distinct variable names of the result table in order.
func (p *Profiles) Variables() []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range p.Result {
		if !seen[r.Variable] {
			seen[r.Variable] = true
			names = append(names, r.Variable)
		}
	}
	return names
}

// IsNumeric reports whether the result value axis is numeric.
func (p *Profiles) IsNumeric() bool {
	for _, r := range p.Result {
		return r.Value.IsNumeric()
	}
	return false
}
