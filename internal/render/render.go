// Package render builds faceted go-echarts pages from aggregated explanation
// profiles: one line (numeric axis) or grouped bar (categorical axis) chart
// per variable, optionally overlaying the raw per-instance curves.
package render

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"explainprof/internal/aggregate"
	"explainprof/internal/common"
	"explainprof/internal/profile"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rs/zerolog/log"
)

// Geometry selects what is drawn: aggregated curves only, or aggregated
// curves over faded raw per-instance curves.
type Geometry string

const (
	GeomAggregates Geometry = "aggregates"
	GeomProfiles   Geometry = "profiles"
)

var (
	ErrGeometry = errors.New("render: geometry must be 'aggregates' or 'profiles'")
	// ErrNoOverlap is returned when the variable filter does not intersect
	// the variables present in the result tables.
	ErrNoOverlap = errors.New("render: variables do not overlap with the aggregated profiles")
	// ErrNotProfiles is returned when an overlay object is nil.
	ErrNotProfiles = errors.New("render: overlay object is not an aggregated profile")
)

// PlotOptions configures the chart layout.
type PlotOptions struct {
	Objects           []*aggregate.Profiles // additional results to overlay
	Geometry          Geometry              // default GeomAggregates
	Variables         []string              // nil means all variables
	Size              float64               // line width in px, default 2
	Alpha             float64               // line opacity, default 1
	FacetNcol         int                   // default 2
	Title             string
	TitleX            string  // y-axis title ("prediction")
	HorizontalSpacing float64 // fraction of width between facets, default 0.05
	VerticalSpacing   float64 // fraction of height between rows, default 0.3/rows
}

func (o *PlotOptions) defaults() {
	if o.Geometry == "" {
		o.Geometry = GeomAggregates
	}
	if o.Size <= 0 {
		o.Size = 2
	}
	if o.Alpha <= 0 || o.Alpha > 1 {
		o.Alpha = 1
	}
	if o.FacetNcol <= 0 {
		o.FacetNcol = common.DefaultFacetNcol
	}
	if o.Title == "" {
		o.Title = common.DefaultPlotTitle
	}
	if o.TitleX == "" {
		o.TitleX = common.DefaultPlotTitleX
	}
	if o.HorizontalSpacing <= 0 {
		o.HorizontalSpacing = 0.05
	}
}

// plotRow is an aggregated row tagged with the mean prediction of the result
// object it came from.
type plotRow struct {
	aggregate.Row
	meanPrediction float64
}

// Plot builds the faceted chart page for p and any overlay objects. The page
// can be rendered to any io.Writer; PlotSave writes it to an HTML file.
func Plot(p *aggregate.Profiles, o PlotOptions) (*components.Page, error) {
	if o.Geometry != "" && o.Geometry != GeomAggregates && o.Geometry != GeomProfiles {
		return nil, fmt.Errorf("%w, got %q", ErrGeometry, o.Geometry)
	}
	o.defaults()

	rows := mergeRows(p, o.Objects)
	if rows == nil {
		return nil, ErrNotProfiles
	}

	variables, err := selectVariables(rows, o.Variables)
	if err != nil {
		return nil, err
	}
	rows = filterRows(rows, variables)

	yMin, yMax := yRange(rows)
	numeric := rows[0].Value.IsNumeric()

	facetNrow := (len(variables) + o.FacetNcol - 1) / o.FacetNcol
	if o.VerticalSpacing <= 0 {
		o.VerticalSpacing = 0.3 / float64(facetNrow)
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = o.Title

	labels := seriesLabels(rows)
	colors := DefaultColors(len(labels))

	for _, v := range variables {
		if numeric {
			page.AddCharts(lineFacet(v, rows, p, labels, colors, yMin, yMax, o))
		} else {
			page.AddCharts(barFacet(v, rows, labels, colors, yMin, yMax, o))
		}
	}

	log.Debug().
		Str("geometry", string(o.Geometry)).
		Int("facets", len(variables)).
		Bool("numeric", numeric).
		Msg("plot built")
	return page, nil
}

// PlotSave renders the page to an HTML file, the display counterpart of an
// interactive show.
func PlotSave(p *aggregate.Profiles, o PlotOptions, path string) error {
	start := time.Now()
	page, err := Plot(p, o)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file %s: %w", path, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	log.Info().Str("path", path).Dur("took", time.Since(start)).Msg("plot saved")
	return nil
}

func mergeRows(p *aggregate.Profiles, objects []*aggregate.Profiles) []plotRow {
	var rows []plotRow
	for _, r := range p.Result {
		rows = append(rows, plotRow{Row: r, meanPrediction: p.MeanPrediction})
	}
	for _, ob := range objects {
		if ob == nil {
			return nil
		}
		for _, r := range ob.Result {
			rows = append(rows, plotRow{Row: r, meanPrediction: ob.MeanPrediction})
		}
	}
	return rows
}

func selectVariables(rows []plotRow, requested []string) ([]string, error) {
	var available []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if !seen[r.Variable] {
			seen[r.Variable] = true
			available = append(available, r.Variable)
		}
	}
	if len(requested) == 0 {
		return available, nil
	}
	want := make(map[string]bool, len(requested))
	for _, v := range requested {
		want[v] = true
	}
	var out []string
	for _, v := range available {
		if want[v] {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: requested %v", ErrNoOverlap, requested)
	}
	return out, nil
}

func filterRows(rows []plotRow, variables []string) []plotRow {
	keep := make(map[string]bool, len(variables))
	for _, v := range variables {
		keep[v] = true
	}
	out := rows[:0]
	for _, r := range rows {
		if keep[r.Variable] {
			out = append(out, r)
		}
	}
	return out
}

// yRange pads the data range so fixed axis bounds leave headroom.
func yRange(rows []plotRow) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		lo = math.Min(lo, r.Yhat)
		hi = math.Max(hi, r.Yhat)
	}
	pad := (hi - lo) * common.YAxisPaddingRatio
	return lo - pad, hi + pad
}

// seriesLabel merges the model label with the group key, matching the
// grouped-profile naming of the result tables.
func seriesLabel(r plotRow) string {
	if r.Group != "" {
		return r.Label + "_" + r.Group
	}
	return r.Label
}

func seriesLabels(rows []plotRow) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, r := range rows {
		l := seriesLabel(r)
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)
	return labels
}

func facetSize(o PlotOptions) (string, string) {
	width := (1.0 - float64(o.FacetNcol)*o.HorizontalSpacing) / float64(o.FacetNcol) * 100
	height := common.BaseFacetHeight + common.FacetHeightMargin
	return fmt.Sprintf("%.0f%%", width), fmt.Sprintf("%dpx", height)
}

// lineFacet builds the chart for one numeric variable.
func lineFacet(variable string, rows []plotRow, p *aggregate.Profiles,
	labels []string, colors []string, yMin, yMax float64, o PlotOptions) *charts.Line {

	categories, index := valueAxis(rows, variable)
	width, height := facetSize(o)

	overlay := o.Geometry == GeomProfiles && p.Raw != nil

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: width, Height: height}),
		charts.WithTitleOpts(opts.Title{Title: variable, Subtitle: o.Title}),
		charts.WithColorsOpts(opts.Colors(colors)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(!overlay), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: o.TitleX,
			Min:  yMin,
			Max:  yMax,
			SplitLine: &opts.SplitLine{
				Show:      opts.Bool(true),
				LineStyle: &opts.LineStyle{Width: 2},
			},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)
	line.SetXAxis(categories)

	size := float32(o.Size)
	alpha := float32(o.Alpha)
	if overlay {
		// Raw curves sit underneath; the aggregates are drawn double width
		// at full opacity so they stay readable.
		size = float32(2 * o.Size)
		alpha = 1
		for _, id := range rawIDs(p.Raw, variable) {
			line.AddSeries(id, rawSeries(p.Raw, variable, id, index, len(categories)),
				charts.WithLineStyleOpts(opts.LineStyle{
					Color:   common.RawProfileColor,
					Width:   1,
					Opacity: common.RawProfileOpacity,
				}),
			)
		}
	}

	for i, label := range labels {
		data := make([]opts.LineData, len(categories))
		for j := range data {
			data[j] = opts.LineData{Value: "-"}
		}
		found := false
		for _, r := range rows {
			if r.Variable != variable || seriesLabel(r) != label {
				continue
			}
			data[index[r.Value.Key()]] = opts.LineData{Value: r.Yhat}
			found = true
		}
		if !found {
			continue
		}
		line.AddSeries(label, data,
			charts.WithLineStyleOpts(opts.LineStyle{
				Color:   colors[i%len(colors)],
				Width:   size,
				Opacity: alpha,
			}),
		)
	}
	return line
}

// barFacet builds the grouped bar chart for one categorical variable with
// reversed category order.
func barFacet(variable string, rows []plotRow,
	labels []string, colors []string, yMin, yMax float64, o PlotOptions) *charts.Bar {

	categories, index := valueAxis(rows, variable)
	// reversed category order on the axis
	for i, j := 0, len(categories)-1; i < j; i, j = i+1, j-1 {
		categories[i], categories[j] = categories[j], categories[i]
	}
	reversed := make(map[string]int, len(index))
	for k, i := range index {
		reversed[k] = len(categories) - 1 - i
	}
	width, height := facetSize(o)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: width, Height: height}),
		charts.WithTitleOpts(opts.Title{Title: variable, Subtitle: o.Title}),
		charts.WithColorsOpts(opts.Colors(colors)),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: o.TitleX,
			Min:  yMin,
			Max:  yMax,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
	)
	bar.SetXAxis(categories)

	for i, label := range labels {
		data := make([]opts.BarData, len(categories))
		for j := range data {
			data[j] = opts.BarData{Value: "-"}
		}
		found := false
		for _, r := range rows {
			if r.Variable != variable || seriesLabel(r) != label {
				continue
			}
			data[reversed[r.Value.Key()]] = opts.BarData{Value: r.Yhat}
			found = true
		}
		if !found {
			continue
		}
		bar.AddSeries(label, data,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[i%len(colors)]}),
		)
	}
	return bar
}

// valueAxis returns the sorted distinct grid values of a variable as axis
// categories plus a value-key index into them.
func valueAxis(rows []plotRow, variable string) ([]string, map[string]int) {
	var values []profile.Value
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.Variable != variable || seen[r.Value.Key()] {
			continue
		}
		seen[r.Value.Key()] = true
		values = append(values, r.Value)
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Less(values[j]) })

	categories := make([]string, len(values))
	index := make(map[string]int, len(values))
	for i, v := range values {
		categories[i] = v.String()
		index[v.Key()] = i
	}
	return categories, index
}

func rawIDs(raw *profile.CeterisParibus, variable string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range raw.Result {
		if r.Variable == variable && !seen[r.ID] {
			seen[r.ID] = true
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func rawSeries(raw *profile.CeterisParibus, variable, id string, index map[string]int, n int) []opts.LineData {
	data := make([]opts.LineData, n)
	for i := range data {
		data[i] = opts.LineData{Value: "-"}
	}
	for _, r := range raw.Result {
		if r.Variable != variable || r.ID != id {
			continue
		}
		if pos, ok := index[r.Value.Key()]; ok {
			data[pos] = opts.LineData{Value: r.Yhat}
		}
	}
	return data
}
