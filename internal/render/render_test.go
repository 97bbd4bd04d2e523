package render

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"explainprof/internal/aggregate"
	"explainprof/internal/profile"
)

func fittedProfiles(t *testing.T, opts aggregate.Options) *aggregate.Profiles {
	t.Helper()
	rows := []profile.ProfileRow{
		{ID: "a", Variable: "age", Value: profile.Num(1), Yhat: 2.0},
		{ID: "a", Variable: "age", Value: profile.Num(2), Yhat: 4.0},
		{ID: "b", Variable: "age", Value: profile.Num(1), Yhat: 3.0},
		{ID: "b", Variable: "age", Value: profile.Num(2), Yhat: 5.0},
		{ID: "a", Variable: "fare", Value: profile.Num(10), Yhat: 2.5},
		{ID: "b", Variable: "fare", Value: profile.Num(10), Yhat: 3.5},
		{ID: "a", Variable: "class", Value: profile.Cat("first"), Yhat: 1.0},
		{ID: "b", Variable: "class", Value: profile.Cat("second"), Yhat: 2.0},
	}
	obs := []profile.Observation{{ID: "a", Yhat: 2.0}, {ID: "b", Yhat: 3.0}}
	cp, err := profile.New("model", rows, obs)
	if err != nil {
		t.Fatalf("profile.New failed: %v", err)
	}
	p, err := aggregate.New(opts)
	if err != nil {
		t.Fatalf("aggregate.New failed: %v", err)
	}
	if err := p.Fit(cp); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return p
}

func TestPlot_InvalidGeometry(t *testing.T) {
	t.Parallel()
	p := fittedProfiles(t, aggregate.DefaultOptions())
	if _, err := Plot(p, PlotOptions{Geometry: "sketch"}); !errors.Is(err, ErrGeometry) {
		t.Errorf("expected ErrGeometry, got %v", err)
	}
}

func TestPlot_DisjointVariables(t *testing.T) {
	t.Parallel()
	p := fittedProfiles(t, aggregate.DefaultOptions())
	if _, err := Plot(p, PlotOptions{Variables: []string{"weight"}}); !errors.Is(err, ErrNoOverlap) {
		t.Errorf("expected ErrNoOverlap, got %v", err)
	}
}

func TestPlot_NumericFacets(t *testing.T) {
	t.Parallel()
	p := fittedProfiles(t, aggregate.DefaultOptions())

	page, err := Plot(p, PlotOptions{})
	if err != nil {
		t.Fatalf("Plot failed: %v", err)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"age", "fare", "model"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered page should mention %q", want)
		}
	}
	if strings.Contains(html, "first") {
		t.Error("numerical run should not produce a facet for the categorical variable")
	}
}

func TestPlot_CategoricalBars(t *testing.T) {
	t.Parallel()
	opts := aggregate.DefaultOptions()
	opts.VariableType = aggregate.Categorical
	p := fittedProfiles(t, opts)

	page, err := Plot(p, PlotOptions{})
	if err != nil {
		t.Fatalf("Plot failed: %v", err)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "bar") {
		t.Error("categorical axis should render bar series")
	}
	// Reversed category order: "second" is listed before "first".
	if si, fi := strings.Index(html, "second"), strings.Index(html, "first"); si == -1 || fi == -1 || si > fi {
		t.Error("categorical axis should reverse the category order")
	}
}

func TestPlot_ProfilesOverlay(t *testing.T) {
	t.Parallel()
	p := fittedProfiles(t, aggregate.DefaultOptions())
	if p.Raw == nil {
		t.Fatal("fixture should retain the raw profile")
	}

	page, err := Plot(p, PlotOptions{Geometry: GeomProfiles})
	if err != nil {
		t.Fatalf("Plot failed: %v", err)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	// Raw curves render as one faded series per observation id.
	html := buf.String()
	if !strings.Contains(html, "#ceced9") {
		t.Error("overlay should draw raw curves in the faded profile color")
	}
}

func TestPlot_MergesOverlayObjects(t *testing.T) {
	t.Parallel()
	p := fittedProfiles(t, aggregate.DefaultOptions())

	other := aggregate.FromRows(aggregate.KindPartial, []aggregate.Row{
		{Variable: "age", Value: profile.Num(1), Label: "gbm", Yhat: 2.2, Count: 2},
		{Variable: "age", Value: profile.Num(2), Label: "gbm", Yhat: 4.2, Count: 2},
	}, 2.4)

	page, err := Plot(p, PlotOptions{Objects: []*aggregate.Profiles{other}})
	if err != nil {
		t.Fatalf("Plot failed: %v", err)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "gbm") || !strings.Contains(html, "model") {
		t.Error("overlay objects should contribute their own series")
	}

	if _, err := Plot(p, PlotOptions{Objects: []*aggregate.Profiles{nil}}); !errors.Is(err, ErrNotProfiles) {
		t.Errorf("expected ErrNotProfiles for nil overlay, got %v", err)
	}
}

func TestPlotSave(t *testing.T) {
	t.Parallel()
	p := fittedProfiles(t, aggregate.DefaultOptions())
	path := filepath.Join(t.TempDir(), "out.html")

	if err := PlotSave(p, PlotOptions{}, path); err != nil {
		t.Fatalf("PlotSave failed: %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("expected non-empty HTML file, err=%v", err)
	}
}

func TestDefaultColors(t *testing.T) {
	t.Parallel()
	if got := DefaultColors(0); got != nil {
		t.Errorf("expected nil for n=0, got %v", got)
	}
	colors := DefaultColors(10)
	if len(colors) != 10 {
		t.Fatalf("expected 10 colors, got %d", len(colors))
	}
	if colors[0] != colors[7] {
		t.Error("palette should cycle")
	}
}
