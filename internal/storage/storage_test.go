package storage

import (
	"errors"
	"testing"
	"time"

	"explainprof/internal/aggregate"
	"explainprof/internal/profile"
)

func fitted(t *testing.T) *aggregate.Profiles {
	t.Helper()
	rows := []profile.ProfileRow{
		{ID: "a", Variable: "age", Value: profile.Num(1), Yhat: 2.0},
		{ID: "a", Variable: "age", Value: profile.Num(2), Yhat: 4.0},
		{ID: "b", Variable: "age", Value: profile.Num(1), Yhat: 3.0},
		{ID: "b", Variable: "age", Value: profile.Num(2), Yhat: 5.0},
	}
	obs := []profile.Observation{{ID: "a", Yhat: 2.0}, {ID: "b", Yhat: 3.0}}
	cp, err := profile.New("model", rows, obs)
	if err != nil {
		t.Fatalf("profile.New failed: %v", err)
	}
	p, err := aggregate.New(aggregate.DefaultOptions())
	if err != nil {
		t.Fatalf("aggregate.New failed: %v", err)
	}
	if err := p.Fit(cp); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return p
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLatest(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	p := fitted(t)

	if err := s.SaveProfiles("titanic-rf", p); err != nil {
		t.Fatalf("SaveProfiles failed: %v", err)
	}

	rec, err := s.Latest("titanic-rf")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if rec.Kind != aggregate.KindPartial {
		t.Errorf("expected kind partial, got %q", rec.Kind)
	}
	if len(rec.Rows) != len(p.Result) {
		t.Errorf("expected %d rows, got %d", len(p.Result), len(rec.Rows))
	}
	if rec.MeanPrediction != p.MeanPrediction {
		t.Errorf("expected mean prediction %g, got %g", p.MeanPrediction, rec.MeanPrediction)
	}

	restored := rec.Restore()
	if restored.Kind() != aggregate.KindPartial {
		t.Errorf("restored kind mismatch: %q", restored.Kind())
	}
	if restored.Raw != nil {
		t.Error("restored profiles must not carry a raw overlay")
	}
}

func TestLatest_PicksNewest(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	p := fitted(t)

	if err := s.SaveProfiles("m", p); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	p.MeanPrediction = 42
	if err := s.SaveProfiles("m", p); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	rec, err := s.Latest("m")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if rec.MeanPrediction != 42 {
		t.Errorf("Latest should return the newest record, got mean %g", rec.MeanPrediction)
	}
}

func TestLatest_NotFound(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	if _, err := s.Latest("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetInRange(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	p := fitted(t)

	before := time.Now().Add(-time.Minute)
	if err := s.SaveProfiles("m", p); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	after := time.Now().Add(time.Minute)

	records, err := s.GetInRange("m", before, after)
	if err != nil {
		t.Fatalf("GetInRange failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record in range, got %d", len(records))
	}

	records, err = s.GetInRange("m", after, after.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetInRange failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records outside the window, got %d", len(records))
	}

	records, err = s.GetInRange("other", before, after)
	if err != nil {
		t.Fatalf("GetInRange failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records for other label, got %d", len(records))
	}
}
