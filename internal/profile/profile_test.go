package profile

import (
	"encoding/json"
	"errors"
	"testing"
)

func validRows() []ProfileRow {
	return []ProfileRow{
		{ID: "a", Variable: "age", Value: Num(1), Yhat: 0.2},
		{ID: "a", Variable: "age", Value: Num(2), Yhat: 0.4},
		{ID: "a", Variable: "class", Value: Cat("first"), Yhat: 0.3},
	}
}

func validObs() []Observation {
	return []Observation{{ID: "a", Yhat: 0.25}}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("m", nil, validObs()); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}
	if _, err := New("m", validRows(), nil); !errors.Is(err, ErrEmptyObservations) {
		t.Errorf("expected ErrEmptyObservations, got %v", err)
	}

	rows := validRows()
	rows[1].Variable = ""
	if _, err := New("m", rows, validObs()); err == nil {
		t.Error("expected error for row without variable name")
	}

	cp, err := New("m", validRows(), validObs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for _, r := range cp.Result {
		if r.Label != "m" {
			t.Errorf("row label should inherit container label, got %q", r.Label)
		}
	}
	if cp.Observations[0].Label != "m" {
		t.Errorf("observation label should inherit container label, got %q", cp.Observations[0].Label)
	}
}

func TestClone_Independent(t *testing.T) {
	t.Parallel()
	rows := validRows()
	rows[0].Groups = map[string]string{"gender": "m"}
	cp, err := New("m", rows, validObs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	clone := cp.Clone()
	clone.Result[0].Yhat = 99
	clone.Result[0].Groups["gender"] = "f"
	clone.Observations[0].Yhat = 99

	if cp.Result[0].Yhat == 99 || cp.Observations[0].Yhat == 99 {
		t.Error("clone must not share row slices with the original")
	}
	if cp.Result[0].Groups["gender"] == "f" {
		t.Error("clone must not share group maps with the original")
	}
}

func TestVariables_FirstSeenOrder(t *testing.T) {
	t.Parallel()
	cp, err := New("m", validRows(), validObs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got := cp.Variables()
	if len(got) != 2 || got[0] != "age" || got[1] != "class" {
		t.Errorf("expected [age class], got %v", got)
	}
}

func TestIsNumeric(t *testing.T) {
	t.Parallel()
	cp, err := New("m", validRows(), validObs())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !cp.IsNumeric("age") {
		t.Error("age should be numeric")
	}
	if cp.IsNumeric("class") {
		t.Error("class should not be numeric")
	}
	if cp.IsNumeric("missing") {
		t.Error("unknown variable should not be numeric")
	}
}

func TestValue_JSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Value
	}{
		{`1.5`, Num(1.5)},
		{`-3`, Num(-3)},
		{`"first"`, Cat("first")},
		{`null`, Value{}},
	}
	for _, tc := range cases {
		var v Value
		if err := json.Unmarshal([]byte(tc.in), &v); err != nil {
			t.Errorf("unmarshal %s failed: %v", tc.in, err)
			continue
		}
		if !v.Equal(tc.want) {
			t.Errorf("unmarshal %s: got %v, want %v", tc.in, v, tc.want)
		}
	}

	var v Value
	if err := json.Unmarshal([]byte(`{"x":1}`), &v); err == nil {
		t.Error("expected error for object-valued cell")
	}

	out, err := json.Marshal(Num(2.5))
	if err != nil || string(out) != "2.5" {
		t.Errorf("marshal Num(2.5): got %s, err %v", out, err)
	}
	out, err = json.Marshal(Cat("first"))
	if err != nil || string(out) != `"first"` {
		t.Errorf("marshal Cat(first): got %s, err %v", out, err)
	}
}

func TestValue_Ordering(t *testing.T) {
	t.Parallel()

	if !Num(1).Less(Num(2)) || Num(2).Less(Num(1)) {
		t.Error("numeric ordering broken")
	}
	if !Cat("a").Less(Cat("b")) || Cat("b").Less(Cat("a")) {
		t.Error("categorical ordering broken")
	}
	if !Num(5).Less(Cat("a")) {
		t.Error("numeric cells should order before categorical cells")
	}
	if Num(1).Key() == Cat("1").Key() {
		t.Error("numeric and categorical cells must not collide in bucket keys")
	}
}
