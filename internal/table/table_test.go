package table

import (
	"math"
	"testing"
)

func TestTable_AddAndAccess(t *testing.T) {
	tbl := New()
	if err := tbl.AddNumeric("time", []float64{100, 101, 102}); err != nil {
		t.Fatalf("AddNumeric failed: %v", err)
	}
	if err := tbl.AddText("label", []string{"a", "b", "c"}); err != nil {
		t.Fatalf("AddText failed: %v", err)
	}

	if got := tbl.NumRows(); got != 3 {
		t.Errorf("NumRows = %d, want 3", got)
	}
	if got := tbl.NumCols(); got != 2 {
		t.Errorf("NumCols = %d, want 2", got)
	}

	names := tbl.Names()
	if names[0] != "time" || names[1] != "label" {
		t.Errorf("Names = %v, want [time label]", names)
	}

	col, ok := tbl.Column("label")
	if !ok {
		t.Fatal("expected label column to exist")
	}
	if col.Kind != KindText || col.Text[1] != "b" {
		t.Errorf("unexpected label column: %+v", col)
	}
}

func TestTable_RowCountMismatch(t *testing.T) {
	tbl := New()
	if err := tbl.AddNumeric("time", []float64{1, 2}); err != nil {
		t.Fatalf("AddNumeric failed: %v", err)
	}
	if err := tbl.AddText("label", []string{"only one"}); err == nil {
		t.Error("expected error adding column with mismatched row count")
	}
}

func TestTable_DuplicateColumn(t *testing.T) {
	tbl := New()
	if err := tbl.AddNumeric("time", []float64{1}); err != nil {
		t.Fatalf("AddNumeric failed: %v", err)
	}
	if err := tbl.AddNumeric("time", []float64{2}); err == nil {
		t.Error("expected error adding duplicate column")
	}
}

func TestTable_EqualWithNaN(t *testing.T) {
	a := New()
	b := New()
	for _, tbl := range []*Table{a, b} {
		if err := tbl.AddNumeric("v", []float64{1, math.NaN(), 3}); err != nil {
			t.Fatalf("AddNumeric failed: %v", err)
		}
	}
	if !a.Equal(b) {
		t.Error("tables with matching NaN positions should be equal")
	}

	c := New()
	if err := c.AddNumeric("v", []float64{1, 2, 3}); err != nil {
		t.Fatalf("AddNumeric failed: %v", err)
	}
	if a.Equal(c) {
		t.Error("NaN should not equal a real value")
	}
}

func TestJoin_RowCountStable(t *testing.T) {
	events := New()
	if err := events.AddNumeric("trial", []float64{-1, 0, 0, 1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := events.AddNumeric("start", []float64{10, 20, 30, 40, 50}); err != nil {
		t.Fatal(err)
	}

	meta := New()
	if err := meta.AddNumeric("trial", []float64{0, 1, 7}); err != nil {
		t.Fatal(err)
	}
	if err := meta.AddText("condition", []string{"easy", "hard", "unused"}); err != nil {
		t.Fatal(err)
	}

	joined, err := Join(events, meta)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	// Left join: exactly one output row per event, no more, no fewer.
	if got := joined.NumRows(); got != events.NumRows() {
		t.Errorf("joined rows = %d, want %d", got, events.NumRows())
	}

	cond, ok := joined.Column("condition")
	if !ok {
		t.Fatal("expected condition column")
	}
	want := []string{"", "easy", "easy", "hard", ""}
	for i, w := range want {
		if cond.Text[i] != w {
			t.Errorf("condition[%d] = %q, want %q", i, cond.Text[i], w)
		}
	}
}

func TestJoin_NumericFillIsNaN(t *testing.T) {
	events := New()
	if err := events.AddNumeric("trial", []float64{0, 3}); err != nil {
		t.Fatal(err)
	}

	meta := New()
	if err := meta.AddNumeric("trial", []float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := meta.AddNumeric("difficulty", []float64{2.5}); err != nil {
		t.Fatal(err)
	}

	joined, err := Join(events, meta)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	diff, _ := joined.Column("difficulty")
	if diff.Nums[0] != 2.5 {
		t.Errorf("difficulty[0] = %v, want 2.5", diff.Nums[0])
	}
	if !math.IsNaN(diff.Nums[1]) {
		t.Errorf("difficulty[1] = %v, want NaN", diff.Nums[1])
	}
}

func TestJoin_DuplicateMetadataFirstWins(t *testing.T) {
	events := New()
	if err := events.AddNumeric("trial", []float64{0}); err != nil {
		t.Fatal(err)
	}

	meta := New()
	if err := meta.AddNumeric("trial", []float64{0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := meta.AddText("note", []string{"first", "second"}); err != nil {
		t.Fatal(err)
	}

	joined, err := Join(events, meta)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if got := joined.NumRows(); got != 1 {
		t.Fatalf("joined rows = %d, want 1 (events must not be duplicated)", got)
	}
	note, _ := joined.Column("note")
	if note.Text[0] != "first" {
		t.Errorf("note = %q, want %q", note.Text[0], "first")
	}
}

func TestJoin_CollidingColumnRenamed(t *testing.T) {
	events := New()
	if err := events.AddNumeric("trial", []float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := events.AddNumeric("start", []float64{100}); err != nil {
		t.Fatal(err)
	}

	meta := New()
	if err := meta.AddNumeric("trial", []float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := meta.AddNumeric("start", []float64{99}); err != nil {
		t.Fatal(err)
	}

	joined, err := Join(events, meta)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, ok := joined.Column("start_meta"); !ok {
		t.Error("expected colliding metadata column to be renamed start_meta")
	}
	orig, _ := joined.Column("start")
	if orig.Nums[0] != 100 {
		t.Errorf("events start overwritten: got %v, want 100", orig.Nums[0])
	}
}

func TestJoin_MissingTrialColumn(t *testing.T) {
	events := New()
	if err := events.AddNumeric("start", []float64{1}); err != nil {
		t.Fatal(err)
	}
	meta := New()
	if err := meta.AddNumeric("trial", []float64{0}); err != nil {
		t.Fatal(err)
	}
	if _, err := Join(events, meta); err == nil {
		t.Error("expected error when events table lacks trial column")
	}
}
