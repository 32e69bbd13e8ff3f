package storage

import (
	"testing"

	"github.com/san-kum/qsched/internal/results"
)

func testResults() *results.Store {
	st := results.New()
	st.Put("E0", 1.0)
	st.Put("label", "ground state") // non-numeric, excluded from series
	st.Put("E1", 0.999)
	return st
}

func TestSaveLoad(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := s.Save("scenario_a", "completed", 4, 0.1, testResults())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Fatal("expected non-empty run id")
	}

	meta, err := s.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Label != "scenario_a" || meta.Status != "completed" {
		t.Errorf("metadata misread: %+v", meta)
	}
	if meta.NumResults != 3 || meta.Steps != 4 {
		t.Errorf("counts misread: %+v", meta)
	}

	res, err := s.LoadResults(runID)
	if err != nil {
		t.Fatalf("load results failed: %v", err)
	}
	wantKeys := []string{"E0", "label", "E1"}
	if len(res) != len(wantKeys) {
		t.Fatalf("expected %d entries, got %v", len(wantKeys), res)
	}
	for i, e := range res {
		if e.Key != wantKeys[i] {
			t.Errorf("entry %d: key %q, want %q (insertion order lost)", i, e.Key, wantKeys[i])
		}
	}
	if res[0].Value != 1.0 || res[1].Value != "ground state" {
		t.Errorf("results misread: %v", res)
	}
}

func TestSeriesNumericOnly(t *testing.T) {
	s := New(t.TempDir())
	s.Init()

	runID, err := s.Save("run", "completed", 3, 0, testResults())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	keys, values, err := s.LoadSeries(runID)
	if err != nil {
		t.Fatalf("load series failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "E0" || keys[1] != "E1" {
		t.Errorf("expected numeric keys in order, got %v", keys)
	}
	if values[0] != 1.0 || values[1] != 0.999 {
		t.Errorf("values misread: %v", values)
	}
}

func TestList(t *testing.T) {
	s := New(t.TempDir())
	s.Init()

	if runs, err := s.List(); err != nil || len(runs) != 0 {
		t.Fatalf("expected empty list, got %v %v", runs, err)
	}

	s.Save("first", "completed", 1, 0, testResults())
	s.Save("second", "failed", 2, 0, testResults())

	runs, err := s.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Label != "first" || runs[1].Label != "second" {
		t.Errorf("expected chronological order, got %v", runs)
	}
}

func TestListMissingDir(t *testing.T) {
	s := New("/nonexistent/path/for/test")
	runs, err := s.List()
	if err != nil || runs != nil {
		t.Errorf("expected nil, nil for missing dir, got %v %v", runs, err)
	}
}
