// Package storage persists finished runs for later inspection. It is a
// collaborator of the engine, consumed only by the CLI; the core never
// writes files.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/qsched/internal/results"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one persisted run.
type RunMetadata struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	Steps      int       `json:"steps"`
	NumResults int       `json:"num_results"`
	FinalTime  float64   `json:"final_time"`
}

// ResultEntry is one stored key/value pair. results.json holds a list of
// entries rather than an object so insertion order survives the round trip.
type ResultEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Save writes a run directory containing metadata.json, results.json and,
// for numeric results, series.csv in result insertion order.
func (s *Store) Save(label, status string, steps int, finalTime float64, store *results.Store) (string, error) {
	runID := fmt.Sprintf("%s_%d", label, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Label:      label,
		Timestamp:  time.Now(),
		Status:     status,
		Steps:      steps,
		NumResults: store.Len(),
		FinalTime:  finalTime,
	}
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}

	entries := make([]ResultEntry, 0, store.Len())
	for _, key := range store.Keys() {
		v, _ := store.Get(key)
		entries = append(entries, ResultEntry{Key: key, Value: v})
	}
	if err := writeJSON(filepath.Join(runDir, "results.json"), entries); err != nil {
		return "", err
	}

	if err := s.writeSeries(filepath.Join(runDir, "series.csv"), store); err != nil {
		return "", err
	}

	return runID, nil
}

// Load reads the metadata for a saved run.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadResults reads the stored results of a saved run in insertion order.
func (s *Store) LoadResults(runID string) ([]ResultEntry, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "results.json"))
	if err != nil {
		return nil, err
	}
	var entries []ResultEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadSeries reads the numeric series of a saved run, preserving order.
func (s *Store) LoadSeries(runID string) (keys []string, values []float64, err error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "series.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) != 2 {
			return nil, nil, fmt.Errorf("storage: malformed series row %d", i)
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, row[0])
		values = append(values, v)
	}
	return keys, values, nil
}

// List returns the saved run IDs, newest last.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) writeSeries(path string, store *results.Store) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"key", "value"}); err != nil {
		return err
	}
	for _, key := range store.Keys() {
		v, _ := store.Get(key)
		num, ok := toFloat(v)
		if !ok {
			continue
		}
		if err := w.Write([]string{key, strconv.FormatFloat(num, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
