// Package schedule parses and validates the declarative description of a
// calculation: an ordered sequence of routine invocations.
package schedule

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Step is one entry in the ordered schedule.
type Step struct {
	Name          string         `yaml:"routine_name"`
	Args          []any          `yaml:"args"`
	Kwargs        map[string]any `yaml:"kwargs"`
	ResultKey     string         `yaml:"result_key"`
	ProducesState bool           `yaml:"produces_state"`
	AdvanceTime   *float64       `yaml:"advance_time"`
}

// Schedule is an ordered sequence of steps. Order is execution order.
type Schedule struct {
	Label     string  `yaml:"label"`
	StartTime float64 `yaml:"start_time"`
	Steps     []Step  `yaml:"steps"`
}

// refMarker is the kwargs/args convention for substituting a previously
// stored result: a one-entry mapping {from: <result_key>}.
const refMarker = "from"

// RefKey reports whether v is a reference into the result store and, if so,
// the referenced key.
func RefKey(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	key, ok := m[refMarker].(string)
	return key, ok
}

// Ref builds a reference value for programmatic schedule construction.
func Ref(key string) map[string]any {
	return map[string]any{refMarker: key}
}

type document struct {
	Schedules []rawSchedule `yaml:"schedules"`
	rawSchedule `yaml:",inline"`
}

type rawSchedule struct {
	Label     string  `yaml:"label"`
	StartTime float64 `yaml:"start_time"`
	Steps     []Step  `yaml:"steps"`
}

// Load parses one or more schedules from r. A file either describes a single
// schedule at the top level or carries several under a `schedules` list.
// Malformed input is reported as *SyntaxError.
func Load(r io.Reader) ([]*Schedule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, &SyntaxError{Err: err}
	}

	raws := doc.Schedules
	if len(raws) == 0 {
		raws = []rawSchedule{doc.rawSchedule}
	}

	schedules := make([]*Schedule, 0, len(raws))
	for i, raw := range raws {
		if len(raw.Steps) == 0 {
			return nil, &SyntaxError{Err: fmt.Errorf("schedule %d has no steps", i)}
		}
		for j, step := range raw.Steps {
			if step.Name == "" {
				return nil, &SyntaxError{Err: fmt.Errorf("schedule %d step %d is missing routine_name", i, j)}
			}
		}
		label := raw.Label
		if label == "" {
			if len(raws) == 1 {
				label = "no_label"
			} else {
				label = fmt.Sprintf("schedule_%d", i)
			}
		}
		schedules = append(schedules, &Schedule{
			Label:     label,
			StartTime: raw.StartTime,
			Steps:     raw.Steps,
		})
	}
	return schedules, nil
}

// LoadFile parses schedules from a YAML file.
func LoadFile(path string) ([]*Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
