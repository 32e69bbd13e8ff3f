package cache

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewKeyDeterministic(t *testing.T) {
	k1, err := NewKey("measure", "fp", []any{1.0}, []any{"a"}, map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("key failed: %v", err)
	}
	k2, err := NewKey("measure", "fp", []any{1.0}, []any{"a"}, map[string]any{"y": 2, "x": 1})
	if err != nil {
		t.Fatalf("key failed: %v", err)
	}
	if k1 != k2 {
		t.Errorf("expected identical keys, got %s vs %s", k1, k2)
	}
}

func TestNewKeyDistinguishes(t *testing.T) {
	base, _ := NewKey("measure", "fp", nil, []any{1.0}, nil)

	tests := []struct {
		name string
		key  func() (Key, error)
	}{
		{"routine name", func() (Key, error) { return NewKey("other", "fp", nil, []any{1.0}, nil) }},
		{"fingerprint", func() (Key, error) { return NewKey("measure", "fp2", nil, []any{1.0}, nil) }},
		{"args", func() (Key, error) { return NewKey("measure", "fp", nil, []any{2.0}, nil) }},
		{"kwargs", func() (Key, error) { return NewKey("measure", "fp", nil, []any{1.0}, map[string]any{"k": 1}) }},
		{"ext", func() (Key, error) { return NewKey("measure", "fp", []any{"sys"}, []any{1.0}, nil) }},
	}
	for _, tt := range tests {
		k, err := tt.key()
		if err != nil {
			t.Fatalf("%s: key failed: %v", tt.name, err)
		}
		if k == base {
			t.Errorf("%s: expected distinct key", tt.name)
		}
	}
}

func TestNewKeySectionsDoNotAlias(t *testing.T) {
	tests := []struct {
		name string
		a, b func() (Key, error)
	}{
		{
			"value in ext vs args",
			func() (Key, error) { return NewKey("m", "", []any{1.0}, nil, nil) },
			func() (Key, error) { return NewKey("m", "", nil, []any{1.0}, nil) },
		},
		{
			"value in args vs kwargs",
			func() (Key, error) { return NewKey("m", "", nil, []any{"k", 1.0}, nil) },
			func() (Key, error) { return NewKey("m", "", nil, nil, map[string]any{"k": 1.0}) },
		},
		{
			"split across ext and args",
			func() (Key, error) { return NewKey("m", "", []any{1.0, 2.0}, nil, nil) },
			func() (Key, error) { return NewKey("m", "", []any{1.0}, []any{2.0}, nil) },
		},
	}
	for _, tt := range tests {
		ka, err := tt.a()
		if err != nil {
			t.Fatalf("%s: key failed: %v", tt.name, err)
		}
		kb, err := tt.b()
		if err != nil {
			t.Fatalf("%s: key failed: %v", tt.name, err)
		}
		if ka == kb {
			t.Errorf("%s: keys collide: %s", tt.name, ka)
		}
	}
}

func TestNewKeyUnkeyable(t *testing.T) {
	_, err := NewKey("measure", "", nil, []any{make(chan int)}, nil)
	if !errors.Is(err, ErrUnkeyable) {
		t.Errorf("expected ErrUnkeyable, got %v", err)
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New()
	key := Key("k1")

	calls := 0
	compute := func() (any, error) {
		calls++
		return 42.0, nil
	}

	v, hit, err := c.GetOrCompute(key, compute)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if hit {
		t.Error("first call should miss")
	}
	if v != 42.0 {
		t.Errorf("expected 42.0, got %v", v)
	}

	v, hit, err = c.GetOrCompute(key, compute)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !hit {
		t.Error("second call should hit")
	}
	if v != 42.0 {
		t.Errorf("expected 42.0, got %v", v)
	}
	if calls != 1 {
		t.Errorf("expected one computation, got %d", calls)
	}
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c := New()
	key := Key("k1")

	calls := 0
	_, _, err := c.GetOrCompute(key, func() (any, error) {
		calls++
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	v, _, err := c.GetOrCompute(key, func() (any, error) {
		calls++
		return 1.0, nil
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if v != 1.0 {
		t.Errorf("expected 1.0, got %v", v)
	}
	if calls != 2 {
		t.Errorf("expected failed result to be recomputed, calls=%d", calls)
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(WithMaxEntries(2))

	for i := 0; i < 3; i++ {
		key := Key(fmt.Sprintf("k%d", i))
		if _, _, err := c.GetOrCompute(key, func() (any, error) { return i, nil }); err != nil {
			t.Fatalf("compute failed: %v", err)
		}
	}

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if _, ok := c.Get(Key("k0")); ok {
		t.Error("expected oldest entry evicted")
	}
	if _, ok := c.Get(Key("k2")); !ok {
		t.Error("expected newest entry retained")
	}
}

func TestLRURecencyOrder(t *testing.T) {
	c := New(WithMaxEntries(2))

	c.GetOrCompute(Key("a"), func() (any, error) { return 1, nil })
	c.GetOrCompute(Key("b"), func() (any, error) { return 2, nil })
	// Touch "a" so "b" becomes least recently used.
	c.Get(Key("a"))
	c.GetOrCompute(Key("c"), func() (any, error) { return 3, nil })

	if _, ok := c.Get(Key("b")); ok {
		t.Error("expected b evicted")
	}
	if _, ok := c.Get(Key("a")); !ok {
		t.Error("expected a retained")
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Unix(0, 0)
	c := New(WithTTL(time.Minute), WithClock(func() time.Time { return now }))

	c.GetOrCompute(Key("k"), func() (any, error) { return 1, nil })
	if _, ok := c.Get(Key("k")); !ok {
		t.Fatal("expected fresh entry present")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(Key("k")); ok {
		t.Error("expected entry expired")
	}
}

func TestStats(t *testing.T) {
	c := New()
	c.GetOrCompute(Key("k"), func() (any, error) { return 1, nil })
	c.GetOrCompute(Key("k"), func() (any, error) { return 1, nil })

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", hits, misses)
	}
}
