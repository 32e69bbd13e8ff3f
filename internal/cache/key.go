package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrUnkeyable indicates call arguments that cannot be canonicalized into a
// cache key. Callers fall back to an uncached invocation.
var ErrUnkeyable = errors.New("cache: arguments cannot be canonicalized")

// Fingerprinter is the contract a state object must satisfy for a
// state-dependent routine to participate in caching. The fingerprint must be
// stable under value equality.
type Fingerprinter interface {
	Fingerprint() string
}

// Key identifies one distinct routine evaluation.
type Key string

// NewKey builds a deterministic key from the routine name, an optional state
// fingerprint and the full argument tuple. Each field is length-prefixed
// before hashing so adjacent fields cannot alias, and each argument section
// is preceded by its tag and element count so a value cannot slide from one
// section into the next.
func NewKey(routine string, fingerprint string, ext []any, args []any, kwargs map[string]any) (Key, error) {
	h := sha256.New()

	writeField := func(data []byte) {
		length := uint64(len(data))
		var prefix [8]byte
		for i := 0; i < 8; i++ {
			prefix[i] = byte(length >> (56 - 8*i))
		}
		h.Write(prefix[:])
		h.Write(data)
	}
	section := func(tag string, n int) {
		writeField([]byte(fmt.Sprintf("%s/%d", tag, n)))
	}

	writeField([]byte(routine))
	writeField([]byte(fingerprint))

	section("ext", len(ext))
	for _, a := range ext {
		enc, err := canonicalize(a)
		if err != nil {
			return "", err
		}
		writeField(enc)
	}
	section("args", len(args))
	for _, a := range args {
		enc, err := canonicalize(a)
		if err != nil {
			return "", err
		}
		writeField(enc)
	}

	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	section("kwargs", len(keys))
	for _, k := range keys {
		enc, err := canonicalize(kwargs[k])
		if err != nil {
			return "", err
		}
		writeField([]byte(k))
		writeField(enc)
	}

	return Key(hex.EncodeToString(h.Sum(nil))), nil
}

// canonicalize encodes a value deterministically. encoding/json sorts map
// keys, which makes it sufficient for the plain scalars, sequences and string
// maps a schedule can carry.
func canonicalize(v any) ([]byte, error) {
	if f, ok := v.(Fingerprinter); ok {
		return []byte(f.Fingerprint()), nil
	}
	enc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnkeyable, err)
	}
	return enc, nil
}
