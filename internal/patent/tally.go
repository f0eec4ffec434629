package patent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tally maps country codes to occurrence counts. Keys keep the order in which
// they were first seen so serialized output is stable across runs over the
// same data. The zero value is an empty tally ready to use.
type Tally struct {
	order  []string
	counts map[string]int
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// AddAll counts every code in codes.
func (t *Tally) AddAll(codes []string) {
	for _, code := range codes {
		t.add(code, 1)
	}
}

// Merge folds other into t.
func (t *Tally) Merge(other *Tally) {
	if other == nil {
		return
	}
	for _, code := range other.order {
		t.add(code, other.counts[code])
	}
}

func (t *Tally) add(code string, n int) {
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	if _, ok := t.counts[code]; !ok {
		t.order = append(t.order, code)
	}
	t.counts[code] += n
}

// Count returns the number of occurrences of code.
func (t *Tally) Count(code string) int {
	return t.counts[code]
}

// Codes returns the distinct codes in first-seen order.
func (t *Tally) Codes() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of distinct codes.
func (t *Tally) Len() int {
	return len(t.order)
}

// Total returns the sum of all counts.
func (t *Tally) Total() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// Map returns a copy of the counts.
func (t *Tally) Map() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// MarshalJSON writes a flat object with keys in first-seen order.
func (t *Tally) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, code := range t.order {
		if i > 0 {
			buf.WriteString(", ")
		}
		key, err := json.Marshal(code)
		if err != nil {
			return nil, fmt.Errorf("marshal tally key: %w", err)
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ": %d", t.counts[code])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat object, preserving key order.
func (t *Tally) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read tally: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("tally must be a JSON object")
	}
	fresh := NewTally()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read tally key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected tally key %v", keyTok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("read count for %q: %w", key, err)
		}
		if n < 0 {
			return fmt.Errorf("negative count for %q", key)
		}
		if _, seen := fresh.counts[key]; !seen {
			fresh.order = append(fresh.order, key)
		}
		fresh.counts[key] += n
	}
	*t = *fresh
	return nil
}
