package availability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MetaKey is the reserved key holding run metadata.
const MetaKey = "_meta"

// Meta is the run metadata attached after scanning.
type Meta struct {
	GeneratedAt time.Time
}

// MarshalJSON renders generated_at as ISO-8601 with the clock's offset.
func (m Meta) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"generated_at": m.GeneratedAt.Format(time.RFC3339)})
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw struct {
		GeneratedAt string `json:"generated_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, raw.GeneratedAt)
	if err != nil {
		return fmt.Errorf("availability: generated_at: %w", err)
	}
	m.GeneratedAt = t
	return nil
}

// Aggregate accumulates one run's results. It has a single owner: the
// scanner records into it and hands it to the publisher once finalized.
type Aggregate struct {
	order   []string
	results map[string]ScanResult
	meta    *Meta
}

// NewAggregate returns an empty accumulator.
func NewAggregate() *Aggregate {
	return &Aggregate{results: map[string]ScanResult{}}
}

// Record stores a provider's result. Re-recording a name replaces the result
// but keeps its original position.
func (a *Aggregate) Record(name string, result ScanResult) {
	if name == MetaKey {
		return
	}
	if _, exists := a.results[name]; !exists {
		a.order = append(a.order, name)
	}
	a.results[name] = result
}

// Get returns the result recorded under name.
func (a *Aggregate) Get(name string) (ScanResult, bool) {
	r, ok := a.results[name]
	return r, ok
}

// Names returns recorded names in insertion order.
func (a *Aggregate) Names() []string {
	return append([]string(nil), a.order...)
}

// Len is the number of recorded providers.
func (a *Aggregate) Len() int {
	return len(a.order)
}

// SlotCount totals slots across providers.
func (a *Aggregate) SlotCount() int {
	n := 0
	for _, r := range a.results {
		n += len(r.Slots)
	}
	return n
}

// Finalize attaches the metadata record.
func (a *Aggregate) Finalize(generatedAt time.Time) {
	a.meta = &Meta{GeneratedAt: generatedAt}
}

// Meta returns the metadata, if finalized.
func (a *Aggregate) Meta() (Meta, bool) {
	if a.meta == nil {
		return Meta{}, false
	}
	return *a.meta, true
}

// MarshalJSON emits providers in insertion order followed by _meta.
func (a *Aggregate) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range a.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, name, a.results[name]); err != nil {
			return nil, err
		}
	}
	if a.meta != nil {
		if len(a.order) > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, MetaKey, a.meta); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a published document back, preserving key order.
func (a *Aggregate) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("availability: read aggregate: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("availability: aggregate is not an object")
	}

	*a = Aggregate{results: map[string]ScanResult{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("availability: read key: %w", err)
		}
		name, _ := tok.(string)
		if name == MetaKey {
			var m Meta
			if err := dec.Decode(&m); err != nil {
				return fmt.Errorf("availability: decode meta: %w", err)
			}
			a.meta = &m
			continue
		}
		var r ScanResult
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("availability: decode %q: %w", name, err)
		}
		a.Record(name, r)
	}
	return nil
}

// Encode renders the artifact text: two-space indented JSON.
func (a *Aggregate) Encode() ([]byte, error) {
	compact, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("availability: indent: %w", err)
	}
	return out.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := marshalNoEscape(value)
	if err != nil {
		return fmt.Errorf("availability: encode %q: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
