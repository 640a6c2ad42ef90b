// Package metadata holds the flat scalar map attached to every indexed document.
package metadata

import (
	"encoding/json"
	"sort"
)

// Metadata is a flat map of string and numeric scalars. It never carries nulls:
// absent values are written as "" or 0 by the producer.
type Metadata struct {
	strings  map[string]string
	numerics map[string]float64
}

// New returns an empty Metadata ready for writes.
func New() Metadata {
	return Metadata{strings: map[string]string{}, numerics: map[string]float64{}}
}

// Reconstruct builds Metadata from storage maps. Nil maps are replaced by empty ones.
func Reconstruct(strs map[string]string, nums map[string]float64) Metadata {
	m := New()
	for k, v := range strs {
		m.strings[k] = v
	}
	for k, v := range nums {
		m.numerics[k] = v
	}
	return m
}

// SetString stores a string value, replacing any numeric value under the same key.
func (m Metadata) SetString(key, value string) {
	delete(m.numerics, key)
	m.strings[key] = value
}

// SetNumber stores a numeric value, replacing any string value under the same key.
func (m Metadata) SetNumber(key string, value float64) {
	delete(m.strings, key)
	m.numerics[key] = value
}

// String returns the string value for key, or "".
func (m Metadata) String(key string) string { return m.strings[key] }

// Number returns the numeric value for key, or 0.
func (m Metadata) Number(key string) float64 { return m.numerics[key] }

// Strings returns the string fields. Callers must not mutate the map.
func (m Metadata) Strings() map[string]string { return m.strings }

// Numerics returns the numeric fields. Callers must not mutate the map.
func (m Metadata) Numerics() map[string]float64 { return m.numerics }

// Len returns the number of keys.
func (m Metadata) Len() int { return len(m.strings) + len(m.numerics) }

// Keys returns all keys sorted.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, m.Len())
	for k := range m.strings {
		keys = append(keys, k)
	}
	for k := range m.numerics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	return Reconstruct(m.strings, m.numerics)
}

// MarshalJSON renders the metadata as one flat JSON object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, m.Len())
	for k, v := range m.strings {
		flat[k] = v
	}
	for k, v := range m.numerics {
		flat[k] = v
	}
	return json.Marshal(flat) //nolint:wrapcheck // plain encoding of scalars
}

// UnmarshalJSON accepts a flat JSON object; null values are dropped.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err //nolint:wrapcheck // json error is descriptive
	}
	*m = New()
	for k, v := range flat {
		switch tv := v.(type) {
		case string:
			m.strings[k] = tv
		case float64:
			m.numerics[k] = tv
		case bool:
			if tv {
				m.numerics[k] = 1
			} else {
				m.numerics[k] = 0
			}
		}
	}
	return nil
}
