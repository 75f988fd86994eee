package node

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// MeasurementTuple is one statistic for one date. Value is fixed once
// recorded, Average and StdDev are rewritten by recalculation.
type MeasurementTuple struct {
	Type    string
	Value   float64
	Average float64
	StdDev  float64
}

// isBlank returns true for values that carry no data.
func isBlank(f float64) bool {
	return f == 0 || math.IsNaN(f)
}

// IsEmpty returns true if the value, average and standard deviation are all
// zero or NaN.
func (m *MeasurementTuple) IsEmpty() bool {
	return m == nil || (isBlank(m.Value) && isBlank(m.Average) && isBlank(m.StdDev))
}

// Equal compares two tuples, treating NaN as equal to NaN.
func (m *MeasurementTuple) Equal(o *MeasurementTuple) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Type == o.Type && floatEqual(m.Value, o.Value) && floatEqual(m.Average, o.Average) && floatEqual(m.StdDev, o.StdDev)
}

func floatEqual(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// jsonFloat is a float64 that encodes NaN and Inf as null, which
// encoding/json otherwise refuses. null decodes back to NaN.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = jsonFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type tupleJSON struct {
	Type    string    `json:"type"`
	Value   jsonFloat `json:"value"`
	Average jsonFloat `json:"average"`
	StdDev  jsonFloat `json:"std"`
}

func (m MeasurementTuple) MarshalJSON() ([]byte, error) {
	return json.Marshal(tupleJSON{
		Type:    m.Type,
		Value:   jsonFloat(m.Value),
		Average: jsonFloat(m.Average),
		StdDev:  jsonFloat(m.StdDev),
	})
}

func (m *MeasurementTuple) UnmarshalJSON(b []byte) error {
	var w tupleJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = MeasurementTuple{
		Type:    w.Type,
		Value:   float64(w.Value),
		Average: float64(w.Average),
		StdDev:  float64(w.StdDev),
	}
	return nil
}

// NodeRecord is the data captured for one LevelNode at one date.
type NodeRecord struct {
	Units    string
	Tuples   map[string]*MeasurementTuple
	Metadata map[string]string
}

// NewNodeRecord returns an empty NodeRecord with the given units.
func NewNodeRecord(units string) *NodeRecord {
	return &NodeRecord{
		Units:    units,
		Tuples:   map[string]*MeasurementTuple{},
		Metadata: map[string]string{},
	}
}

// Tuple returns the tuple of the given type, or nil.
func (r *NodeRecord) Tuple(typ string) *MeasurementTuple {
	if r == nil {
		return nil
	}
	return r.Tuples[typ]
}

// SetValue records a value for the given type, replacing any tuple of that
// type. Derived statistics start at zero.
func (r *NodeRecord) SetValue(typ string, value float64) *MeasurementTuple {
	t := &MeasurementTuple{Type: typ, Value: value}
	r.Tuples[typ] = t
	return t
}

// TupleTypes returns the types present, sorted.
func (r *NodeRecord) TupleTypes() []string {
	ret := make([]string, 0, len(r.Tuples))
	for k := range r.Tuples {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// IsEmpty returns true if every tuple is empty.
func (r *NodeRecord) IsEmpty() bool {
	for _, t := range r.Tuples {
		if !t.IsEmpty() {
			return false
		}
	}
	return true
}

// Equal compares two records.
func (r *NodeRecord) Equal(o *NodeRecord) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Units != o.Units || len(r.Tuples) != len(o.Tuples) || len(r.Metadata) != len(o.Metadata) {
		return false
	}
	for k, t := range r.Tuples {
		if !t.Equal(o.Tuples[k]) {
			return false
		}
	}
	for k, v := range r.Metadata {
		if ov, ok := o.Metadata[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
