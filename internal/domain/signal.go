package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sample is one reading inside a signal: an intra-record time offset paired
// with a 3-component vector. Wire form is the tuple [offset, [v1, v2, v3]].
type Sample struct {
	Offset float64
	Vector [3]float64
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{s.Offset, s.Vector})
}

func (s *Sample) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("sample must be a [offset, [v1, v2, v3]] pair: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("sample must be a pair, got %d elements", len(raw))
	}
	// Decode through pointers: encoding/json silently maps a JSON null onto
	// a zero float64, and a null reading is not a number.
	var offset *float64
	if err := json.Unmarshal(raw[0], &offset); err != nil || offset == nil {
		return fmt.Errorf("sample offset must be a number: %s", raw[0])
	}
	var vec []*float64
	if err := json.Unmarshal(raw[1], &vec); err != nil {
		return fmt.Errorf("sample vector must be an array of numbers: %w", err)
	}
	if len(vec) != 3 {
		return fmt.Errorf("sample vector must have exactly 3 components, got %d", len(vec))
	}
	s.Offset = *offset
	for i, v := range vec {
		if v == nil {
			return fmt.Errorf("sample vector component %d must be a number, got null", i)
		}
		s.Vector[i] = *v
	}
	return nil
}

// SignalRecord is a persisted x-ray signal. Records are immutable once
// created; the only mutation is whole-record deletion.
type SignalRecord struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"deviceId"`
	Time       int64     `json:"time"` // epoch milliseconds, caller-supplied
	DataLength int       `json:"dataLength"`
	DataVolume int       `json:"dataVolume"` // byte size of the serialized samples
	RawData    []Sample  `json:"rawData"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EncodeSamples produces the canonical serialization of a sample sequence.
// DataVolume is defined as the byte length of this encoding at write time.
func EncodeSamples(samples []Sample) ([]byte, error) {
	return json.Marshal(samples)
}
