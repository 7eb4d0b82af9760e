package features

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Mark is an optional ply index. The zero Mark is absent, which keeps
// "never happened" distinct from every real ply.
type Mark struct {
	ply int
	set bool
}

// At returns a Mark set to ply.
func At(ply int) Mark {
	return Mark{ply: ply, set: true}
}

// Get returns the ply and whether the mark is set.
func (m Mark) Get() (int, bool) {
	return m.ply, m.set
}

// IsSet reports whether the mark holds a ply.
func (m Mark) IsSet() bool {
	return m.set
}

// Within reports whether the mark is set at or before limit.
func (m Mark) Within(limit int) bool {
	return m.set && m.ply <= limit
}

func (m Mark) String() string {
	if !m.set {
		return "never"
	}
	return strconv.Itoa(m.ply)
}

// MarshalJSON encodes an absent mark as null.
func (m Mark) MarshalJSON() ([]byte, error) {
	if !m.set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(m.ply)), nil
}

// UnmarshalJSON accepts null or a ply number.
func (m *Mark) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*m = Mark{}
		return nil
	}
	var ply int
	if err := json.Unmarshal(data, &ply); err != nil {
		return err
	}
	*m = At(ply)
	return nil
}
