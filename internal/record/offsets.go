package record

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Offsets is the list of reminder lead times in days.
// It is stored as a JSON array.
type Offsets []int

// Clone returns an independent copy; nil stays nil.
func (o Offsets) Clone() Offsets {
	if o == nil {
		return nil
	}
	out := make(Offsets, len(o))
	copy(out, o)
	return out
}

// Equal compares element-wise. A nil list equals an empty one.
func (o Offsets) Equal(other Offsets) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// Value encodes the offsets as a JSON array.
func (o Offsets) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan decodes a JSON array.
func (o *Offsets) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan offsets: unsupported type %T", src)
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan offsets: %w", err)
	}
	if len(out) == 0 {
		*o = nil
		return nil
	}
	*o = out
	return nil
}
