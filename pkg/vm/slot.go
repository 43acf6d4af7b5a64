package vm

import "strconv"

// Slot is one operand stack entry: either a resolved integer or a deferred
// reference to a variable. Name is non-empty exactly for references.
type Slot struct {
	Name  string `json:"name,omitempty"`
	Value int64  `json:"value"`
}

func IntSlot(v int64) Slot      { return Slot{Value: v} }
func NameSlot(name string) Slot { return Slot{Name: name} }

func (s Slot) IsName() bool {
	return s.Name != ""
}

func (s Slot) String() string {
	if s.IsName() {
		return "%" + s.Name
	}
	return strconv.FormatInt(s.Value, 10)
}
