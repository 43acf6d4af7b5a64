package vm

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolTable maps variable names to values for one run. Reading an
// unknown name defines it as 0.
type SymbolTable struct {
	values map[string]int64
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{values: make(map[string]int64)}
}

// Get returns the value of name, defining it as 0 on first reference.
func (s *SymbolTable) Get(name string) int64 {
	v, ok := s.values[name]
	if !ok {
		s.values[name] = 0
	}
	return v
}

func (s *SymbolTable) Set(name string, v int64) {
	s.values[name] = v
}

// Lookup reports the value of name without defining it.
func (s *SymbolTable) Lookup(name string) (int64, bool) {
	v, ok := s.values[name]
	return v, ok
}

func (s *SymbolTable) Len() int {
	return len(s.values)
}

// Names returns the defined names in sorted order.
func (s *SymbolTable) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the table contents.
func (s *SymbolTable) Map() map[string]int64 {
	out := make(map[string]int64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Pairs returns "name=value" entries in name order.
func (s *SymbolTable) Pairs() []string {
	names := s.Names()
	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = fmt.Sprintf("%s=%d", name, s.values[name])
	}
	return pairs
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	if len(s.values) == 0 {
		return "Symbols: (empty)\n"
	}
	var sb strings.Builder
	sb.WriteString("Symbols:\n")
	for _, name := range s.Names() {
		fmt.Fprintf(&sb, "  %-20s  %d\n", name, s.values[name])
	}
	return sb.String()
}
