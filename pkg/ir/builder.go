package ir

import (
	"errors"
	"fmt"
)

var (
	ErrUnresolvedAddress = errors.New("unresolved jump address")
	ErrAddressOutOfRange = errors.New("jump address out of range")
	ErrNotAnAddress      = errors.New("instruction is not an address")
)

// Builder is an append-only instruction buffer. Cells are never removed or
// reordered; only Address placeholders may be overwritten by Backpatch.
type Builder struct {
	code []Instruction
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Emit appends in and returns the index it was stored at.
func (b *Builder) Emit(in Instruction) int {
	b.code = append(b.code, in)
	return len(b.code) - 1
}

// ReserveAddress appends an unresolved Address and returns its index.
func (b *Builder) ReserveAddress() int {
	return b.Emit(Addr(Unresolved))
}

// Backpatch overwrites the Address at index with target.
func (b *Builder) Backpatch(index int, target int) error {
	if index < 0 || index >= len(b.code) {
		return fmt.Errorf("backpatch %d: %w", index, ErrAddressOutOfRange)
	}
	if b.code[index].Kind != KindAddress {
		return fmt.Errorf("backpatch %d (%s): %w", index, b.code[index], ErrNotAnAddress)
	}
	b.code[index] = Addr(int64(target))
	return nil
}

// Len is the index the next emitted instruction will get.
func (b *Builder) Len() int {
	return len(b.code)
}

// Finalize hands the buffer over as a Program and leaves the builder empty.
// It fails if any address is still unresolved or points outside the program.
func (b *Builder) Finalize() (Program, error) {
	prog := Program(b.code)
	b.code = nil
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}
