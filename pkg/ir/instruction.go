// Package ir holds the linear stack-machine code shared by the compiler and
// the virtual machine.
package ir

import (
	"fmt"
	"strings"
)

// Opcode identifies a VM command.
type Opcode uint8

const (
	OpJMP Opcode = iota
	OpJZ
	OpMOV
	OpCMPEQ
	OpCMPNE
	OpCMPLT
	OpCMPGT
	OpAND
	OpOR
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpINPUT
	OpOUTPUT
)

var opcodeNames = [...]string{
	OpJMP:    "JMP",
	OpJZ:     "JZ",
	OpMOV:    "MOV",
	OpCMPEQ:  "CMPEQ",
	OpCMPNE:  "CMPNE",
	OpCMPLT:  "CMPLT",
	OpCMPGT:  "CMPGT",
	OpAND:    "AND",
	OpOR:     "OR",
	OpADD:    "ADD",
	OpSUB:    "SUB",
	OpMUL:    "MUL",
	OpDIV:    "DIV",
	OpINPUT:  "INPUT",
	OpOUTPUT: "OUTPUT",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("Opcode(%d)", int(o))
}

// LookupOpcode maps a mnemonic back to its Opcode.
func LookupOpcode(mnemonic string) (Opcode, bool) {
	for op, name := range opcodeNames {
		if name == mnemonic {
			return Opcode(op), true
		}
	}
	return 0, false
}

// Kind tags which payload of an Instruction is meaningful.
type Kind uint8

const (
	KindOp       Kind = iota // Op is set
	KindVariable             // Name is set
	KindConstant             // Value is set
	KindAddress              // Value is an absolute instruction index
)

func (k Kind) String() string {
	switch k {
	case KindOp:
		return "op"
	case KindVariable:
		return "variable"
	case KindConstant:
		return "constant"
	case KindAddress:
		return "address"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Unresolved is the placeholder value of an Address whose target is not yet known.
const Unresolved int64 = -1

// Instruction is one cell of a Program.
type Instruction struct {
	Kind  Kind
	Op    Opcode
	Name  string
	Value int64
}

// Convenience constructors.
func Op(op Opcode) Instruction      { return Instruction{Kind: KindOp, Op: op} }
func Var(name string) Instruction   { return Instruction{Kind: KindVariable, Name: name} }
func Const(v int64) Instruction     { return Instruction{Kind: KindConstant, Value: v} }
func Addr(target int64) Instruction { return Instruction{Kind: KindAddress, Value: target} }

func (in Instruction) String() string {
	switch in.Kind {
	case KindOp:
		return in.Op.String()
	case KindVariable:
		return "%" + in.Name
	case KindConstant:
		return fmt.Sprintf("%d", in.Value)
	case KindAddress:
		if in.Value == Unresolved {
			return "@?"
		}
		return fmt.Sprintf("@%d", in.Value)
	default:
		return "?"
	}
}

// IsOp reports whether in is the command op.
func (in Instruction) IsOp(op Opcode) bool {
	return in.Kind == KindOp && in.Op == op
}

// Program is a finalized instruction sequence. Indices are jump addresses.
type Program []Instruction

// String renders the program on one line in postfix order.
func (p Program) String() string {
	parts := make([]string, len(p))
	for i, in := range p {
		parts[i] = in.String()
	}
	return strings.Join(parts, " ")
}

// Validate checks that every Address lies in [0, len(p)].
func (p Program) Validate() error {
	for i, in := range p {
		if in.Kind != KindAddress {
			continue
		}
		if in.Value == Unresolved {
			return fmt.Errorf("instruction %d: %w", i, ErrUnresolvedAddress)
		}
		if in.Value < 0 || in.Value > int64(len(p)) {
			return fmt.Errorf("instruction %d: target %d: %w", i, in.Value, ErrAddressOutOfRange)
		}
	}
	return nil
}
