package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gocond/pkg/ir"
)

// Listing syntax, one instruction per line:
//
//	L9:            label naming the next instruction index
//	   3  @L9      optional index column, then the instruction
//	   4  JZ       opcode mnemonic
//	   5  %x       variable
//	   6  42       constant
//	# comment
//
// Addresses are written @label or @N.

type Assembler struct {
	labels map[string]int
}

type parsedLine struct {
	lineNo int
	labels []string
	text   string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]int),
	}
}

// Assemble decodes a listing into a program.
func Assemble(code string) (ir.Program, error) {
	prog, _, err := NewAssembler().Assemble(code)
	return prog, err
}

// Assemble decodes code and returns the program along with a map from
// instruction index to source line.
func (a *Assembler) Assemble(code string) (ir.Program, map[int]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

func (a *Assembler) pass1(lines []string) error {
	index := 0

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = index
		}

		if p.text != "" {
			index++
		}
	}

	return nil
}

func (a *Assembler) pass2(lines []string) (ir.Program, map[int]int, error) {
	var prog ir.Program
	sourceMap := make(map[int]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}
		if p.text == "" {
			continue
		}

		in, err := a.decode(p.text, lineNo)
		if err != nil {
			return nil, nil, err
		}
		sourceMap[len(prog)] = lineNo
		prog = append(prog, in)
	}

	if err := prog.Validate(); err != nil {
		return nil, nil, fmt.Errorf("assemble: %w", err)
	}
	return prog, sourceMap, nil
}

func (a *Assembler) decode(text string, lineNo int) (ir.Instruction, error) {
	switch {
	case strings.HasPrefix(text, "%"):
		name := text[1:]
		if !isIdentifier(name) {
			return ir.Instruction{}, fmt.Errorf("invalid variable '%s' on line %d", text, lineNo)
		}
		return ir.Var(name), nil

	case strings.HasPrefix(text, "@"):
		target, err := a.parseTarget(text[1:], lineNo)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Addr(int64(target)), nil
	}

	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return ir.Const(v), nil
	} else if isNumeric(text) {
		return ir.Instruction{}, fmt.Errorf("constant out of range on line %d: %s", lineNo, text)
	}

	if op, ok := ir.LookupOpcode(strings.ToUpper(text)); ok {
		return ir.Op(op), nil
	}
	return ir.Instruction{}, fmt.Errorf("unknown instruction on line %d: %s", lineNo, text)
}

func (a *Assembler) parseTarget(token string, lineNo int) (int, error) {
	if token == "?" {
		return 0, fmt.Errorf("unresolved address on line %d", lineNo)
	}
	if value, err := strconv.Atoi(token); err == nil {
		return value, nil
	}

	if index, ok := a.labels[normalizeLabel(token)]; ok {
		return index, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}
	return 0, fmt.Errorf("invalid address '%s' on line %d", token, lineNo)
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if beforeColon == "" {
			return p, fmt.Errorf("invalid label on line %d", lineNo)
		}
		if strings.ContainsAny(beforeColon, " \t") {
			return p, fmt.Errorf("unexpected ':' on line %d", lineNo)
		}
		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(line)
	switch {
	case len(fields) == 1:
		p.text = fields[0]
	case len(fields) == 2 && isNumeric(fields[0]):
		// Leading index column as written by Disassemble.
		p.text = fields[1]
	default:
		return p, fmt.Errorf("expected one instruction on line %d: %s", lineNo, line)
	}

	return p, nil
}

func stripComments(line string) string {
	if cut := strings.IndexByte(line, '#'); cut >= 0 {
		return line[:cut]
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}

	return true
}

func isNumeric(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}

func labelFor(index int) string {
	return "L" + strconv.Itoa(index)
}

// Disassemble renders p as a listing that Assemble reads back unchanged.
// Every jump target gets an L<index> label.
func Disassemble(p ir.Program) string {
	targets := make(map[int]bool)
	for _, in := range p {
		if in.Kind == ir.KindAddress && in.Value >= 0 && in.Value <= int64(len(p)) {
			targets[int(in.Value)] = true
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %d instructions\n", len(p))
	for i, in := range p {
		if targets[i] {
			fmt.Fprintf(&sb, "%s:\n", labelFor(i))
		}
		fmt.Fprintf(&sb, "%4d  %s\n", i, formatInstruction(in, len(p)))
	}
	if targets[len(p)] {
		fmt.Fprintf(&sb, "%s:\n", labelFor(len(p)))
	}
	return sb.String()
}

func formatInstruction(in ir.Instruction, size int) string {
	if in.Kind == ir.KindAddress && in.Value >= 0 && in.Value <= int64(size) {
		return "@" + labelFor(int(in.Value))
	}
	return in.String()
}
