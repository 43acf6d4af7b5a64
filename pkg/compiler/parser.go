package compiler

import (
	"fmt"
	"strconv"

	"gocond/pkg/ir"
)

// Parser consumes the flat token slice produced by Tokenize and emits code
// into an ir.Builder as each production is recognized. No tree is built.
//
// Grammar:
//
//	program     = conditional EOF
//	conditional = ("if" | "elseif") logical "then" statement* alternative ["end"]
//	alternative = conditional | "else" statement* | ε
//	statement   = (IDENT "=" arith | "input" IDENT | "output" operand) ";"
//	logical     = relational (("and" | "or") relational)*
//	relational  = operand [RELOP operand]
//	arith       = term (("+" | "-") term)*
//	term        = factor (("*" | "/") factor)*
//	factor      = operand | "(" arith ")"
//	operand     = IDENT | CONSTANT
//
// Only the outermost conditional consumes "end". Operators are emitted after
// both of their operands, so the output runs directly on a stack machine.
type Parser struct {
	tokens []Token
	pos    int
	mark   int // index of the first token of the construct being parsed
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse recognizes tokens as one program and returns its code.
func Parse(tokens []Token) (ir.Program, error) {
	return NewParser(tokens).Parse()
}

func (p *Parser) Parse() (ir.Program, error) {
	b := ir.NewBuilder()
	if err := p.parseProgram(b); err != nil {
		return nil, err
	}
	prog, err := b.Finalize()
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	return prog, nil
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return p.eof()
	}
	return p.tokens[p.pos]
}

// eof positions the end-of-input sentinel just past the last token.
func (p *Parser) eof() Token {
	if len(p.tokens) == 0 {
		return Token{Kind: EOF, Row: 1, Col: 1}
	}
	last := p.tokens[len(p.tokens)-1]
	return Token{Kind: EOF, Row: last.Row, Col: last.Col + len(last.Text)}
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it has kind k (and, when text is
// non-empty, that exact spelling).
func (p *Parser) expect(k Kind, text string, reason string) (Token, error) {
	tok := p.peek()
	if tok.Kind != k || (text != "" && tok.Text != text) {
		return tok, p.errorf("%s", reason)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...any) error {
	start := p.mark
	if start > p.pos {
		start = p.pos
	}
	ctx := make([]Token, p.pos-start)
	copy(ctx, p.tokens[start:p.pos])
	return &SyntaxError{Token: p.peek(), Context: ctx, Reason: fmt.Sprintf(format, args...)}
}

func (p *Parser) parseProgram(b *ir.Builder) error {
	if p.peek().Kind != IF {
		return p.errorf("expected 'if' at start of program")
	}

	endJumps, err := p.parseConditional(b, nil)
	if err != nil {
		return err
	}
	if _, err := p.expect(END, "", "expected 'end' to close 'if'"); err != nil {
		return err
	}
	// Every taken branch jumps here, past the whole construct.
	for _, slot := range endJumps {
		if err := b.Backpatch(slot, b.Len()); err != nil {
			return err
		}
	}

	if p.peek().Kind != EOF {
		p.mark = p.pos
		return p.errorf("unexpected token after 'end'")
	}
	return nil
}

// parseConditional handles one "if"/"elseif" branch and whatever follows it.
// endJumps collects the JMP address slots that must later point past the
// whole construct; the extended list is returned.
func (p *Parser) parseConditional(b *ir.Builder, endJumps []int) ([]int, error) {
	p.mark = p.pos
	head := p.advance()

	if err := p.parseLogical(b); err != nil {
		return nil, err
	}
	if _, err := p.expect(THEN, "", fmt.Sprintf("expected 'then' after condition of '%s'", head.Text)); err != nil {
		return nil, err
	}

	nextBranch := b.ReserveAddress()
	b.Emit(ir.Op(ir.OpJZ))

	if err := p.parseStatements(b); err != nil {
		return nil, err
	}

	endJumps = append(endJumps, b.ReserveAddress())
	b.Emit(ir.Op(ir.OpJMP))

	if err := b.Backpatch(nextBranch, b.Len()); err != nil {
		return nil, err
	}

	return p.parseAlternative(b, endJumps)
}

func (p *Parser) parseAlternative(b *ir.Builder, endJumps []int) ([]int, error) {
	switch p.peek().Kind {
	case ELSEIF:
		return p.parseConditional(b, endJumps)
	case ELSE:
		p.mark = p.pos
		p.advance()
		if err := p.parseStatements(b); err != nil {
			return nil, err
		}
	}
	return endJumps, nil
}

// parseStatements parses statements until a token that ends a body.
func (p *Parser) parseStatements(b *ir.Builder) error {
	for {
		tok := p.peek()
		switch {
		case tok.Kind == END || tok.Kind == ELSE || tok.Kind == ELSEIF:
			return nil
		case tok.Class == IDENTIFIER && tok.Kind == UNCLASSIFIED,
			tok.Kind == INPUT, tok.Kind == OUTPUT:
			if err := p.parseStatement(b); err != nil {
				return err
			}
		case tok.Kind == EOF:
			return p.errorf("expected 'end' to close 'if'")
		default:
			p.mark = p.pos
			return p.errorf("expected statement")
		}
	}
}

func (p *Parser) parseStatement(b *ir.Builder) error {
	p.mark = p.pos
	tok := p.advance()

	switch tok.Kind {
	case INPUT:
		id := p.peek()
		if id.Class != IDENTIFIER || id.Kind != UNCLASSIFIED {
			return p.errorf("expected identifier after 'input'")
		}
		p.advance()
		b.Emit(ir.Var(id.Text))
		b.Emit(ir.Op(ir.OpINPUT))

	case OUTPUT:
		if err := p.parseOperand(b, "expected identifier or constant after 'output'"); err != nil {
			return err
		}
		b.Emit(ir.Op(ir.OpOUTPUT))

	default:
		b.Emit(ir.Var(tok.Text))
		if _, err := p.expect(ASSIGN, "", fmt.Sprintf("expected '=' after identifier %q", tok.Text)); err != nil {
			return err
		}
		if err := p.parseArith(b); err != nil {
			return err
		}
		b.Emit(ir.Op(ir.OpMOV))
	}

	_, err := p.expect(SEPARATOR, "", "expected ';' after statement")
	return err
}

// parseLogical chains relations with "and"/"or" left to right at a single
// precedence level. Both sides are always evaluated.
func (p *Parser) parseLogical(b *ir.Builder) error {
	if err := p.parseRelational(b); err != nil {
		return err
	}
	for {
		var op ir.Opcode
		switch p.peek().Kind {
		case AND:
			op = ir.OpAND
		case OR:
			op = ir.OpOR
		default:
			return nil
		}
		p.advance()
		if err := p.parseRelational(b); err != nil {
			return err
		}
		b.Emit(ir.Op(op))
	}
}

var relationOps = map[string]ir.Opcode{
	"==": ir.OpCMPEQ,
	"<>": ir.OpCMPNE,
	"<":  ir.OpCMPLT,
	">":  ir.OpCMPGT,
}

func (p *Parser) parseRelational(b *ir.Builder) error {
	if err := p.parseOperand(b, "expected operand in condition"); err != nil {
		return err
	}
	if p.peek().Kind != RELATION {
		return nil
	}
	rel := p.advance()
	if err := p.parseOperand(b, fmt.Sprintf("expected operand after '%s'", rel.Text)); err != nil {
		return err
	}
	b.Emit(ir.Op(relationOps[rel.Text]))
	return nil
}

func (p *Parser) parseArith(b *ir.Builder) error {
	if err := p.parseTerm(b); err != nil {
		return err
	}
	for p.peek().Kind == ADD_SUB {
		op := ir.OpADD
		if p.advance().Text == "-" {
			op = ir.OpSUB
		}
		if err := p.parseTerm(b); err != nil {
			return err
		}
		b.Emit(ir.Op(op))
	}
	return nil
}

func (p *Parser) parseTerm(b *ir.Builder) error {
	if err := p.parseFactor(b); err != nil {
		return err
	}
	for p.peek().Kind == MUL_DIV {
		op := ir.OpMUL
		if p.advance().Text == "/" {
			op = ir.OpDIV
		}
		if err := p.parseFactor(b); err != nil {
			return err
		}
		b.Emit(ir.Op(op))
	}
	return nil
}

func (p *Parser) parseFactor(b *ir.Builder) error {
	tok := p.peek()
	if tok.Kind != BRACKET || tok.Text != "(" {
		return p.parseOperand(b, "expected operand or '(' in arithmetic expression")
	}
	p.advance()
	if err := p.parseArith(b); err != nil {
		return err
	}
	_, err := p.expect(BRACKET, ")", "expected ')' after arithmetic expression")
	return err
}

// parseOperand emits a Variable or Constant for the current token.
func (p *Parser) parseOperand(b *ir.Builder, reason string) error {
	tok := p.peek()
	if tok.Kind != UNCLASSIFIED {
		return p.errorf("%s", reason)
	}

	switch tok.Class {
	case IDENTIFIER:
		b.Emit(ir.Var(tok.Text))
	case CONSTANT:
		v, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return p.errorf("constant %s out of range", tok.Text)
		}
		b.Emit(ir.Const(v))
	default:
		return p.errorf("%s", reason)
	}
	p.advance()
	return nil
}
