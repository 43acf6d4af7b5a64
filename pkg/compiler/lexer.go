package compiler

import "strings"

type lexState int

const (
	stateStart lexState = iota
	stateIdentifier
	stateConstant
	stateSawEquals
	stateSawLess
	stateError
)

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src   []rune
	state lexState

	// run is the text of the identifier or constant being read. It is reset
	// every time the machine re-enters stateStart.
	run    strings.Builder
	runRow int
	runCol int

	row int // 1-based line of the rune being processed
	col int // 1-based column of the rune being processed

	tokens []Token
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), row: 1, col: 1}
}

// Tokenize converts src into its token sequence. On failure no tokens are
// returned.
func Tokenize(src string) ([]Token, error) {
	return newLexer(src).tokenize()
}

func (l *Lexer) tokenize() ([]Token, error) {
	for _, ch := range l.src {
		if err := l.step(ch); err != nil {
			return nil, err
		}
		if ch == '\n' {
			l.row++
			l.col = 1
		} else {
			l.col++
		}
	}
	l.flush()
	return l.tokens, nil
}

func (l *Lexer) step(ch rune) error {
	switch l.state {
	case stateStart:
		return l.start(ch)

	case stateIdentifier:
		switch {
		case isLetter(ch) || isDigit(ch):
			l.run.WriteRune(ch)
			return nil
		case closesRun(ch):
			l.emitRun()
			return l.start(ch)
		}
		return l.fail("incorrect identifier symbol " + quoteRune(ch))

	case stateConstant:
		switch {
		case isDigit(ch):
			l.run.WriteRune(ch)
			return nil
		case isLetter(ch):
			return l.fail("malformed constant " + quoteRune(ch) + " after digits")
		case closesRun(ch):
			l.emitRun()
			return l.start(ch)
		}
		return l.fail("incorrect constant symbol " + quoteRune(ch))

	case stateSawEquals:
		if ch == '=' {
			l.emit("==", l.runRow, l.runCol)
			l.enterStart()
			return nil
		}
		l.emit("=", l.runRow, l.runCol)
		return l.start(ch)

	case stateSawLess:
		if ch == '>' {
			l.emit("<>", l.runRow, l.runCol)
			l.enterStart()
			return nil
		}
		l.emit("<", l.runRow, l.runCol)
		return l.start(ch)
	}

	return l.fail("lexer used after an error")
}

// start dispatches ch from the initial state.
func (l *Lexer) start(ch rune) error {
	l.enterStart()

	switch {
	case isDigit(ch):
		l.beginRun(stateConstant, ch)
	case isLetter(ch):
		l.beginRun(stateIdentifier, ch)
	case isSingleSymbol(ch):
		l.emit(string(ch), l.row, l.col)
	case ch == '=':
		l.state = stateSawEquals
		l.runRow, l.runCol = l.row, l.col
	case ch == '<':
		l.state = stateSawLess
		l.runRow, l.runCol = l.row, l.col
	case isSpace(ch):
	default:
		return l.fail("undefined symbol " + quoteRune(ch))
	}
	return nil
}

func (l *Lexer) enterStart() {
	l.state = stateStart
	l.run.Reset()
}

func (l *Lexer) beginRun(state lexState, ch rune) {
	l.state = state
	l.runRow, l.runCol = l.row, l.col
	l.run.WriteRune(ch)
}

func (l *Lexer) emitRun() {
	l.emit(l.run.String(), l.runRow, l.runCol)
}

func (l *Lexer) emit(text string, row, col int) {
	l.tokens = append(l.tokens, classify(text, row, col))
}

// flush emits whatever the machine is holding when input runs out.
func (l *Lexer) flush() {
	switch l.state {
	case stateIdentifier, stateConstant:
		l.emitRun()
	case stateSawEquals:
		l.emit("=", l.runRow, l.runCol)
	case stateSawLess:
		l.emit("<", l.runRow, l.runCol)
	}
	l.enterStart()
}

func (l *Lexer) fail(reason string) error {
	l.state = stateError
	err := &LexicalError{Row: l.row, Col: l.col, Reason: reason}
	if n := len(l.tokens); n > 0 {
		err.After = l.tokens[n-1].Text
	}
	return err
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isSpace(ch rune) bool {
	switch ch {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// isSingleSymbol reports whether ch is an operator that is never a prefix of
// a longer one.
func isSingleSymbol(ch rune) bool {
	return strings.ContainsRune(">+-*/();", ch)
}

func closesRun(ch rune) bool {
	return isSpace(ch) || isSingleSymbol(ch) || ch == '=' || ch == '<'
}

func quoteRune(ch rune) string {
	return "'" + string(ch) + "'"
}
