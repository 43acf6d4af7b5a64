package compiler

import "fmt"

// Kind identifies the grammatical role of a token.
type Kind int

const (
	EOF Kind = iota // sentinel returned past the last token; never produced by Tokenize

	// Keywords
	IF     // "if"
	THEN   // "then"
	END    // "end"
	ELSEIF // "elseif"
	ELSE   // "else"
	AND    // "and"
	OR     // "or"
	INPUT  // "input"
	OUTPUT // "output"

	// Symbols
	RELATION  // < > == <>
	ADD_SUB   // + -
	MUL_DIV   // * /
	ASSIGN    // =
	BRACKET   // ( )
	SEPARATOR // ;

	UNCLASSIFIED // identifiers and constants
)

var kindNames = [...]string{
	EOF:          "EOF",
	IF:           "IF",
	THEN:         "THEN",
	END:          "END",
	ELSEIF:       "ELSEIF",
	ELSE:         "ELSE",
	AND:          "AND",
	OR:           "OR",
	INPUT:        "INPUT",
	OUTPUT:       "OUTPUT",
	RELATION:     "RELATION",
	ADD_SUB:      "ADD_SUB",
	MUL_DIV:      "MUL_DIV",
	ASSIGN:       "ASSIGN",
	BRACKET:      "BRACKET",
	SEPARATOR:    "SEPARATOR",
	UNCLASSIFIED: "UNCLASSIFIED",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Class is the lexical category of a token.
type Class int

const (
	KEYWORD Class = iota
	SYMBOL
	IDENTIFIER
	CONSTANT
)

func (c Class) String() string {
	switch c {
	case KEYWORD:
		return "KEYWORD"
	case SYMBOL:
		return "SYMBOL"
	case IDENTIFIER:
		return "IDENTIFIER"
	case CONSTANT:
		return "CONSTANT"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Token is a single lexical unit produced by Tokenize.
type Token struct {
	Kind  Kind
	Class Class
	Text  string // the exact source text that was matched
	Row   int    // 1-based line of the first character
	Col   int    // 1-based column of the first character
}

func (t Token) String() string {
	return fmt.Sprintf("%d:%-4d %-12s %-10s %q", t.Row, t.Col, t.Kind, t.Class, t.Text)
}

// reserved maps every reserved spelling to its fixed kind and class.
var reserved = map[string]struct {
	kind  Kind
	class Class
}{
	"if":     {IF, KEYWORD},
	"then":   {THEN, KEYWORD},
	"end":    {END, KEYWORD},
	"elseif": {ELSEIF, KEYWORD},
	"else":   {ELSE, KEYWORD},
	"and":    {AND, KEYWORD},
	"or":     {OR, KEYWORD},
	"input":  {INPUT, KEYWORD},
	"output": {OUTPUT, KEYWORD},
	"<":      {RELATION, SYMBOL},
	">":      {RELATION, SYMBOL},
	"==":     {RELATION, SYMBOL},
	"<>":     {RELATION, SYMBOL},
	"+":      {ADD_SUB, SYMBOL},
	"-":      {ADD_SUB, SYMBOL},
	"*":      {MUL_DIV, SYMBOL},
	"/":      {MUL_DIV, SYMBOL},
	"=":      {ASSIGN, SYMBOL},
	"(":      {BRACKET, SYMBOL},
	")":      {BRACKET, SYMBOL},
	";":      {SEPARATOR, SYMBOL},
}

// classify turns a finished run into a token. Reserved spellings win;
// otherwise the run is an identifier or, if it started with a digit, a constant.
func classify(text string, row, col int) Token {
	if r, ok := reserved[text]; ok {
		return Token{Kind: r.kind, Class: r.class, Text: text, Row: row, Col: col}
	}
	class := IDENTIFIER
	if text != "" && isDigit(rune(text[0])) {
		class = CONSTANT
	}
	return Token{Kind: UNCLASSIFIED, Class: class, Text: text, Row: row, Col: col}
}
