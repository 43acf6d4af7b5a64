package compiler

import (
	"fmt"
	"strings"
)

// LexicalError reports an unrecognized character or a malformed token.
type LexicalError struct {
	Row    int
	Col    int
	Reason string
	After  string // text of the last complete token, empty at the start of input
}

func (e *LexicalError) Error() string {
	if e.After == "" {
		return fmt.Sprintf("%d:%d: lexical error: %s", e.Row, e.Col, e.Reason)
	}
	return fmt.Sprintf("%d:%d: lexical error: %s after %q", e.Row, e.Col, e.Reason, e.After)
}

// SyntaxError reports a grammar violation at Token. Context holds the tokens
// of the current construct that were consumed before it.
type SyntaxError struct {
	Token   Token
	Context []Token
	Reason  string
}

func (e *SyntaxError) Error() string {
	got := "end of input"
	if e.Token.Kind != EOF {
		got = fmt.Sprintf("%q", e.Token.Text)
	}
	msg := fmt.Sprintf("%d:%d: syntax error: %s, got %s", e.Token.Row, e.Token.Col, e.Reason, got)
	if ctx := e.ContextText(); ctx != "" {
		msg += "\n  |> " + ctx
	}
	return msg
}

// ContextText joins the consumed tokens with single spaces.
func (e *SyntaxError) ContextText() string {
	parts := make([]string, len(e.Context))
	for i, tok := range e.Context {
		parts[i] = tok.Text
	}
	return strings.Join(parts, " ")
}
