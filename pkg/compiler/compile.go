package compiler

import "gocond/pkg/ir"

// Compile runs the whole front end: Tokenize then Parse. Errors are
// *LexicalError or *SyntaxError.
func Compile(src string) (ir.Program, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}
