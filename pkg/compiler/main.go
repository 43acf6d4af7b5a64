// Package compiler tokenizes and parses the conditional language and emits
// stack-machine code for pkg/vm while it parses.
//
// Pipeline: source → Tokenize → Parse (drives an ir.Builder) → ir.Program
package compiler
