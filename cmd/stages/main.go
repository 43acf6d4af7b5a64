// Command stages prints every stage of compiling and running one program.
package main

import (
	"bytes"
	"fmt"
	"os"

	"gocond/pkg/asm"
	"gocond/pkg/compiler"
	"gocond/pkg/utils"
	"gocond/pkg/vm"
)

const testSource = `if x < 10 and 1 == 1 then
  x = 2 + 3 * 4;
  output x;
elseif x == 10 then
  output 0;
else
  output 1;
end
`

func main() {
	src := testSource
	if len(os.Args) > 1 {
		data, err := utils.ReadSource(os.Args[1], os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = data
	}

	fmt.Printf("Source:\n%s\n", src)

	tokens, err := compiler.Tokenize(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}

	fmt.Printf("Tokens (%d)\n", len(tokens))
	for _, tok := range tokens {
		fmt.Println(" ", tok)
	}
	fmt.Println()

	prog, err := compiler.Parse(tokens)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}

	fmt.Println("Listing")
	fmt.Print(asm.Disassemble(prog))
	fmt.Println()

	out := new(bytes.Buffer)
	syms, err := vm.Run(prog, vm.WithOutput(out), vm.WithInput(vm.NewLineReader(os.Stdin)))
	fmt.Println("Output")
	fmt.Print(out.String())
	fmt.Println()
	if err != nil {
		fmt.Fprintln(os.Stderr, "runtime error:", err)
	}
	fmt.Print(syms)
}
