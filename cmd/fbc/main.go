// Command fbc drives the FasterBASIC pipeline end to end: lex, (a stand-in
// for the external parser), semantic analysis, CFG construction, IR
// emission, and either writing the textual IR to a file or JIT-encoding
// and linking it into an in-process executable region.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"fasterbasic/pkg/cfg"
	"fasterbasic/pkg/diag"
	"fasterbasic/pkg/ir"
	"fasterbasic/pkg/jit/encoder"
	"fasterbasic/pkg/jit/memregion"
	"fasterbasic/pkg/jit/runtimetable"
	"fasterbasic/pkg/lexer"
	"fasterbasic/pkg/semantic"
)

func main() {
	var (
		inPath   = flag.String("in", "", "BASIC source file to lex (diagnostics only; parsing is out of scope, see -sample)")
		sample   = flag.String("sample", "hello", "fixture program to compile: hello, branch, forloop")
		outPath  = flag.String("out", "", "write textual IR here (default: stdout)")
		dumpCFG  = flag.Bool("dump-cfg", false, "print the human-readable CFG dump for every function")
		dumpDOT  = flag.Bool("dump-dot", false, "print a Graphviz DOT dump for every function")
		run      = flag.Bool("run", false, "JIT-encode and link the IR into an executable region and report stats")
	)
	flag.Parse()

	if *inPath != "" {
		src, err := os.ReadFile(*inPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		tokens, bag := lexer.Tokenize(string(src))
		fmt.Fprintf(os.Stderr, "lexed %d tokens from %s\n", len(tokens), *inPath)
		printDiagnostics(bag)
	}

	build, ok := samples[*sample]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -sample %q (want one of: hello, branch, forloop)\n", *sample)
		os.Exit(1)
	}
	program := build()

	syms, bag := semantic.Analyze(program)
	printDiagnostics(bag)
	if bag.HasErrors() {
		os.Exit(1)
	}

	prog, err := cfg.Build(program.Kids)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cfg error:", err)
		os.Exit(1)
	}
	for _, name := range prog.Order {
		g := prog.Graphs[name]
		cfg.Analyze(g)
		if *dumpCFG {
			fmt.Fprint(os.Stderr, cfg.Dump(g))
		}
		if *dumpDOT {
			fmt.Fprint(os.Stderr, cfg.DumpDOT(g))
		}
	}

	irText := ir.EmitProgram(prog, syms)

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(irText), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "write error:", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "wrote IR to %s\n", *outPath)
	} else {
		fmt.Print(irText)
	}

	if *run {
		if err := jitRun(irText); err != nil {
			fmt.Fprintln(os.Stderr, "jit error:", err)
			os.Exit(1)
		}
	}
}

func printDiagnostics(bag *diag.Bag) {
	for _, d := range bag.Sorted() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	for _, w := range bag.Warnings() {
		fmt.Fprintln(os.Stderr, w.String())
	}
}

// jitRun parses irText back into records, encodes them into a fresh
// JitMemoryRegion, links fixups/external calls/data relocations, and
// prints the pipeline report (spec §4.6). memregion.New succeeds only on
// linux/arm64 and darwin/arm64, so on any other target jitRun returns the
// allocation error before anything is encoded.
func jitRun(irText string) error {
	records, err := encoder.Parse(irText)
	if err != nil {
		return fmt.Errorf("parsing IR: %w", err)
	}

	region, err := memregion.New(64*1024, 16*1024, 64*1024)
	if err != nil {
		return fmt.Errorf("allocating JIT region: %w", err)
	}
	defer region.Free()

	enc := encoder.New(region, runtimetable.Shared())
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	if err := enc.Link(); err != nil {
		return fmt.Errorf("linking: %w", err)
	}

	fmt.Fprint(os.Stderr, enc.Report())

	if runtime.GOARCH != "arm64" {
		fmt.Fprintln(os.Stderr, "note: host is not arm64; skipping MakeExecutable/execute, encode+link verified only")
		return nil
	}
	if err := region.MakeExecutable(); err != nil {
		return fmt.Errorf("making region executable: %w", err)
	}
	fmt.Fprintln(os.Stderr, "region is executable; entry point resolution and invocation are left to the embedder")
	return nil
}
