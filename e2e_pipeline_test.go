// End-to-end scenarios mirroring spec §8's E1-E5: drive the full pipeline
// (lexer or a fixture AST -> semantic -> CFG -> IR) and assert on the
// textual IR / CFG shape the scenarios name. Parsing is an out-of-scope
// external collaborator (spec §1), so each scenario below builds its
// ast.Node tree directly, the same shape a real parser would hand the
// semantic analyzer — mirroring cmd/fbc/fixtures.go's fixture style.
package fasterbasic

import (
	"strings"
	"testing"

	"fasterbasic/pkg/ast"
	"fasterbasic/pkg/cfg"
	"fasterbasic/pkg/ir"
	"fasterbasic/pkg/lexer"
	"fasterbasic/pkg/semantic"
	"fasterbasic/pkg/token"
)

func tok(k token.Kind, lexeme string) token.Token {
	return token.Token{Kind: k, Lexeme: lexeme, Loc: token.Location{Line: 1, Column: 1}}
}

func numLit(n float64) *ast.Node { return &ast.Node{Kind: ast.NumberLit, Num: n} }
func strLit(s string) *ast.Node  { return &ast.Node{Kind: ast.StringLit, Str: s} }
func varRef(name string) *ast.Node {
	return &ast.Node{Kind: ast.VarRef, Str: name, Tok: tok(token.IDENT, name)}
}
func program(stmts ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.Program, Kids: stmts, Tok: tok(token.EOF, "")}
}

// compile runs program through semantic analysis, CFG construction, and IR
// emission, failing the test on any semantic error (spec §7's
// hasErrors()-then-proceed discipline).
func compile(t *testing.T, root *ast.Node) (*cfg.Program, string) {
	t.Helper()
	syms, bag := semantic.Analyze(root)
	if bag.HasErrors() {
		t.Fatalf("unexpected semantic errors: %v", bag.Sorted())
	}
	prog, err := cfg.Build(root.Kids)
	if err != nil {
		t.Fatalf("cfg.Build: %v", err)
	}
	for _, name := range prog.Order {
		cfg.Analyze(prog.Graphs[name])
	}
	return prog, ir.EmitProgram(prog, syms)
}

// E1 — empty program: lexer produces only EOF, semantic analysis reports
// no errors, and IR emission yields a main with only entry/exit.
func TestE1EmptyProgram(t *testing.T) {
	tokens, bag := lexer.Tokenize("")
	if bag.HasErrors() {
		t.Fatalf("unexpected lex errors on empty input: %v", bag.Sorted())
	}
	if len(tokens) != 1 || tokens[0].Kind != token.EOF {
		t.Fatalf("expected exactly [EOF], got %v", tokens)
	}

	root := program()
	prog, irText := compile(t, root)

	g := prog.Graphs["main"]
	if g == nil {
		t.Fatal("expected a main graph")
	}
	if len(g.Blocks) != 2 {
		t.Fatalf("expected only entry+exit blocks for an empty body, got %d", len(g.Blocks))
	}
	if !strings.Contains(irText, "$main()") {
		t.Fatalf("expected a main function in the emitted IR, got:\n%s", irText)
	}
}

// E2 — hello world: PRINT "Hello" produces a pooled string, a call to the
// string-print runtime symbol, a call to the newline symbol, and a ret.
func TestE2HelloWorld(t *testing.T) {
	root := program(&ast.Node{Kind: ast.PrintStmt, Kids: []*ast.Node{strLit("Hello")}})
	_, irText := compile(t, root)

	if !strings.Contains(irText, "Hello") {
		t.Errorf("expected the pooled string literal in the IR, got:\n%s", irText)
	}
	if !strings.Contains(irText, "_basic_print_string") {
		t.Errorf("expected a call to _basic_print_string, got:\n%s", irText)
	}
	if !strings.Contains(irText, "_basic_print_newline") {
		t.Errorf("expected a call to _basic_print_newline, got:\n%s", irText)
	}
	if !strings.Contains(irText, "ret") {
		t.Errorf("expected a ret terminator, got:\n%s", irText)
	}
}

// E3 — branch diamond: CFG has 5 blocks (entry, then, else, merge, exit)
// with two branch edges out of the IF block.
func TestE3BranchDiamond(t *testing.T) {
	cond := &ast.Node{Kind: ast.BinaryExpr, Op: token.GT, Lhs: varRef("X"), Rhs: numLit(0)}
	ifStmt := &ast.Node{
		Kind: ast.IfStmt,
		Cond: cond,
		Tok:  tok(token.IF, "IF"),
		Then: []*ast.Node{{Kind: ast.PrintStmt, Kids: []*ast.Node{strLit("yes")}}},
		Else: []*ast.Node{{Kind: ast.PrintStmt, Kids: []*ast.Node{strLit("no")}}},
	}
	root := program(
		&ast.Node{Kind: ast.LetStmt, Lhs: varRef("X"), Rhs: numLit(1)},
		ifStmt,
	)
	prog, _ := compile(t, root)
	g := prog.Graphs["main"]

	if len(g.Blocks) != 5 {
		t.Fatalf("expected 5 blocks (entry, then, else, merge, exit), got %d", len(g.Blocks))
	}

	var branchEdges int
	for _, e := range g.Edges {
		if e.Kind == cfg.BranchTrue || e.Kind == cfg.BranchFalse {
			branchEdges++
		}
	}
	if branchEdges != 2 {
		t.Fatalf("expected exactly two branch edges out of the IF block, got %d", branchEdges)
	}
	if g.UnreachableCount() != 0 {
		t.Fatalf("expected all blocks reachable, got %d unreachable", g.UnreachableCount())
	}
}

// E4 — FOR loop: the index variable registers as integer, the CFG has a
// single detected loop, and exactly one back-edge exists.
func TestE4ForLoop(t *testing.T) {
	forStmt := &ast.Node{
		Kind: ast.ForStmt,
		Tok:  tok(token.FOR, "FOR"),
		Str:  "I",
		Lhs:  numLit(1),
		Rhs:  numLit(10),
		Cond: &ast.Node{Kind: ast.BinaryExpr, Op: token.LE, Lhs: varRef("I"), Rhs: numLit(10)},
		Then: []*ast.Node{{Kind: ast.PrintStmt, Kids: []*ast.Node{varRef("I")}}},
	}
	root := program(forStmt)
	prog, _ := compile(t, root)
	g := prog.Graphs["main"]

	if len(g.Loops) != 1 {
		t.Fatalf("expected exactly one detected loop, got %d", len(g.Loops))
	}
	var backEdges int
	for _, e := range g.Edges {
		if e.Kind == cfg.BackEdge {
			backEdges++
		}
	}
	if backEdges != 1 {
		t.Fatalf("expected exactly one back-edge, got %d", backEdges)
	}
	header := g.Block(g.Loops[0].Header)
	if header.Kind != cfg.LoopHeader {
		t.Fatalf("expected the loop's header block kind to be loop_header, got %s", header.Kind)
	}
}

// E5 — unreachable code after GOTO: the block holding line 20's statement
// is unreachable. Only line 30 needs a label block of its own (it's the
// GOTO's target); line 20 is an ordinary statement with no incoming jump.
//
//	10 GOTO 30
//	20 PRINT "dead"
//	30 END
func TestE5UnreachableAfterGoto(t *testing.T) {
	gotoStmt := &ast.Node{Kind: ast.GotoStmt, Target: "30", Tok: token.Token{Loc: token.Location{Line: 10}}}
	deadPrint := &ast.Node{Kind: ast.PrintStmt, Kids: []*ast.Node{strLit("dead")}, Tok: token.Token{Loc: token.Location{Line: 20}}}
	endLabel := &ast.Node{Kind: ast.LabelStmt, Str: "30", Tok: token.Token{Loc: token.Location{Line: 30}}}
	endStmt := &ast.Node{Kind: ast.EndStmt, Tok: token.Token{Loc: token.Location{Line: 30}}}

	root := program(gotoStmt, deadPrint, endLabel, endStmt)
	prog, _ := compile(t, root)
	g := prog.Graphs["main"]

	if g.UnreachableCount() != 1 {
		t.Fatalf("expected exactly one unreachable block, got %d", g.UnreachableCount())
	}
}
