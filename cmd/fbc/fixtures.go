package main

import (
	"fasterbasic/pkg/ast"
	"fasterbasic/pkg/token"
)

// Parsing grammar is an out-of-scope external collaborator (spec §1), so
// this CLI stands in for it with a small set of named fixture programs
// built directly as ast.Node trees — the same shape a real parser would
// hand the semantic analyzer, for the handful of programs spec §8's
// end-to-end scenarios name. Each fixture's doc comment gives the BASIC
// source text it represents.

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

// helloProgram represents:
//
//	PRINT "Hello"
func helloProgram() *ast.Node {
	return program(&ast.Node{Kind: ast.PrintStmt, Kids: []*ast.Node{strLit("Hello")}})
}

// branchProgram represents spec §8 scenario E3:
//
//	IF X > 0 THEN
//	  PRINT "yes"
//	ELSE
//	  PRINT "no"
//	ENDIF
func branchProgram() *ast.Node {
	cond := &ast.Node{Kind: ast.BinaryExpr, Op: token.GT, Lhs: varRef("X"), Rhs: numLit(0)}
	ifStmt := &ast.Node{
		Kind: ast.IfStmt,
		Cond: cond,
		Tok:  tok(token.IF, "IF"),
		Then: []*ast.Node{{Kind: ast.PrintStmt, Kids: []*ast.Node{strLit("yes")}}},
		Else: []*ast.Node{{Kind: ast.PrintStmt, Kids: []*ast.Node{strLit("no")}}},
	}
	return program(
		&ast.Node{Kind: ast.LetStmt, Lhs: varRef("X"), Rhs: numLit(1)},
		ifStmt,
	)
}

// forLoopProgram represents spec §8 scenario E4:
//
//	FOR I = 1 TO 10: PRINT I: NEXT I
func forLoopProgram() *ast.Node {
	forStmt := &ast.Node{
		Kind: ast.ForStmt,
		Tok:  tok(token.FOR, "FOR"),
		Str:  "I",       // loop index variable name
		Lhs:  numLit(1), // start expression
		Rhs:  numLit(10),
		Cond: &ast.Node{Kind: ast.BinaryExpr, Op: token.LE, Lhs: varRef("I"), Rhs: numLit(10)},
		Then: []*ast.Node{{Kind: ast.PrintStmt, Kids: []*ast.Node{varRef("I")}}},
	}
	return program(forStmt)
}

var samples = map[string]func() *ast.Node{
	"hello":   helloProgram,
	"branch":  branchProgram,
	"forloop": forLoopProgram,
}
