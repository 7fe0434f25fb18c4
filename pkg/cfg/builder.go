package cfg

import (
	"fmt"
	"strings"

	"fasterbasic/pkg/ast"
)

// Program is the full set of CFGs a source file produces: one for the
// top-level statement list (keyed "main") plus one per FUNCTION/SUB/method
// body (spec §4.3's "build a separate CFG for the body; keep owning
// reference on the outer builder").
type Program struct {
	Graphs map[string]*Graph
	Order  []string // insertion order, for deterministic iteration
}

func newProgram() *Program {
	return &Program{Graphs: make(map[string]*Graph)}
}

func (p *Program) add(name string, g *Graph) {
	if _, exists := p.Graphs[name]; !exists {
		p.Order = append(p.Order, name)
	}
	p.Graphs[name] = g
}

type pendingJump struct {
	from   int
	target string
	kind   EdgeKind
}

type loopFrame struct {
	kind   ast.ExitKind
	header int
	exit   int
}

// builder lowers one function body (or the top-level program) to a single
// Graph. A fresh builder is used per body; FUNCTION/SUB/method bodies spawn
// their own builder and are collected into the shared Program.
type builder struct {
	g       *Graph
	prog    *Program
	labels  map[string]int // uppercased label/line text -> block index
	pending []pendingJump
	loops   []loopFrame
	gosubID int
}

// Build lowers every top-level statement plus every FUNCTION/SUB/method body
// reachable from program into a Program of CFGs.
func Build(program []*ast.Node) (*Program, error) {
	p := newProgram()
	if err := buildOne(p, "main", program); err != nil {
		return nil, err
	}
	if err := buildNestedFunctions(p, program); err != nil {
		return nil, err
	}
	return p, nil
}

func buildNestedFunctions(p *Program, stmts []*ast.Node) error {
	for _, s := range stmts {
		if s == nil {
			continue
		}
		switch s.Kind {
		case ast.FunctionDecl, ast.SubDecl:
			if err := buildOne(p, strings.ToUpper(s.Str), s.Then); err != nil {
				return err
			}
		case ast.ClassDecl:
			for _, member := range s.Kids {
				switch member.Kind {
				case ast.MethodDecl:
					if err := buildOne(p, strings.ToUpper(s.Str)+"."+strings.ToUpper(member.Str), member.Then); err != nil {
						return err
					}
				case ast.ConstructorDecl:
					if err := buildOne(p, strings.ToUpper(s.Str)+".CONSTRUCTOR", member.Then); err != nil {
						return err
					}
				case ast.DestructorDecl:
					if err := buildOne(p, strings.ToUpper(s.Str)+".DESTRUCTOR", member.Then); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func buildOne(p *Program, name string, body []*ast.Node) error {
	b := &builder{g: newGraph(name), prog: p, labels: make(map[string]int)}
	entry := b.g.newBlock(Entry, "entry")
	exit := b.g.newBlock(ExitBlock, "exit")
	b.g.EntryIndex, b.g.ExitIndex = entry.Index, exit.Index

	b.preregisterLabels(body)

	cur := entry
	cur = b.lowerStmts(body, cur)
	if cur != nil {
		b.g.addEdge(cur.Index, exit.Index, Fallthrough)
	}

	if err := b.resolvePending(); err != nil {
		return err
	}

	p.add(name, b.g)
	return nil
}

// preregisterLabels walks body (recursing into every structured construct
// that keeps statements in the same graph) and creates a label_target block
// for every LabelStmt found, so forward GOTO/GOSUB references resolve
// immediately instead of waiting on a fix-up (spec §4.3 pass 1).
func (b *builder) preregisterLabels(stmts []*ast.Node) {
	for _, s := range stmts {
		if s == nil {
			continue
		}
		if s.Kind == ast.LabelStmt {
			key := strings.ToUpper(s.Str)
			if _, exists := b.labels[key]; !exists {
				blk := b.g.newBlock(LabelTarget, s.Str)
				blk.Label = s.Str
				b.labels[key] = blk.Index
			}
		}
		if s.Kind == ast.FunctionDecl || s.Kind == ast.SubDecl || s.Kind == ast.ClassDecl {
			continue // bodies get their own graph in buildNestedFunctions
		}
		b.preregisterLabels(s.Then)
		b.preregisterLabels(s.Else)
		for _, k := range s.Kids {
			b.preregisterLabels(k.Then)
		}
	}
}

func (b *builder) resolvePending() error {
	for _, pj := range b.pending {
		key := strings.ToUpper(pj.target)
		if idx, ok := b.labels[key]; ok {
			b.g.addEdge(pj.from, idx, pj.kind)
			continue
		}
		synthetic := b.g.newBlock(Synthetic, fmt.Sprintf("unresolved_%s", pj.target))
		b.g.addEdge(pj.from, synthetic.Index, pj.kind)
		b.g.addEdge(synthetic.Index, b.g.ExitIndex, ExitEdge)
	}
	return nil
}

// lowerStmts lowers stmts into cur, returning the block execution falls
// into after the list (nil if every path already terminated, e.g. the list
// ends in RETURN/GOTO/END).
func (b *builder) lowerStmts(stmts []*ast.Node, cur *BasicBlock) *BasicBlock {
	for _, s := range stmts {
		if s == nil {
			continue
		}
		if cur == nil {
			// Unreachable statements after an unconditional transfer still
			// need a home block so later label targets can be found, but
			// they contribute no new edges into the graph.
			cur = b.g.newBlock(Synthetic, "unreachable")
		}
		cur = b.lowerStmt(s, cur)
	}
	return cur
}

func (b *builder) lowerStmt(s *ast.Node, cur *BasicBlock) *BasicBlock {
	switch s.Kind {
	case ast.LabelStmt:
		target := b.g.Blocks[b.labels[strings.ToUpper(s.Str)]]
		b.g.addEdge(cur.Index, target.Index, Fallthrough)
		return target

	case ast.IfStmt:
		return b.lowerIf(s, cur)

	case ast.ForStmt:
		return b.lowerFor(s, cur)

	case ast.WhileStmt:
		return b.lowerWhile(s, cur)

	case ast.DoLoopStmt:
		return b.lowerDo(s, cur)

	case ast.RepeatStmt:
		return b.lowerRepeat(s, cur)

	case ast.SelectCaseStmt:
		return b.lowerSelectCase(s, cur)

	case ast.TryStmt:
		return b.lowerTry(s, cur)

	case ast.GotoStmt:
		cur.Stmts = append(cur.Stmts, s)
		b.pending = append(b.pending, pendingJump{from: cur.Index, target: s.Target, kind: Jump})
		return nil

	case ast.GosubStmt:
		cur.Stmts = append(cur.Stmts, s)
		b.pending = append(b.pending, pendingJump{from: cur.Index, target: s.Target, kind: GosubCall})
		ret := b.g.newBlock(Normal, fmt.Sprintf("gosub_return_%d", b.gosubID))
		b.gosubID++
		b.g.addEdge(cur.Index, ret.Index, GosubReturn)
		return ret

	case ast.OnGotoStmt, ast.OnGosubStmt:
		cur.Stmts = append(cur.Stmts, s)
		kind := ComputedBranch
		for _, target := range s.Names {
			b.pending = append(b.pending, pendingJump{from: cur.Index, target: target, kind: kind})
		}
		fallthroughBlk := b.g.newBlock(Normal, "on_goto_fallthrough")
		b.g.addEdge(cur.Index, fallthroughBlk.Index, Fallthrough)
		return fallthroughBlk

	case ast.ReturnStmt, ast.EndStmt:
		cur.Stmts = append(cur.Stmts, s)
		b.g.addEdge(cur.Index, b.g.ExitIndex, ExitEdge)
		return nil

	case ast.ExitStmt:
		cur.Stmts = append(cur.Stmts, s)
		if frame, ok := b.innermostLoop(s.Exit); ok {
			b.g.addEdge(cur.Index, frame.exit, LoopExitEdge)
		} else {
			b.g.addEdge(cur.Index, b.g.ExitIndex, ExitEdge)
		}
		return nil

	case ast.FunctionDecl, ast.SubDecl, ast.ClassDecl:
		// Handled separately by buildNestedFunctions; the outer body does
		// not fall through into them.
		return cur

	default:
		cur.Stmts = append(cur.Stmts, s)
		return cur
	}
}

func (b *builder) innermostLoop(kind ast.ExitKind) (loopFrame, bool) {
	for i := len(b.loops) - 1; i >= 0; i-- {
		if b.loops[i].kind == kind {
			return b.loops[i], true
		}
	}
	return loopFrame{}, false
}

func (b *builder) lowerIf(s *ast.Node, cur *BasicBlock) *BasicBlock {
	merge := b.g.newBlock(Merge, "if_merge")
	cur.Cond = s.Cond

	thenBlk := b.g.newBlock(IfThen, "if_then")
	b.g.addEdge(cur.Index, thenBlk.Index, BranchTrue)
	if out := b.lowerStmts(s.Then, thenBlk); out != nil {
		b.g.addEdge(out.Index, merge.Index, Fallthrough)
	}

	falseFrom := cur
	for _, elseif := range s.Kids {
		elseifBlk := b.g.newBlock(IfElseIf, "if_elseif")
		b.g.addEdge(falseFrom.Index, elseifBlk.Index, BranchFalse)
		elseifBlk.Cond = elseif.Cond
		branchBlk := b.g.newBlock(IfThen, "elseif_then")
		b.g.addEdge(elseifBlk.Index, branchBlk.Index, BranchTrue)
		if out := b.lowerStmts(elseif.Then, branchBlk); out != nil {
			b.g.addEdge(out.Index, merge.Index, Fallthrough)
		}
		falseFrom = elseifBlk
	}

	if len(s.Else) > 0 {
		elseBlk := b.g.newBlock(IfElse, "if_else")
		b.g.addEdge(falseFrom.Index, elseBlk.Index, BranchFalse)
		if out := b.lowerStmts(s.Else, elseBlk); out != nil {
			b.g.addEdge(out.Index, merge.Index, Fallthrough)
		}
	} else {
		b.g.addEdge(falseFrom.Index, merge.Index, BranchFalse)
	}

	return merge
}

func (b *builder) lowerFor(s *ast.Node, cur *BasicBlock) *BasicBlock {
	cur.Stmts = append(cur.Stmts, s) // carries the init (Lhs=start, Rhs=end)

	header := b.g.newBlock(LoopHeader, "for_header")
	header.Cond = s.Cond
	b.g.addEdge(cur.Index, header.Index, Fallthrough)

	body := b.g.newBlock(LoopBody, "for_body")
	exitBlk := b.g.newBlock(LoopExit, "for_exit")
	header.LoopExit = exitBlk.Index
	b.g.addEdge(header.Index, body.Index, BranchTrue)
	b.g.addEdge(header.Index, exitBlk.Index, BranchFalse)

	b.loops = append(b.loops, loopFrame{kind: ast.ExitFor, header: header.Index, exit: exitBlk.Index})
	out := b.lowerStmts(s.Then, body)
	b.loops = b.loops[:len(b.loops)-1]

	if out != nil {
		incr := b.g.newBlock(LoopIncrement, "for_increment")
		// Synthesize the increment occurrence of the FOR node: same index
		// variable and optional step (carried in Kids[0], per the IR
		// translator's convention), distinguished from the init occurrence
		// pushed onto cur.Stmts above by Bool=true.
		step := (*ast.Node)(nil)
		if len(s.Kids) > 0 {
			step = s.Kids[0]
		}
		incr.Stmts = append(incr.Stmts, &ast.Node{Kind: ast.ForStmt, Str: s.Str, Tok: s.Tok, Bool: true, Rhs: step})
		b.g.addEdge(out.Index, incr.Index, Fallthrough)
		b.g.addEdge(incr.Index, header.Index, BackEdge)
	}

	return exitBlk
}

func (b *builder) lowerWhile(s *ast.Node, cur *BasicBlock) *BasicBlock {
	header := b.g.newBlock(LoopHeader, "while_header")
	header.Cond = s.Cond
	b.g.addEdge(cur.Index, header.Index, Fallthrough)

	body := b.g.newBlock(LoopBody, "while_body")
	exitBlk := b.g.newBlock(LoopExit, "while_exit")
	header.LoopExit = exitBlk.Index
	b.g.addEdge(header.Index, body.Index, BranchTrue)
	b.g.addEdge(header.Index, exitBlk.Index, BranchFalse)

	b.loops = append(b.loops, loopFrame{kind: ast.ExitWhile, header: header.Index, exit: exitBlk.Index})
	out := b.lowerStmts(s.Then, body)
	b.loops = b.loops[:len(b.loops)-1]

	if out != nil {
		b.g.addEdge(out.Index, header.Index, BackEdge)
	}
	return exitBlk
}

func (b *builder) lowerDo(s *ast.Node, cur *BasicBlock) *BasicBlock {
	// Unconditional DO...LOOP and pre/post WHILE/UNTIL all share this shape:
	// the condition (if any) is carried on s.Cond and s.Bool distinguishes a
	// pre-test (checked before body) from a post-test (checked after body).
	exitBlk := b.g.newBlock(LoopExit, "do_exit")
	b.loops = append(b.loops, loopFrame{kind: ast.ExitDo, exit: exitBlk.Index})

	if s.Cond == nil {
		// Unconditional DO: body loops forever, only EXIT DO leaves it.
		body := b.g.newBlock(LoopBody, "do_body")
		b.g.addEdge(cur.Index, body.Index, Fallthrough)
		body.LoopHeader = body.Index
		out := b.lowerStmts(s.Then, body)
		if out != nil {
			b.g.addEdge(out.Index, body.Index, BackEdge)
		}
		b.loops = b.loops[:len(b.loops)-1]
		return exitBlk
	}

	if s.Bool { // post-test: DO ... LOOP WHILE/UNTIL
		body := b.g.newBlock(LoopBody, "do_body")
		b.g.addEdge(cur.Index, body.Index, Fallthrough)
		out := b.lowerStmts(s.Then, body)
		cond := b.g.newBlock(LoopHeader, "do_posttest")
		cond.Cond = s.Cond
		cond.LoopExit = exitBlk.Index
		if out != nil {
			b.g.addEdge(out.Index, cond.Index, Fallthrough)
		}
		b.g.addEdge(cond.Index, body.Index, BackEdge)
		b.g.addEdge(cond.Index, exitBlk.Index, LoopExitEdge)
		b.loops = b.loops[:len(b.loops)-1]
		return exitBlk
	}

	// pre-test: DO WHILE/UNTIL ... LOOP
	header := b.g.newBlock(LoopHeader, "do_header")
	header.Cond = s.Cond
	header.LoopExit = exitBlk.Index
	b.g.addEdge(cur.Index, header.Index, Fallthrough)
	body := b.g.newBlock(LoopBody, "do_body")
	b.g.addEdge(header.Index, body.Index, BranchTrue)
	b.g.addEdge(header.Index, exitBlk.Index, BranchFalse)
	out := b.lowerStmts(s.Then, body)
	if out != nil {
		b.g.addEdge(out.Index, header.Index, BackEdge)
	}
	b.loops = b.loops[:len(b.loops)-1]
	return exitBlk
}

func (b *builder) lowerRepeat(s *ast.Node, cur *BasicBlock) *BasicBlock {
	body := b.g.newBlock(LoopBody, "repeat_body")
	b.g.addEdge(cur.Index, body.Index, Fallthrough)
	exitBlk := b.g.newBlock(LoopExit, "repeat_exit")

	b.loops = append(b.loops, loopFrame{kind: ast.ExitRepeat, header: body.Index, exit: exitBlk.Index})
	out := b.lowerStmts(s.Then, body)
	b.loops = b.loops[:len(b.loops)-1]

	if out != nil {
		cond := b.g.newBlock(LoopHeader, "repeat_until")
		cond.Cond = s.Cond
		cond.LoopExit = exitBlk.Index
		b.g.addEdge(out.Index, cond.Index, Fallthrough)
		b.g.addEdge(cond.Index, body.Index, BackEdge)
		b.g.addEdge(cond.Index, exitBlk.Index, LoopExitEdge)
	}
	return exitBlk
}

func (b *builder) lowerSelectCase(s *ast.Node, cur *BasicBlock) *BasicBlock {
	merge := b.g.newBlock(Merge, "select_merge")
	testFrom := cur
	var otherwiseHandled bool

	for _, clause := range s.Kids {
		isOtherwise := clause.Bool
		if isOtherwise {
			otherwiseHandled = true
			bodyBlk := b.g.newBlock(CaseOtherwise, "case_otherwise")
			b.g.addEdge(testFrom.Index, bodyBlk.Index, CaseMatch)
			if out := b.lowerStmts(clause.Then, bodyBlk); out != nil {
				b.g.addEdge(out.Index, merge.Index, Fallthrough)
			}
			continue
		}
		testBlk := b.g.newBlock(CaseTest, "case_test")
		testBlk.Cond = clause.Cond
		b.g.addEdge(testFrom.Index, testBlk.Index, CaseNext)
		bodyBlk := b.g.newBlock(CaseBody, "case_body")
		b.g.addEdge(testBlk.Index, bodyBlk.Index, CaseMatch)
		if out := b.lowerStmts(clause.Then, bodyBlk); out != nil {
			b.g.addEdge(out.Index, merge.Index, Fallthrough)
		}
		testFrom = testBlk
	}

	if !otherwiseHandled {
		b.g.addEdge(testFrom.Index, merge.Index, CaseNext)
	}
	return merge
}

func (b *builder) lowerTry(s *ast.Node, cur *BasicBlock) *BasicBlock {
	tryBlk := b.g.newBlock(TryBody, "try_body")
	b.g.addEdge(cur.Index, tryBlk.Index, Fallthrough)
	merge := b.g.newBlock(Merge, "try_merge")

	var finallyBlk *BasicBlock
	if len(s.Else) > 0 {
		finallyBlk = b.g.newBlock(FinallyHandler, "finally_handler")
	}

	tryOut := b.lowerStmts(s.Then, tryBlk)
	routeToMerge := func(out *BasicBlock) {
		if out == nil {
			return
		}
		if finallyBlk != nil {
			b.g.addEdge(out.Index, finallyBlk.Index, Finally)
		} else {
			b.g.addEdge(out.Index, merge.Index, Fallthrough)
		}
	}
	routeToMerge(tryOut)

	for _, clause := range s.Kids {
		catchBlk := b.g.newBlock(CatchHandler, "catch_handler")
		b.g.addEdge(tryBlk.Index, catchBlk.Index, Exception)
		out := b.lowerStmts(clause.Then, catchBlk)
		routeToMerge(out)
	}

	if finallyBlk != nil {
		out := b.lowerStmts(s.Else, finallyBlk)
		if out != nil {
			b.g.addEdge(out.Index, merge.Index, Fallthrough)
		}
	}

	return merge
}
