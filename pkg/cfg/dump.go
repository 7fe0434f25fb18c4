package cfg

import (
	"fmt"
	"strings"
)

// Dump renders g in the human-readable tooling format spec §6 specifies:
// a per-block header, predecessor/successor lists, a statement count, and
// an edge summary, followed by the loop list and RPO order.
func Dump(g *Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s\n", g.FuncName)
	for _, b := range g.Blocks {
		unreachable := ""
		if !b.Reachable {
			unreachable = "  [UNREACHABLE]"
		}
		fmt.Fprintf(&sb, "┌─ BB%d: %s (%s)%s  RPO=%d\n", b.Index, b.Name, b.Kind, unreachable, b.RPONumber)
		fmt.Fprintf(&sb, "│  preds=%v succs=%v\n", b.Preds, b.Succs)
		fmt.Fprintf(&sb, "│  stmts=%d\n", len(b.Stmts))
	}
	sb.WriteString("edges:\n")
	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "  BB%d(%s) ──[%s]──▸ BB%d(%s)\n",
			e.From, g.Blocks[e.From].Name, e.Kind, e.To, g.Blocks[e.To].Name)
	}
	sb.WriteString("loops:\n")
	for i, l := range g.Loops {
		fmt.Fprintf(&sb, "  loop %d: header=BB%d exit=BB%d depth=%d body=%v backedges=%v\n",
			i, l.Header, l.ExitBlock, l.Depth, l.Body, l.BackEdges)
	}
	sb.WriteString("rpo:\n  ")
	for _, idx := range rpoOrder(g) {
		fmt.Fprintf(&sb, "BB%d ", idx)
	}
	sb.WriteString("\n")
	return sb.String()
}

// DumpDOT renders g as a Graphviz DOT graph for visualization.
func DumpDOT(g *Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %s {\n", sanitizeDOTName(g.FuncName))
	for _, b := range g.Blocks {
		shape := "box"
		if b.Kind == Entry || b.Kind == ExitBlock {
			shape = "ellipse"
		}
		style := ""
		if !b.Reachable {
			style = ", style=dashed"
		}
		fmt.Fprintf(&sb, "  BB%d [label=\"BB%d: %s (%s)\", shape=%s%s];\n", b.Index, b.Index, b.Name, b.Kind, shape, style)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "  BB%d -> BB%d [label=\"%s\"];\n", e.From, e.To, e.Kind)
	}
	sb.WriteString("}\n")
	return sb.String()
}

func sanitizeDOTName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
}
