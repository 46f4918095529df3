// # internal/output/dot.go
package output

import (
	"fmt"
	"strings"
)

// DOTGenerator renders the inheritance graph of the reflected classes.
type DOTGenerator struct {
	stream *Stream
}

func NewDOTGenerator(s *Stream) *DOTGenerator {
	return &DOTGenerator{stream: s}
}

func (d *DOTGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("digraph inheritance {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2, arrowhead=empty];\n\n")

	classes, members := classSummary(d.stream.Records())
	classSet := make(map[string]bool, len(classes))
	for _, name := range classes {
		classSet[name] = true
	}

	buf.WriteString("  subgraph cluster_reflected {\n")
	buf.WriteString("    label=\"Reflected Classes\";\n")
	buf.WriteString("    style=filled;\n")
	buf.WriteString("    color=\"whitesmoke\";\n")
	buf.WriteString("    node [fillcolor=\"white\", style=\"rounded,filled\"];\n")
	for _, name := range classes {
		m := members[name]
		label := fmt.Sprintf("%s\\n(%d attrs, %d methods)", escapeDOT(name), m.attributes, m.methods)
		buf.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", color=\"darkslategrey\"];\n", escapeDOT(name), label))
	}
	buf.WriteString("  }\n\n")

	edges := inheritanceEdges(d.stream.Records())
	external := make([]string, 0)
	seenExternal := make(map[string]bool)
	for _, e := range edges {
		if !classSet[e.base] && !seenExternal[e.base] {
			seenExternal[e.base] = true
			external = append(external, e.base)
		}
	}
	if len(external) > 0 {
		buf.WriteString("  // Bases reflected elsewhere\n")
		buf.WriteString("  node [fillcolor=\"gainsboro\", style=\"rounded,filled\", color=\"grey\"];\n")
		for _, name := range external {
			buf.WriteString(fmt.Sprintf("  \"%s\";\n", escapeDOT(name)))
		}
		buf.WriteString("\n")
	}

	for _, e := range edges {
		if classSet[e.base] {
			buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"forestgreen\"];\n", escapeDOT(e.derived), escapeDOT(e.base)))
		} else {
			buf.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [color=\"grey\", style=dashed];\n", escapeDOT(e.derived), escapeDOT(e.base)))
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

type memberCounts struct {
	attributes int
	methods    int
}

type inheritanceEdge struct {
	derived string
	base    string
}

// classSummary lists classes in stream order with their member counts.
func classSummary(records []Record) ([]string, map[string]memberCounts) {
	classes := make([]string, 0)
	counts := make(map[string]memberCounts)
	for _, r := range records {
		switch r.Directive {
		case DirBeginClass:
			if _, ok := counts[r.Name]; !ok {
				classes = append(classes, r.Name)
				counts[r.Name] = memberCounts{}
			}
		case DirAttribute:
			c := counts[r.Scope]
			c.attributes++
			counts[r.Scope] = c
		case DirStaticMethod, DirMethod, DirConstMethod, DirVolatileMethod, DirConstVolatileMethod:
			c := counts[r.Scope]
			c.methods++
			counts[r.Scope] = c
		}
	}
	return classes, counts
}

func inheritanceEdges(records []Record) []inheritanceEdge {
	edges := make([]inheritanceEdge, 0)
	for _, r := range records {
		if r.Directive == DirSuperClass {
			edges = append(edges, inheritanceEdge{derived: r.Scope, base: r.Type})
		}
	}
	return edges
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
