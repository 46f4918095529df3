package output

import (
	"fmt"
	"strings"
	"unicode"
)

// MermaidGenerator renders the reflected surface as a Mermaid class diagram.
type MermaidGenerator struct {
	stream *Stream
}

func NewMermaidGenerator(s *Stream) *MermaidGenerator {
	return &MermaidGenerator{stream: s}
}

func (m *MermaidGenerator) Generate() (string, error) {
	var b strings.Builder
	b.WriteString("classDiagram\n")

	records := m.stream.Records()
	classes, _ := classSummary(records)
	edges := inheritanceEdges(records)

	names := append([]string{}, classes...)
	known := make(map[string]bool, len(classes))
	for _, name := range classes {
		known[name] = true
	}
	for _, e := range edges {
		if !known[e.base] {
			known[e.base] = true
			names = append(names, e.base)
		}
	}
	ids := makeMermaidIDs(names)

	membersByClass := make(map[string][]string)
	for _, r := range records {
		if line := mermaidMember(r); line != "" {
			membersByClass[r.Scope] = append(membersByClass[r.Scope], line)
		}
	}

	for _, name := range names {
		b.WriteString(fmt.Sprintf("  class %s[\"%s\"]", ids[name], escapeMermaidLabel(name)))
		members := membersByClass[name]
		if len(members) == 0 {
			b.WriteString("\n")
			continue
		}
		b.WriteString(" {\n")
		for _, line := range members {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("  }\n")
	}

	if len(edges) > 0 {
		b.WriteString("\n")
	}
	for _, e := range edges {
		b.WriteString(fmt.Sprintf("  %s <|-- %s\n", ids[e.base], ids[e.derived]))
	}

	functions := make([]string, 0)
	for _, r := range records {
		if r.Directive == DirFunction {
			functions = append(functions, mermaidMember(r))
		}
	}
	if len(functions) > 0 {
		b.WriteString("\n  class free_functions[\"free functions\"] {\n")
		b.WriteString("    <<namespace>>\n")
		for _, line := range functions {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("  }\n")
	}

	return b.String(), nil
}

func mermaidMember(r Record) string {
	params := mermaidType(strings.Join(r.Params, ", "))
	switch r.Directive {
	case DirAttribute:
		return fmt.Sprintf("+%s %s", mermaidType(r.Type), r.Name)
	case DirDefaultConstructor:
		return "+constructor()"
	case DirConstructor:
		return fmt.Sprintf("+constructor(%s)", params)
	case DirStaticMethod:
		return fmt.Sprintf("+%s(%s)$ %s", r.Name, params, mermaidType(r.Type))
	case DirMethod, DirConstMethod, DirVolatileMethod, DirConstVolatileMethod, DirFunction:
		return fmt.Sprintf("+%s(%s) %s", r.Name, params, mermaidType(r.Type))
	default:
		return ""
	}
}

// mermaidType swaps template brackets for Mermaid's generic marker.
func mermaidType(s string) string {
	s = strings.ReplaceAll(s, "<", "~")
	s = strings.ReplaceAll(s, ">", "~")
	return escapeMermaidLabel(s)
}

func sanitizeMermaidID(name string) string {
	if name == "" {
		return "c"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	first := rune(out[0])
	if unicode.IsDigit(first) {
		return "c_" + out
	}
	return out
}

func makeMermaidIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		base := sanitizeMermaidID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
