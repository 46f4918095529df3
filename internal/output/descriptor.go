// # internal/output/descriptor.go
package output

import (
	"fmt"
	"reflscan/internal/core/errors"
	"reflscan/internal/decl"
	"sort"
	"strings"
)

type Directive string

const (
	DirBeginClass          Directive = "BEGIN_CLASS"
	DirSuperClass          Directive = "SUPER_CLASS"
	DirAttribute           Directive = "ATTRIBUTE"
	DirDefaultConstructor  Directive = "DEFAULT_CONSTRUCTOR"
	DirConstructor         Directive = "CONSTRUCTOR"
	DirStaticMethod        Directive = "STATIC_METHOD"
	DirMethod              Directive = "METHOD"
	DirConstMethod         Directive = "CONST_METHOD"
	DirVolatileMethod      Directive = "VOLATILE_METHOD"
	DirConstVolatileMethod Directive = "CONST_VOLATILE_METHOD"
	DirFunction            Directive = "FUNCTION"
	DirEndClass            Directive = "END_CLASS"
)

const DefaultIncludeHeader = "reflection_impl.h"

// Record is one descriptor line. Scope is the qualified name of the class a
// record belongs to, empty for free functions.
type Record struct {
	Directive Directive
	Scope     string
	Name      string   // class name for BEGIN_CLASS, member or function name otherwise
	Type      string   // attribute type, base type or return type
	Params    []string // parameter types in declaration order
	Location  decl.Location
}

// Line renders the record in the grammar the registration generator matches on.
func (r Record) Line() string {
	switch r.Directive {
	case DirBeginClass:
		return fmt.Sprintf("%s(%s)", r.Directive, r.Name)
	case DirEndClass:
		return string(DirEndClass)
	case DirSuperClass:
		return fmt.Sprintf("%s(%s)", r.Directive, r.Type)
	case DirAttribute:
		return fmt.Sprintf("%s(%s, %s)", r.Directive, r.Name, r.Type)
	case DirDefaultConstructor:
		return fmt.Sprintf("%s()", r.Directive)
	case DirConstructor:
		return fmt.Sprintf("%s(%s)", r.Directive, strings.Join(r.Params, ", "))
	default:
		args := append([]string{r.Name, r.Type}, r.Params...)
		return fmt.Sprintf("%s(%s)", r.Directive, strings.Join(args, ", "))
	}
}

// Stream is the append-only record sequence of one run plus the set of source
// files whose declarations it reflects.
type Stream struct {
	header    string
	records   []Record
	sources   map[string]struct{}
	finalized bool
}

func NewStream(includeHeader, primaryFile string) *Stream {
	s := &Stream{
		header:  includeHeader,
		sources: make(map[string]struct{}),
	}
	s.AddSource(primaryFile)
	return s
}

func (s *Stream) AddSource(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	s.sources[path] = struct{}{}
}

func (s *Stream) Append(r Record) error {
	if s.finalized {
		return errors.New(errors.CodeConflict, "descriptor stream already finalized")
	}
	s.records = append(s.records, r)
	return nil
}

// Records returns a copy of the records in append order.
func (s *Stream) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Stream) Sources() []string {
	out := make([]string, 0, len(s.sources))
	for path := range s.sources {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (s *Stream) Len() int {
	return len(s.records)
}

// Finalize freezes the stream and renders it: the include header, one
// inclusion per source file, a blank line, then every record in append order.
func (s *Stream) Finalize() (string, error) {
	if s.finalized {
		return "", errors.New(errors.CodeConflict, "descriptor stream already finalized")
	}
	s.finalized = true

	var buf strings.Builder
	if s.header != "" {
		buf.WriteString(fmt.Sprintf("#include \"%s\"\n", s.header))
	}
	for _, path := range s.Sources() {
		buf.WriteString(fmt.Sprintf("#include \"%s\"\n", path))
	}
	buf.WriteString("\n")

	for _, r := range s.records {
		buf.WriteString(r.Line())
		buf.WriteString("\n")
		if r.Directive == DirEndClass {
			buf.WriteString("\n")
		}
	}
	return buf.String(), nil
}

// CountByDirective tallies records per directive for run summaries.
func (s *Stream) CountByDirective() map[Directive]int {
	counts := make(map[Directive]int)
	for _, r := range s.records {
		counts[r.Directive]++
	}
	return counts
}
