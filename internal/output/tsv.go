// # internal/output/tsv.go
package output

import (
	"fmt"
	"strings"
)

type TSVGenerator struct {
	stream *Stream
}

func NewTSVGenerator(s *Stream) *TSVGenerator {
	return &TSVGenerator{stream: s}
}

func (t *TSVGenerator) Generate() (string, error) {
	var buf strings.Builder

	buf.WriteString("Directive\tScope\tName\tType\tParams\tFile\tLine\tColumn\n")
	for _, r := range t.stream.Records() {
		if r.Directive == DirEndClass {
			continue
		}
		scope := r.Scope
		if r.Directive == DirBeginClass {
			scope = ""
		}
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			r.Directive,
			scope,
			r.Name,
			r.Type,
			strings.Join(r.Params, ", "),
			r.Location.File,
			r.Location.Line,
			r.Location.Column,
		))
	}

	return buf.String(), nil
}
