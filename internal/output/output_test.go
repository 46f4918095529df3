// # internal/output/output_test.go
package output

import (
	"reflscan/internal/core/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointStream(t *testing.T) *Stream {
	t.Helper()
	s := NewStream(DefaultIncludeHeader, "point.h")
	records := []Record{
		{Directive: DirBeginClass, Name: "geo::Point"},
		{Directive: DirSuperClass, Scope: "geo::Point", Type: "geo::Shape"},
		{Directive: DirAttribute, Scope: "geo::Point", Name: "x", Type: "int"},
		{Directive: DirDefaultConstructor, Scope: "geo::Point"},
		{Directive: DirConstructor, Scope: "geo::Point", Params: []string{"int", "int"}},
		{Directive: DirConstMethod, Scope: "geo::Point", Name: "norm", Type: "double"},
		{Directive: DirStaticMethod, Scope: "geo::Point", Name: "origin", Type: "geo::Point", Params: []string{"bool"}},
		{Directive: DirEndClass, Scope: "geo::Point"},
		{Directive: DirFunction, Name: "add", Type: "int", Params: []string{"int", "int"}},
	}
	for _, r := range records {
		require.NoError(t, s.Append(r))
	}
	return s
}

func TestRecordLine(t *testing.T) {
	tests := []struct {
		record Record
		want   string
	}{
		{Record{Directive: DirBeginClass, Name: "a::B"}, "BEGIN_CLASS(a::B)"},
		{Record{Directive: DirSuperClass, Type: "Base<int>"}, "SUPER_CLASS(Base<int>)"},
		{Record{Directive: DirAttribute, Name: "x", Type: "int"}, "ATTRIBUTE(x, int)"},
		{Record{Directive: DirDefaultConstructor}, "DEFAULT_CONSTRUCTOR()"},
		{Record{Directive: DirConstructor, Params: []string{"int", "const char *"}}, "CONSTRUCTOR(int, const char *)"},
		{Record{Directive: DirMethod, Name: "run", Type: "void"}, "METHOD(run, void)"},
		{Record{Directive: DirConstVolatileMethod, Name: "get", Type: "int", Params: []string{"int"}}, "CONST_VOLATILE_METHOD(get, int, int)"},
		{Record{Directive: DirFunction, Name: "add", Type: "int", Params: []string{"int", "int"}}, "FUNCTION(add, int, int, int)"},
		{Record{Directive: DirEndClass}, "END_CLASS"},
	}
	for _, tt := range tests {
		t.Run(string(tt.record.Directive), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.Line())
		})
	}
}

func TestStreamFinalize(t *testing.T) {
	s := pointStream(t)
	s.AddSource("point.h")
	s.AddSource("")

	text, err := s.Finalize()
	require.NoError(t, err)

	want := `#include "reflection_impl.h"
#include "point.h"

BEGIN_CLASS(geo::Point)
SUPER_CLASS(geo::Shape)
ATTRIBUTE(x, int)
DEFAULT_CONSTRUCTOR()
CONSTRUCTOR(int, int)
CONST_METHOD(norm, double)
STATIC_METHOD(origin, geo::Point, bool)
END_CLASS

FUNCTION(add, int, int, int)
`
	assert.Equal(t, want, text)

	_, err = s.Finalize()
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
	assert.Error(t, s.Append(Record{Directive: DirEndClass}))
}

func TestStreamSourcesSorted(t *testing.T) {
	s := NewStream("", "b.h")
	s.AddSource("a.h")
	s.AddSource("b.h")
	assert.Equal(t, []string{"a.h", "b.h"}, s.Sources())

	text, err := s.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "#include \"a.h\"\n#include \"b.h\"\n\n", text)
}

func TestCountByDirective(t *testing.T) {
	counts := pointStream(t).CountByDirective()
	assert.Equal(t, 1, counts[DirBeginClass])
	assert.Equal(t, 1, counts[DirFunction])
	assert.Equal(t, 0, counts[DirMethod])
}

func TestTSVGenerator(t *testing.T) {
	tsv, err := NewTSVGenerator(pointStream(t)).Generate()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(tsv), "\n")
	assert.Equal(t, "Directive\tScope\tName\tType\tParams\tFile\tLine\tColumn", lines[0])
	assert.Len(t, lines, 9, "END_CLASS rows are omitted")
	assert.Contains(t, tsv, "CONSTRUCTOR\tgeo::Point\t\t\tint, int\t\t0\t0\n")
}

func TestDOTGenerator(t *testing.T) {
	dot, err := NewDOTGenerator(pointStream(t)).Generate()
	require.NoError(t, err)

	assert.Contains(t, dot, "digraph inheritance")
	assert.Contains(t, dot, "\"geo::Point\" [label=\"geo::Point\\n(1 attrs, 2 methods)\"")
	assert.Contains(t, dot, "\"geo::Point\" -> \"geo::Shape\" [color=\"grey\", style=dashed];")
}

func TestMermaidGenerator(t *testing.T) {
	out, err := NewMermaidGenerator(pointStream(t)).Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "classDiagram\n"))
	assert.Contains(t, out, "class geo__Point[\"geo::Point\"] {")
	assert.Contains(t, out, "+int x")
	assert.Contains(t, out, "+norm() double")
	assert.Contains(t, out, "+origin(bool)$ geo::Point")
	assert.Contains(t, out, "geo__Shape <|-- geo__Point")
	assert.Contains(t, out, "+add(int, int) int")
}

func TestMermaidIDsAreUnique(t *testing.T) {
	ids := makeMermaidIDs([]string{"a::b", "a_b", "1x"})
	assert.Equal(t, "a__b", ids["a::b"])
	assert.Equal(t, "a_b", ids["a_b"])
	assert.Equal(t, "c_1x", ids["1x"])
}
