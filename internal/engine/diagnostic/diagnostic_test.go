package diagnostic

import (
	"bytes"
	"errors"
	"reflscan/internal/decl"
	"reflscan/internal/engine/typeres"
	"testing"

	"github.com/stretchr/testify/assert"
)

func incomplete(file string, line, col int, spelling string) *typeres.IncompleteTypeError {
	return &typeres.IncompleteTypeError{
		Spelling: spelling,
		Range:    decl.SourceRange{Begin: decl.Location{File: file, Line: line, Column: col}},
	}
}

func TestIncompleteTypeFormat(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	d := r.IncompleteType(incomplete("src/widget.h", 12, 5, "Impl"), "impl")

	want := "src/widget.h:12:5: warning: Incomplete type Impl, meta data will not be emitted for impl"
	assert.Equal(t, want, d.String())
	assert.Equal(t, want+"\n", buf.String())
	assert.Equal(t, KindIncompleteType, d.Kind)
}

func TestUnnamedDeclarationPlaceholder(t *testing.T) {
	r := NewReporter(nil)
	d := r.IncompleteType(incomplete("a.h", 1, 1, "Fwd"), "")
	assert.Equal(t, "the current declaration", d.Declaration)
	assert.Contains(t, d.Message, "for the current declaration")
}

func TestCountsAndSummary(t *testing.T) {
	r := NewReporter(nil)
	assert.Equal(t, "no issues", r.Summary())

	r.IncompleteType(incomplete("a.h", 1, 1, "A"), "a")
	r.IncompleteType(incomplete("a.h", 2, 1, "B"), "b")
	r.Error(decl.Location{File: "a.h", Line: 3, Column: 1}, "c", errors.New("missing type reference"))

	assert.Equal(t, 2, r.WarningCount())
	assert.Equal(t, 1, r.ErrorCount())
	assert.Equal(t, "1 error(s), 2 warning(s)", r.Summary())
	assert.Len(t, r.Diagnostics(), 3)
	assert.Equal(t, "a.h:3:1: error: missing type reference, meta data will not be emitted for c", r.Diagnostics()[2].String())
}

func TestReplay(t *testing.T) {
	var buf bytes.Buffer
	first := NewReporter(nil)
	first.IncompleteType(incomplete("a.h", 4, 2, "Fwd"), "f")

	second := NewReporter(&buf)
	second.Replay(first.Diagnostics())
	assert.Equal(t, "a.h:4:2: warning: Incomplete type Fwd, meta data will not be emitted for f\n", buf.String())
	assert.Equal(t, first.Diagnostics(), second.Diagnostics())
}
