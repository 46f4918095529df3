package diagnostic

import (
	"fmt"
	"io"
	"reflscan/internal/decl"
	"reflscan/internal/engine/typeres"
	"reflscan/internal/shared/observability"
	"strings"
)

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

type Kind string

const (
	KindIncompleteType Kind = "incomplete_type"
	KindInternal       Kind = "internal"
)

const unnamedDeclaration = "the current declaration"

// Diagnostic is one message on the diagnostics channel.
type Diagnostic struct {
	Severity    Severity
	Kind        Kind
	File        string
	Line        int // 1-based, 0 when unknown
	Column      int // 1-based, 0 when unknown
	Message     string
	Declaration string
}

// String formats the diagnostic as <file>:<line>:<column>: <severity>: <message>.
func (d Diagnostic) String() string {
	var sb strings.Builder
	if d.File != "" {
		sb.WriteString(d.File)
		sb.WriteString(fmt.Sprintf(":%d:%d: ", d.Line, d.Column))
	}
	sb.WriteString(d.Severity.String())
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	return sb.String()
}

// Reporter collects diagnostics and streams each one to its writer as soon
// as it is reported. The writer must not be the descriptor output.
type Reporter struct {
	out         io.Writer
	diagnostics []Diagnostic
}

// NewReporter creates a reporter writing to out; a nil writer only collects.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// IncompleteType reports a declaration dropped because one of its types is
// not fully defined. name may be empty for unnamed declarations.
func (r *Reporter) IncompleteType(err *typeres.IncompleteTypeError, name string) Diagnostic {
	if strings.TrimSpace(name) == "" {
		name = unnamedDeclaration
	}
	loc := err.Range.Begin
	d := Diagnostic{
		Severity:    SeverityWarning,
		Kind:        KindIncompleteType,
		File:        loc.File,
		Line:        loc.Line,
		Column:      loc.Column,
		Message:     fmt.Sprintf("Incomplete type %s, meta data will not be emitted for %s", err.Spelling, name),
		Declaration: name,
	}
	r.report(d)
	return d
}

// Error reports an unexpected per-declaration failure that was recovered.
func (r *Reporter) Error(loc decl.Location, name string, err error) Diagnostic {
	if strings.TrimSpace(name) == "" {
		name = unnamedDeclaration
	}
	d := Diagnostic{
		Severity:    SeverityError,
		Kind:        KindInternal,
		File:        loc.File,
		Line:        loc.Line,
		Column:      loc.Column,
		Message:     fmt.Sprintf("%v, meta data will not be emitted for %s", err, name),
		Declaration: name,
	}
	r.report(d)
	return d
}

// Replay re-reports diagnostics recorded by an earlier identical run.
func (r *Reporter) Replay(diags []Diagnostic) {
	for _, d := range diags {
		r.report(d)
	}
}

func (r *Reporter) report(d Diagnostic) {
	r.diagnostics = append(r.diagnostics, d)
	observability.DiagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
	if r.out != nil {
		fmt.Fprintln(r.out, d.String())
	}
}

// Diagnostics returns all collected diagnostics.
func (r *Reporter) Diagnostics() []Diagnostic {
	if r == nil {
		return nil
	}
	out := make([]Diagnostic, len(r.diagnostics))
	copy(out, r.diagnostics)
	return out
}

func (r *Reporter) WarningCount() int {
	return r.count(SeverityWarning)
}

func (r *Reporter) ErrorCount() int {
	return r.count(SeverityError)
}

func (r *Reporter) count(sev Severity) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, d := range r.diagnostics {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// Summary returns a summary line like "2 warning(s), 1 error(s)".
func (r *Reporter) Summary() string {
	if r == nil {
		return ""
	}
	warnings := r.WarningCount()
	errors := r.ErrorCount()

	parts := []string{}
	if errors > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", errors))
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", warnings))
	}
	if len(parts) == 0 {
		return "no issues"
	}
	return strings.Join(parts, ", ")
}
