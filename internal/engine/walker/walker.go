// Package walker traverses a resolved declaration tree and appends the
// reflectable public surface to a descriptor stream.
package walker

import (
	"errors"
	"fmt"
	"log/slog"
	"reflscan/internal/decl"
	"reflscan/internal/engine/classify"
	"reflscan/internal/engine/diagnostic"
	"reflscan/internal/engine/typeres"
	"reflscan/internal/output"
	"reflscan/internal/shared/observability"
	"strings"

	"github.com/gobwas/glob"
)

const scopeSeparator = "::"

// Skip reasons in addition to the ones the classifier reports.
const (
	skipHidden        = "non_public"
	skipAnonymous     = "anonymous_namespace"
	skipUnion         = "union"
	skipUnnamed       = "unnamed"
	skipNoDefinition  = "no_definition"
	skipExcluded      = "excluded"
	skipUnknownDecl   = "unknown_declaration"
	skipMemberOutside = "member_outside_class"
)

var roleDirectives = map[classify.Role]output.Directive{
	classify.RoleDefaultConstructor:  output.DirDefaultConstructor,
	classify.RoleConstructor:         output.DirConstructor,
	classify.RoleStaticMethod:        output.DirStaticMethod,
	classify.RoleConstVolatileMethod: output.DirConstVolatileMethod,
	classify.RoleConstMethod:         output.DirConstMethod,
	classify.RoleVolatileMethod:      output.DirVolatileMethod,
	classify.RoleMethod:              output.DirMethod,
	classify.RoleFunction:            output.DirFunction,
}

type Options struct {
	// Exclude holds glob patterns matched against qualified names; matching
	// namespaces, classes and functions are skipped with everything inside.
	Exclude []string
}

// state is the traversal context of one run.
type state struct {
	inClass bool
	path    []string
	// deferred points at the nested-class queue of the class body currently
	// being walked. Each class visit owns its queue and drains it before
	// returning.
	deferred *[]*decl.Class
}

type Walker struct {
	resolver *typeres.Resolver
	stream   *output.Stream
	reporter *diagnostic.Reporter
	exclude  []glob.Glob
	state    state
}

func New(resolver *typeres.Resolver, stream *output.Stream, reporter *diagnostic.Reporter, opts Options) (*Walker, error) {
	w := &Walker{
		resolver: resolver,
		stream:   stream,
		reporter: reporter,
	}
	for _, pattern := range opts.Exclude {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", pattern, err)
		}
		w.exclude = append(w.exclude, g)
	}
	return w, nil
}

// WalkUnit walks every root declaration of the unit's primary file in
// lexical order and registers the files they come from.
func (w *Walker) WalkUnit(u *decl.Unit) {
	for _, root := range u.Roots() {
		w.stream.AddSource(root.DeclLocation().File)
		w.Walk(root)
	}
}

// Walk visits one declaration. Failures are reported and contained to the
// declaration they belong to.
func (w *Walker) Walk(d decl.Decl) {
	if isNil(d) {
		return
	}
	if d.DeclAccess().Hidden() {
		w.skip(d, skipHidden)
		return
	}

	switch n := d.(type) {
	case *decl.Namespace:
		w.walkNamespace(n)
	case *decl.Class:
		w.walkClass(n)
	case *decl.Field:
		if n.Name == "" {
			w.skip(n, skipUnnamed)
			return
		}
		if err := w.emitField(n); err != nil {
			w.fail(n, err)
		}
	case *decl.ClassTemplate:
		// Only materialized specializations are reflected.
		for _, spec := range n.Specializations {
			w.Walk(spec)
		}
	case *decl.Constructor, *decl.Destructor, *decl.ConversionOperator, *decl.Method, *decl.FreeFunction:
		w.walkFunction(d)
	default:
		w.skip(d, skipUnknownDecl)
	}
}

func (w *Walker) walkNamespace(ns *decl.Namespace) {
	if ns.Anonymous || ns.Name == "" {
		w.skip(ns, skipAnonymous)
		return
	}
	if w.excluded(w.qualify(ns.Name)) {
		w.skip(ns, skipExcluded)
		return
	}

	w.push(ns.Name)
	defer w.pop()
	for _, child := range ns.Decls {
		w.Walk(child)
	}
}

func (w *Walker) walkClass(c *decl.Class) {
	if c.Name == "" {
		// Anonymous structs and unions have no name to register under.
		w.skip(c, skipUnnamed)
		return
	}
	if c.Union {
		w.skip(c, skipUnion)
		return
	}
	if !c.HasDefinition {
		w.skip(c, skipNoDefinition)
		return
	}
	if w.state.inClass {
		// Nested classes get their own block after the enclosing one closes.
		if w.state.deferred != nil {
			*w.state.deferred = append(*w.state.deferred, c)
		}
		return
	}

	name := w.className(c)
	qualified := w.qualify(name)
	if w.excluded(qualified) {
		w.skip(c, skipExcluded)
		return
	}

	queue := make([]*decl.Class, 0)
	outer := w.state.deferred
	w.state.deferred = &queue

	w.push(name)
	w.state.inClass = true
	w.emit(output.Record{Directive: output.DirBeginClass, Name: qualified, Location: c.Location})

	for _, base := range c.Bases {
		desc, err := w.resolver.Resolve(base.Type, base.Range)
		if err != nil {
			// Only the base record is dropped; the class block stays.
			w.fail(c, err)
			continue
		}
		w.emit(output.Record{Directive: output.DirSuperClass, Scope: qualified, Type: desc.Spelling, Location: base.Range.Begin})
	}

	for _, member := range c.Members {
		w.Walk(member)
	}

	w.state.inClass = false
	w.emit(output.Record{Directive: output.DirEndClass, Scope: qualified, Location: c.Location})
	w.state.deferred = outer

	for len(queue) > 0 {
		nested := queue[0]
		queue = queue[1:]
		w.Walk(nested)
	}
	w.pop()
}

func (w *Walker) emitField(f *decl.Field) error {
	if !w.state.inClass {
		w.skip(f, skipMemberOutside)
		return nil
	}
	desc, err := w.resolver.Resolve(f.Type, f.Range)
	if err != nil {
		return err
	}
	w.emit(output.Record{
		Directive: output.DirAttribute,
		Scope:     w.scope(),
		Name:      f.Name,
		Type:      desc.Spelling,
		Location:  f.Location,
	})
	return nil
}

func (w *Walker) walkFunction(d decl.Decl) {
	result := classify.Classify(d, w.state.inClass)
	if !result.Role.Emits() {
		w.skip(d, string(result.Reason))
		return
	}
	if w.excluded(w.qualify(d.DeclName())) {
		w.skip(d, skipExcluded)
		return
	}

	record, err := w.functionRecord(d, result.Role)
	if err != nil {
		w.fail(d, err)
		return
	}
	w.emit(record)
}

func (w *Walker) functionRecord(d decl.Decl, role classify.Role) (output.Record, error) {
	record := output.Record{
		Directive: roleDirectives[role],
		Location:  d.DeclLocation(),
	}
	if w.state.inClass {
		record.Scope = w.scope()
	}

	switch fn := d.(type) {
	case *decl.Constructor:
		params, err := w.resolveParams(fn.Params)
		if err != nil {
			return output.Record{}, err
		}
		record.Params = params
	case *decl.Method:
		if err := w.fillSignature(&record, fn.Name, fn.Signature, fn.Range); err != nil {
			return output.Record{}, err
		}
	case *decl.FreeFunction:
		if err := w.fillSignature(&record, fn.Name, fn.Signature, fn.Range); err != nil {
			return output.Record{}, err
		}
	default:
		return output.Record{}, fmt.Errorf("unexpected %T for role %s", d, role)
	}
	return record, nil
}

func (w *Walker) fillSignature(record *output.Record, name string, sig decl.Signature, rng decl.SourceRange) error {
	result, err := w.resolver.Resolve(sig.Result, rng)
	if err != nil {
		return err
	}
	params, err := w.resolveParams(sig.Params)
	if err != nil {
		return err
	}
	record.Name = name
	record.Type = result.Spelling
	record.Params = params
	return nil
}

// resolveParams returns parameter type spellings; parameter names are not
// part of the descriptor.
func (w *Walker) resolveParams(params []decl.Param) ([]string, error) {
	out := make([]string, 0, len(params))
	for _, p := range params {
		desc, err := w.resolver.Resolve(p.Type, p.Range)
		if err != nil {
			return nil, err
		}
		out = append(out, desc.Spelling)
	}
	return out, nil
}

func (w *Walker) className(c *decl.Class) string {
	if len(c.TemplateArgs) == 0 {
		return c.Name
	}
	args := make([]string, 0, len(c.TemplateArgs))
	for _, arg := range c.TemplateArgs {
		args = append(args, w.resolver.SpellCanonical(arg))
	}
	return c.Name + "<" + strings.Join(args, ", ") + ">"
}

func (w *Walker) emit(r output.Record) {
	if err := w.stream.Append(r); err != nil {
		slog.Error("failed to append descriptor record", "directive", r.Directive, "error", err)
		return
	}
	observability.RecordsEmittedTotal.WithLabelValues(string(r.Directive)).Inc()
}

func (w *Walker) fail(d decl.Decl, err error) {
	var incomplete *typeres.IncompleteTypeError
	if errors.As(err, &incomplete) {
		w.reporter.IncompleteType(incomplete, d.DeclName())
		return
	}
	w.reporter.Error(d.DeclLocation(), d.DeclName(), err)
}

func (w *Walker) skip(d decl.Decl, reason string) {
	observability.DeclarationsSkippedTotal.WithLabelValues(reason).Inc()
	slog.Debug("declaration skipped", "name", d.DeclName(), "reason", reason, "scope", w.scope())
}

func (w *Walker) excluded(qualified string) bool {
	for _, g := range w.exclude {
		if g.Match(qualified) {
			return true
		}
	}
	return false
}

func (w *Walker) push(name string) {
	w.state.path = append(w.state.path, name)
}

func (w *Walker) pop() {
	if len(w.state.path) > 0 {
		w.state.path = w.state.path[:len(w.state.path)-1]
	}
}

func (w *Walker) scope() string {
	return strings.Join(w.state.path, scopeSeparator)
}

func (w *Walker) qualify(name string) string {
	if len(w.state.path) == 0 {
		return name
	}
	return w.scope() + scopeSeparator + name
}

func isNil(d decl.Decl) bool {
	switch n := d.(type) {
	case nil:
		return true
	case *decl.Namespace:
		return n == nil
	case *decl.Class:
		return n == nil
	case *decl.Field:
		return n == nil
	case *decl.Constructor:
		return n == nil
	case *decl.Destructor:
		return n == nil
	case *decl.ConversionOperator:
		return n == nil
	case *decl.Method:
		return n == nil
	case *decl.FreeFunction:
		return n == nil
	case *decl.ClassTemplate:
		return n == nil
	default:
		return false
	}
}
