package walker

import (
	"bytes"
	"reflscan/internal/decl"
	"reflscan/internal/engine/diagnostic"
	"reflscan/internal/engine/typeres"
	"reflscan/internal/output"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const file = "shapes.h"

func loc(line int) decl.Location {
	return decl.Location{File: file, Line: line, Column: 1}
}

func hdr(name string, line int) decl.Header {
	return decl.Header{
		Name:     name,
		Access:   decl.AccessPublic,
		Location: loc(line),
		Range:    decl.SourceRange{Begin: loc(line), End: loc(line)},
	}
}

func private(h decl.Header) decl.Header {
	h.Access = decl.AccessPrivate
	return h
}

func builtin(name string) *decl.Type {
	return &decl.Type{Kind: decl.TypeBuiltin, Name: name, Complete: true}
}

func record(name string, complete bool) *decl.Type {
	return &decl.Type{Kind: decl.TypeRecord, Name: name, Complete: complete}
}

func class(name string, line int, members ...decl.Decl) *decl.Class {
	return &decl.Class{Header: hdr(name, line), HasDefinition: true, Members: members}
}

func field(name string, line int, typ *decl.Type) *decl.Field {
	return &decl.Field{Header: hdr(name, line), Type: typ}
}

func method(name string, line int, result *decl.Type, params ...*decl.Type) *decl.Method {
	m := &decl.Method{Header: hdr(name, line)}
	m.Result = result
	for i, p := range params {
		m.Params = append(m.Params, decl.Param{Type: p, Range: decl.SourceRange{Begin: decl.Location{File: file, Line: line, Column: 10 + i}}})
	}
	return m
}

type harness struct {
	stream   *output.Stream
	reporter *diagnostic.Reporter
	diags    *bytes.Buffer
	walker   *Walker
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		stream: output.NewStream(output.DefaultIncludeHeader, file),
		diags:  &bytes.Buffer{},
	}
	h.reporter = diagnostic.NewReporter(h.diags)
	w, err := New(typeres.NewResolver(typeres.DefaultPolicy()), h.stream, h.reporter, opts)
	require.NoError(t, err)
	h.walker = w
	return h
}

func (h *harness) lines() []string {
	records := h.stream.Records()
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Line())
	}
	return out
}

func walkAll(t *testing.T, decls ...decl.Decl) *harness {
	t.Helper()
	h := newHarness(t, Options{})
	h.walker.WalkUnit(&decl.Unit{PrimaryFile: file, Declarations: decls})
	return h
}

func pointClass() *decl.Class {
	norm := method("norm", 6, builtin("double"))
	norm.Const = true
	return class("Point", 1,
		field("x", 3, builtin("int")),
		field("y", 4, builtin("int")),
		&decl.Constructor{Header: hdr("Point", 5)},
		norm,
	)
}

func TestPointClass(t *testing.T) {
	h := walkAll(t, pointClass())

	assert.Equal(t, []string{
		"BEGIN_CLASS(Point)",
		"ATTRIBUTE(x, int)",
		"ATTRIBUTE(y, int)",
		"DEFAULT_CONSTRUCTOR()",
		"CONST_METHOD(norm, double)",
		"END_CLASS",
	}, h.lines())
	assert.Empty(t, h.diags.String())
}

func TestFreeFunction(t *testing.T) {
	add := &decl.FreeFunction{Header: hdr("add", 1), Linkage: decl.LinkageExternal}
	add.Result = builtin("int")
	add.Params = []decl.Param{
		{Name: "a", Type: builtin("int")},
		{Name: "b", Type: builtin("int")},
	}
	static := &decl.FreeFunction{Header: hdr("helper", 2), Linkage: decl.LinkageInternal}
	static.Result = builtin("void")

	h := walkAll(t, add, static)
	assert.Equal(t, []string{"FUNCTION(add, int, int, int)"}, h.lines())
}

func TestAnonymousNamespaceIsSkipped(t *testing.T) {
	ns := &decl.Namespace{Header: hdr("", 1), Anonymous: true, Decls: []decl.Decl{pointClass()}}
	h := walkAll(t, ns)
	assert.Empty(t, h.lines())
}

func TestNamespaceQualifiesNames(t *testing.T) {
	ctor := &decl.Constructor{Header: hdr("Circle", 4), Params: []decl.Param{{Type: builtin("double")}}}
	inner := &decl.Namespace{Header: hdr("shapes", 2), Decls: []decl.Decl{class("Circle", 3, ctor)}}
	outer := &decl.Namespace{Header: hdr("geo", 1), Decls: []decl.Decl{inner, class("Tag", 8)}}

	h := walkAll(t, outer)
	assert.Equal(t, []string{
		"BEGIN_CLASS(geo::shapes::Circle)",
		"CONSTRUCTOR(double)",
		"END_CLASS",
		"BEGIN_CLASS(geo::Tag)",
		"END_CLASS",
	}, h.lines())
}

func TestNestedClassesFollowEnclosingBlock(t *testing.T) {
	leaf := class("Leaf", 4, field("v", 5, builtin("int")))
	inner := class("Inner", 3, leaf, field("i", 6, builtin("int")))
	outer := class("Outer", 1,
		field("a", 2, builtin("int")),
		inner,
		field("b", 7, builtin("int")),
		class("Second", 8),
	)

	h := walkAll(t, outer)
	assert.Equal(t, []string{
		"BEGIN_CLASS(Outer)",
		"ATTRIBUTE(a, int)",
		"ATTRIBUTE(b, int)",
		"END_CLASS",
		"BEGIN_CLASS(Outer::Inner)",
		"ATTRIBUTE(i, int)",
		"END_CLASS",
		"BEGIN_CLASS(Outer::Inner::Leaf)",
		"ATTRIBUTE(v, int)",
		"END_CLASS",
		"BEGIN_CLASS(Outer::Second)",
		"END_CLASS",
	}, h.lines())
}

func TestBasesAndOverrides(t *testing.T) {
	area := method("area", 3, builtin("double"))
	area.Virtual = true
	area.Const = true
	area.Overrides = []string{"Shape::area"}

	twice := method("twice", 4, builtin("int"), builtin("int"))
	twice.Static = true
	poke := method("poke", 5, builtin("void"))
	poke.Volatile = true
	peek := method("peek", 6, builtin("int"))
	peek.Const = true
	peek.Volatile = true

	square := class("Square", 1, area, twice, poke, peek,
		&decl.Destructor{Header: hdr("~Square", 7), Virtual: true},
		&decl.ConversionOperator{Header: hdr("operator bool", 8), Result: builtin("bool")},
	)
	square.Bases = []decl.Base{
		{Type: record("Shape", true)},
		{Type: &decl.Type{Kind: decl.TypeAlias, Name: "Tagged", Complete: true, Elem: record("Tag<int>", true)}},
	}

	h := walkAll(t, square)
	assert.Equal(t, []string{
		"BEGIN_CLASS(Square)",
		"SUPER_CLASS(Shape)",
		"SUPER_CLASS(Tag<int>)",
		"STATIC_METHOD(twice, int, int)",
		"VOLATILE_METHOD(poke, void)",
		"CONST_VOLATILE_METHOD(peek, int)",
		"END_CLASS",
	}, h.lines())
}

func TestIncompleteTypeRecovery(t *testing.T) {
	broken := field("impl", 3, record("Impl", false))
	broken.Range.Begin.Column = 5
	withBadParam := method("attach", 5, builtin("void"), record("Impl", false))

	widget := class("Widget", 1,
		field("id", 2, builtin("int")),
		broken,
		field("size", 4, builtin("int")),
		withBadParam,
		method("reset", 6, builtin("void")),
	)
	widget.Bases = []decl.Base{
		{Type: record("Fwd", false), Range: decl.SourceRange{Begin: loc(1)}},
		{Type: record("Base", true)},
	}

	h := walkAll(t, widget)
	assert.Equal(t, []string{
		"BEGIN_CLASS(Widget)",
		"SUPER_CLASS(Base)",
		"ATTRIBUTE(id, int)",
		"ATTRIBUTE(size, int)",
		"METHOD(reset, void)",
		"END_CLASS",
	}, h.lines())

	diags := h.reporter.Diagnostics()
	require.Len(t, diags, 3)
	assert.Equal(t, "shapes.h:1:1: warning: Incomplete type Fwd, meta data will not be emitted for Widget", diags[0].String())
	assert.Equal(t, "shapes.h:3:5: warning: Incomplete type Impl, meta data will not be emitted for impl", diags[1].String())
	assert.Equal(t, "attach", diags[2].Declaration)
	assert.Equal(t, 10, diags[2].Column)
}

func ctor(name string, line int, params ...*decl.Type) *decl.Constructor {
	c := &decl.Constructor{Header: hdr(name, line)}
	for i, p := range params {
		c.Params = append(c.Params, decl.Param{Type: p, Range: decl.SourceRange{Begin: decl.Location{File: file, Line: line, Column: 10 + i}}})
	}
	return c
}

func TestConstructorRecords(t *testing.T) {
	realT := &decl.Type{Kind: decl.TypeAlias, Name: "real_t", Elem: builtin("double"), Complete: true}
	sample := class("Sample", 1,
		ctor("Sample", 2),
		ctor("Sample", 3, builtin("int"), realT),
		ctor("Sample", 4, builtin("int"), record("Impl", false)),
		field("count", 5, builtin("int")),
	)

	h := walkAll(t, sample)
	assert.Equal(t, []string{
		"BEGIN_CLASS(Sample)",
		"DEFAULT_CONSTRUCTOR()",
		"CONSTRUCTOR(int, double)",
		"ATTRIBUTE(count, int)",
		"END_CLASS",
	}, h.lines())

	diags := h.reporter.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "shapes.h:4:11: warning: Incomplete type Impl, meta data will not be emitted for Sample", diags[0].String())
}

func TestUnnamedRecordsAndFieldsAreSkipped(t *testing.T) {
	anonStruct := class("", 2, field("a", 3, builtin("int")))
	padding := field("", 5, builtin("int"))
	anonUnion := class("", 6, field("b", 7, builtin("int")))
	anonUnion.Union = true

	outer := class("Outer", 1, anonStruct, field("x", 4, builtin("int")), padding, anonUnion)
	add := &decl.FreeFunction{Header: hdr("add", 9), Linkage: decl.LinkageExternal}
	add.Result = builtin("int")
	add.Params = []decl.Param{{Type: builtin("int")}, {Type: builtin("int")}}

	h := walkAll(t, outer, class("", 8), add)
	assert.Equal(t, []string{
		"BEGIN_CLASS(Outer)",
		"ATTRIBUTE(x, int)",
		"END_CLASS",
		"FUNCTION(add, int, int, int)",
	}, h.lines())
	assert.Empty(t, h.diags.String())
}

func TestHiddenAccessIsSkipped(t *testing.T) {
	secret := field("secret", 3, builtin("int"))
	secret.Header = private(secret.Header)
	helper := method("helper", 4, builtin("void"))
	helper.Access = decl.AccessProtected
	hiddenNested := class("Hidden", 5, field("z", 6, builtin("int")))
	hiddenNested.Access = decl.AccessPrivate

	h := walkAll(t, class("Box", 1, field("open", 2, builtin("bool")), secret, helper, hiddenNested))
	assert.Equal(t, []string{
		"BEGIN_CLASS(Box)",
		"ATTRIBUTE(open, bool)",
		"END_CLASS",
	}, h.lines())
}

func TestOutOfClassDefinitionsAndForwardDeclarations(t *testing.T) {
	def := method("norm", 10, builtin("double"))
	fwd := &decl.Class{Header: hdr("Later", 11)}
	union := class("Bits", 12, field("raw", 13, builtin("int")))
	union.Union = true

	h := walkAll(t, def, fwd, union)
	assert.Empty(t, h.lines())
	assert.Empty(t, h.reporter.Diagnostics())
}

func TestClassTemplateSpecializations(t *testing.T) {
	intBox := class("Box", 1, field("value", 2, builtin("int")))
	intBox.TemplateArgs = []*decl.Type{builtin("int"), {Kind: decl.TypeLiteral, Name: "bool", Value: "1"}}
	charBox := class("Box", 1, field("value", 2, builtin("char")))
	charBox.TemplateArgs = []*decl.Type{builtin("char"), {Kind: decl.TypeLiteral, Name: "bool", Value: "0"}}

	tmpl := &decl.ClassTemplate{Header: hdr("Box", 1), Specializations: []*decl.Class{intBox, charBox}}
	empty := &decl.ClassTemplate{Header: hdr("Unused", 5)}

	h := walkAll(t, &decl.Namespace{Header: hdr("util", 1), Decls: []decl.Decl{tmpl, empty}})
	assert.Equal(t, []string{
		"BEGIN_CLASS(util::Box<int, true>)",
		"ATTRIBUTE(value, int)",
		"END_CLASS",
		"BEGIN_CLASS(util::Box<char, false>)",
		"ATTRIBUTE(value, char)",
		"END_CLASS",
	}, h.lines())
}

func TestRootsOutsidePrimaryFileAreIgnored(t *testing.T) {
	foreign := pointClass()
	foreign.Location.File = "other.h"

	h := walkAll(t, foreign, class("Local", 2))
	assert.Equal(t, []string{"BEGIN_CLASS(Local)", "END_CLASS"}, h.lines())
	assert.Equal(t, []string{file}, h.stream.Sources())
}

func TestNilDeclarations(t *testing.T) {
	var nilClass *decl.Class
	h := walkAll(t, class("Holder", 1, nil, nilClass, field("x", 2, builtin("int"))))
	assert.Equal(t, []string{"BEGIN_CLASS(Holder)", "ATTRIBUTE(x, int)", "END_CLASS"}, h.lines())

	h.walker.Walk(nil)
	h.walker.Walk(nilClass)
	assert.Len(t, h.lines(), 3)
}

func TestExcludePatterns(t *testing.T) {
	ns := &decl.Namespace{Header: hdr("detail", 1), Decls: []decl.Decl{class("Impl", 2)}}
	h := newHarness(t, Options{Exclude: []string{"detail", "*::Internal", " "}})
	h.walker.WalkUnit(&decl.Unit{PrimaryFile: file, Declarations: []decl.Decl{
		ns,
		&decl.Namespace{Header: hdr("api", 3), Decls: []decl.Decl{class("Internal", 4), class("Public", 5)}},
	}})
	assert.Equal(t, []string{"BEGIN_CLASS(api::Public)", "END_CLASS"}, h.lines())

	_, err := New(typeres.NewResolver(typeres.DefaultPolicy()), h.stream, h.reporter, Options{Exclude: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestIdempotence(t *testing.T) {
	build := func() string {
		h := walkAll(t, pointClass(), &decl.Namespace{Header: hdr("geo", 9), Decls: []decl.Decl{pointClass()}})
		text, err := h.stream.Finalize()
		require.NoError(t, err)
		return text
	}
	assert.Equal(t, build(), build())
}
