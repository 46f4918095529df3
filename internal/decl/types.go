// # internal/decl/types.go
package decl

import "strings"

type Access int

const (
	AccessNone Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return ""
	}
}

// Hidden reports whether the access level keeps a declaration out of the
// reflected surface.
func (a Access) Hidden() bool {
	return a == AccessProtected || a == AccessPrivate
}

type Linkage int

const (
	LinkageNone Linkage = iota
	LinkageInternal
	LinkageExternal
)

type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Column == 0
}

type SourceRange struct {
	Begin Location
	End   Location
}

// Decl is a resolved declaration handed over by the front end. The set of
// implementations is closed; consumers dispatch with a type switch.
type Decl interface {
	DeclName() string
	DeclAccess() Access
	DeclLocation() Location
	DeclRange() SourceRange
	isDecl()
}

// Header carries the attributes every declaration kind shares.
type Header struct {
	Name     string
	Access   Access
	Location Location
	Range    SourceRange
}

func (h Header) DeclName() string       { return h.Name }
func (h Header) DeclAccess() Access     { return h.Access }
func (h Header) DeclLocation() Location { return h.Location }
func (h Header) DeclRange() SourceRange { return h.Range }

type Namespace struct {
	Header
	Anonymous bool
	Decls     []Decl
}

// Class is a struct, class or union. Specializations of a class template are
// Classes with TemplateArgs set.
type Class struct {
	Header
	Union         bool
	HasDefinition bool
	TemplateArgs  []*Type
	Bases         []Base
	Members       []Decl
}

type Base struct {
	Type  *Type
	Range SourceRange
}

type Field struct {
	Header
	Type *Type
}

type Param struct {
	Name  string
	Type  *Type
	Range SourceRange
}

type Signature struct {
	Result *Type
	Params []Param
}

type Constructor struct {
	Header
	Params []Param
}

type Destructor struct {
	Header
	Virtual bool
}

type ConversionOperator struct {
	Header
	Result *Type
	Const  bool
}

type Method struct {
	Header
	Signature
	Static    bool
	Virtual   bool
	Const     bool
	Volatile  bool
	Overrides []string // qualified names of the base methods this one overrides
}

type FreeFunction struct {
	Header
	Signature
	Linkage Linkage
}

// ClassTemplate groups the specializations the front end materialized for one
// class template. The primary template itself carries no reflectable surface.
type ClassTemplate struct {
	Header
	Specializations []*Class
}

func (*Namespace) isDecl()          {}
func (*Class) isDecl()              {}
func (*Field) isDecl()              {}
func (*Constructor) isDecl()        {}
func (*Destructor) isDecl()         {}
func (*ConversionOperator) isDecl() {}
func (*Method) isDecl()             {}
func (*FreeFunction) isDecl()       {}
func (*ClassTemplate) isDecl()      {}

type TypeKind int

const (
	TypeBuiltin TypeKind = iota
	TypeRecord
	TypeEnum
	TypeAlias
	TypePointer
	TypeLValueRef
	TypeRValueRef
	TypeArray
	TypeFunction
	TypeLiteral
)

var typeKindNames = map[TypeKind]string{
	TypeBuiltin:   "builtin",
	TypeRecord:    "record",
	TypeEnum:      "enum",
	TypeAlias:     "alias",
	TypePointer:   "pointer",
	TypeLValueRef: "lvalue_ref",
	TypeRValueRef: "rvalue_ref",
	TypeArray:     "array",
	TypeFunction:  "function",
	TypeLiteral:   "literal",
}

func (k TypeKind) String() string {
	if name, ok := typeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

func ParseTypeKind(value string) (TypeKind, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for kind, name := range typeKindNames {
		if name == value {
			return kind, true
		}
	}
	return 0, false
}

// Type is a type reference as resolved by the front end. Aliases keep their
// target in Elem so the resolver can strip them.
type Type struct {
	Kind     TypeKind
	Name     string // builtin, record, enum or alias name; type of a literal
	Const    bool
	Volatile bool
	Complete bool    // records and enums only
	Elem     *Type   // alias target, pointee, referee, array element
	Length   int     // array bound, negative when unknown
	Args     []*Type // template arguments of a record
	Result   *Type   // function result
	Params   []*Type // function parameters
	Value    string  // literal template argument
}

// IsVoid reports whether t is the builtin void type, ignoring cv-qualifiers.
func (t *Type) IsVoid() bool {
	return t != nil && t.Kind == TypeBuiltin && t.Name == "void"
}

// Unit is the front end's view of one compiled source unit.
type Unit struct {
	PrimaryFile  string
	Declarations []Decl
}

// Roots returns the top-level declarations physically located in the
// primary file, in lexical order.
func (u *Unit) Roots() []Decl {
	if u == nil {
		return nil
	}
	roots := make([]Decl, 0, len(u.Declarations))
	for _, d := range u.Declarations {
		if d == nil {
			continue
		}
		if d.DeclLocation().File == u.PrimaryFile {
			roots = append(roots, d)
		}
	}
	return roots
}
