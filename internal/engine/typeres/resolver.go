// Package typeres canonicalizes resolved type references and spells them
// under a fixed printing policy. Downstream consumers match types by literal
// string equality, so every spelling produced here must be stable.
package typeres

import (
	"fmt"
	"reflscan/internal/core/errors"
	"reflscan/internal/decl"
)

// Policy controls the few printing choices that are configurable.
type Policy struct {
	// BoolAsWord spells bool literals as true/false instead of 1/0.
	BoolAsWord bool
}

func DefaultPolicy() Policy {
	return Policy{BoolAsWord: true}
}

// Descriptor is a canonical type together with its printable spelling. A
// Descriptor is never built for an incomplete non-void type.
type Descriptor struct {
	Type     *decl.Type
	Spelling string
}

// IncompleteTypeError reports a type that is not fully defined at its point
// of use. Spelling is the type as written, aliases included.
type IncompleteTypeError struct {
	Type     *decl.Type
	Spelling string
	Range    decl.SourceRange
}

func (e *IncompleteTypeError) Error() string {
	return fmt.Sprintf("incomplete type %s", e.Spelling)
}

func (e *IncompleteTypeError) Unwrap() error {
	return errors.AddContext(errors.New(errors.CodeIncompleteType, "incomplete type"), errors.CtxType, e.Spelling)
}

type Resolver struct {
	printer printer
}

func NewResolver(policy Policy) *Resolver {
	return &Resolver{printer: printer{policy: policy}}
}

// Resolve canonicalizes t and checks it for completeness. rng locates the
// reference for diagnostics.
func (r *Resolver) Resolve(t *decl.Type, rng decl.SourceRange) (Descriptor, error) {
	if t == nil {
		return Descriptor{}, errors.New(errors.CodeMalformedInput, "missing type reference")
	}
	c := Canonical(t)
	if !IsComplete(c) && !c.IsVoid() {
		return Descriptor{}, &IncompleteTypeError{Type: t, Spelling: r.Spell(t), Range: rng}
	}
	return Descriptor{Type: c, Spelling: r.printer.print(c, "")}, nil
}

// Spell prints t exactly as given, without canonicalizing it.
func (r *Resolver) Spell(t *decl.Type) string {
	if t == nil {
		return ""
	}
	return r.printer.print(t, "")
}

// SpellCanonical prints the canonical form of t without a completeness check.
// Template arguments of specialization names go through here.
func (r *Resolver) SpellCanonical(t *decl.Type) string {
	return r.Spell(Canonical(t))
}

// Canonical returns a copy of t with every alias replaced by its target.
// Qualifiers written on an alias are merged onto the target.
func Canonical(t *decl.Type) *decl.Type {
	if t == nil {
		return nil
	}
	if t.Kind == decl.TypeAlias {
		target := Canonical(t.Elem)
		if target == nil {
			return nil
		}
		return withQualifiers(target, t.Const, t.Volatile)
	}

	c := *t
	c.Elem = Canonical(t.Elem)
	c.Result = Canonical(t.Result)
	c.Args = canonicalList(t.Args)
	c.Params = canonicalList(t.Params)
	return &c
}

func canonicalList(types []*decl.Type) []*decl.Type {
	if len(types) == 0 {
		return nil
	}
	out := make([]*decl.Type, len(types))
	for i, t := range types {
		out[i] = Canonical(t)
	}
	return out
}

// withQualifiers applies cv-qualifiers to an already canonical type. They are
// dropped on references and pushed down to the element of arrays.
func withQualifiers(t *decl.Type, isConst, isVolatile bool) *decl.Type {
	if !isConst && !isVolatile {
		return t
	}
	switch t.Kind {
	case decl.TypeLValueRef, decl.TypeRValueRef:
		return t
	case decl.TypeArray:
		c := *t
		c.Elem = withQualifiers(t.Elem, isConst, isVolatile)
		return &c
	default:
		c := *t
		c.Const = c.Const || isConst
		c.Volatile = c.Volatile || isVolatile
		return &c
	}
}

// IsComplete reports whether a canonical type is fully defined. void is
// incomplete; callers decide whether that is acceptable.
func IsComplete(t *decl.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case decl.TypeBuiltin:
		return t.Name != "void"
	case decl.TypeRecord, decl.TypeEnum:
		return t.Complete
	case decl.TypeArray:
		return t.Length >= 0 && IsComplete(t.Elem)
	case decl.TypeAlias:
		return IsComplete(Canonical(t))
	default:
		return true
	}
}
