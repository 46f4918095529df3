package typeres

import (
	"reflscan/internal/decl"
	"strconv"
	"strings"
)

type printer struct {
	policy Policy
}

// print renders t around the declarator text built so far. Pointers,
// references, arrays and functions grow the declarator inside-out, the way a
// C++ declaration is read.
func (p printer) print(t *decl.Type, inner string) string {
	if t == nil {
		return inner
	}

	switch t.Kind {
	case decl.TypePointer:
		d := "*"
		if q := qualifiers(t); q != "" {
			d += q
			if inner != "" {
				d += " "
			}
		}
		return p.print(t.Elem, wrapDeclarator(t.Elem, d+inner))

	case decl.TypeLValueRef:
		return p.print(t.Elem, wrapDeclarator(t.Elem, "&"+inner))

	case decl.TypeRValueRef:
		return p.print(t.Elem, wrapDeclarator(t.Elem, "&&"+inner))

	case decl.TypeArray:
		bound := "[]"
		if t.Length >= 0 {
			bound = "[" + strconv.Itoa(t.Length) + "]"
		}
		return p.print(t.Elem, inner+bound)

	case decl.TypeFunction:
		params := make([]string, 0, len(t.Params))
		for _, param := range t.Params {
			params = append(params, p.print(param, ""))
		}
		return p.print(t.Result, inner+"("+strings.Join(params, ", ")+")")

	case decl.TypeLiteral:
		return p.literal(t)

	default:
		base := t.Name
		if len(t.Args) > 0 {
			base += p.args(t.Args)
		}
		if q := qualifiers(t); q != "" {
			base = q + " " + base
		}
		if inner == "" {
			return base
		}
		return base + " " + inner
	}
}

// args renders a template argument list, e.g. <int, true>.
func (p printer) args(args []*decl.Type) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, p.print(arg, ""))
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

func (p printer) literal(t *decl.Type) string {
	value := strings.TrimSpace(t.Value)
	if t.Name != "bool" || !p.policy.BoolAsWord {
		return value
	}
	switch strings.ToLower(value) {
	case "0", "false":
		return "false"
	default:
		return "true"
	}
}

// wrapDeclarator parenthesizes a pointer or reference declarator whose target
// binds tighter, as in int (*)[3] or void (&)(int).
func wrapDeclarator(elem *decl.Type, d string) string {
	if elem == nil {
		return d
	}
	if elem.Kind == decl.TypeArray || elem.Kind == decl.TypeFunction {
		return "(" + d + ")"
	}
	return d
}

func qualifiers(t *decl.Type) string {
	switch {
	case t.Const && t.Volatile:
		return "const volatile"
	case t.Const:
		return "const"
	case t.Volatile:
		return "volatile"
	default:
		return ""
	}
}
