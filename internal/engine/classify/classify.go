// Package classify decides which record, if any, a function-like declaration
// contributes to the descriptor stream.
package classify

import "reflscan/internal/decl"

type Role int

const (
	RoleSuppressed Role = iota
	RoleDefaultConstructor
	RoleConstructor
	RoleStaticMethod
	RoleConstVolatileMethod
	RoleConstMethod
	RoleVolatileMethod
	RoleMethod
	RoleFunction
)

var roleNames = [...]string{
	RoleSuppressed:          "suppressed",
	RoleDefaultConstructor:  "default_constructor",
	RoleConstructor:         "constructor",
	RoleStaticMethod:        "static_method",
	RoleConstVolatileMethod: "const_volatile_method",
	RoleConstMethod:         "const_method",
	RoleVolatileMethod:      "volatile_method",
	RoleMethod:              "method",
	RoleFunction:            "function",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "unknown"
}

// Emits reports whether the role produces a record.
func (r Role) Emits() bool {
	return r != RoleSuppressed
}

// Reason explains a suppression. Suppressions are deliberate, not errors.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonNotFunction Reason = "not_function"
	ReasonOutOfClass  Reason = "out_of_class_definition"
	ReasonConversion  Reason = "conversion_operator"
	ReasonDestructor  Reason = "destructor"
	ReasonOverride    Reason = "override"
	ReasonLinkage     Reason = "no_external_linkage"
	ReasonInClass     Reason = "function_in_class"
)

type Result struct {
	Role   Role
	Reason Reason
}

func suppressed(reason Reason) Result {
	return Result{Role: RoleSuppressed, Reason: reason}
}

// Classify picks the role of a function-like declaration. inClass tells
// whether the walker is currently inside a class body; member functions seen
// outside one are out-of-class definitions of something already reflected.
func Classify(d decl.Decl, inClass bool) Result {
	switch fn := d.(type) {
	case *decl.Constructor:
		if !inClass {
			return suppressed(ReasonOutOfClass)
		}
		if len(fn.Params) == 0 {
			return Result{Role: RoleDefaultConstructor}
		}
		return Result{Role: RoleConstructor}

	case *decl.Destructor:
		if !inClass {
			return suppressed(ReasonOutOfClass)
		}
		return suppressed(ReasonDestructor)

	case *decl.ConversionOperator:
		if !inClass {
			return suppressed(ReasonOutOfClass)
		}
		return suppressed(ReasonConversion)

	case *decl.Method:
		if !inClass {
			return suppressed(ReasonOutOfClass)
		}
		// An override is already described by the declaration it overrides.
		if fn.Virtual && len(fn.Overrides) > 0 {
			return suppressed(ReasonOverride)
		}
		return Result{Role: methodRole(fn)}

	case *decl.FreeFunction:
		if inClass {
			return suppressed(ReasonInClass)
		}
		if fn.Linkage != decl.LinkageExternal {
			return suppressed(ReasonLinkage)
		}
		return Result{Role: RoleFunction}

	default:
		return suppressed(ReasonNotFunction)
	}
}

func methodRole(m *decl.Method) Role {
	switch {
	case m.Static:
		return RoleStaticMethod
	case m.Const && m.Volatile:
		return RoleConstVolatileMethod
	case m.Const:
		return RoleConstMethod
	case m.Volatile:
		return RoleVolatileMethod
	default:
		return RoleMethod
	}
}
