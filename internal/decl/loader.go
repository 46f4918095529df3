package decl

import (
	"fmt"
	"os"
	"reflscan/internal/core/errors"
	"strings"

	"gopkg.in/yaml.v3"
)

type rawUnit struct {
	PrimaryFile  string    `yaml:"primary_file"`
	Declarations []rawDecl `yaml:"declarations"`
}

type rawLocation struct {
	File   string `yaml:"file"`
	Line   int    `yaml:"line"`
	Column int    `yaml:"column"`
}

type rawRange struct {
	Begin rawLocation `yaml:"begin"`
	End   rawLocation `yaml:"end"`
}

type rawDecl struct {
	Kind            string      `yaml:"kind"`
	Name            string      `yaml:"name"`
	Access          string      `yaml:"access"`
	Location        rawLocation `yaml:"location"`
	Range           *rawRange   `yaml:"range"`
	Anonymous       bool        `yaml:"anonymous"`
	HasDefinition   *bool       `yaml:"has_definition"`
	TemplateArgs    []rawType   `yaml:"template_args"`
	Bases           []rawBase   `yaml:"bases"`
	Members         []rawDecl   `yaml:"members"`
	Type            *rawType    `yaml:"type"`
	Params          []rawParam  `yaml:"params"`
	Result          *rawType    `yaml:"result"`
	Static          bool        `yaml:"static"`
	Virtual         bool        `yaml:"virtual"`
	Const           bool        `yaml:"const"`
	Volatile        bool        `yaml:"volatile"`
	Overrides       []string    `yaml:"overrides"`
	Linkage         string      `yaml:"linkage"`
	Specializations []rawDecl   `yaml:"specializations"`
}

type rawBase struct {
	Type  *rawType  `yaml:"type"`
	Range *rawRange `yaml:"range"`
}

type rawParam struct {
	Name  string    `yaml:"name"`
	Type  *rawType  `yaml:"type"`
	Range *rawRange `yaml:"range"`
}

type rawType struct {
	Kind     string    `yaml:"kind"`
	Name     string    `yaml:"name"`
	Const    bool      `yaml:"const"`
	Volatile bool      `yaml:"volatile"`
	Complete *bool     `yaml:"complete"`
	Elem     *rawType  `yaml:"elem"`
	Length   *int      `yaml:"length"`
	Args     []rawType `yaml:"args"`
	Result   *rawType  `yaml:"result"`
	Params   []rawType `yaml:"params"`
	Value    string    `yaml:"value"`
}

// Load reads and decodes a front-end dump from disk.
func Load(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read declaration dump"), errors.CtxPath, path)
	}
	return Decode(data)
}

// Decode converts a YAML or JSON dump into a validated Unit. Any structural
// problem is reported as a MALFORMED_INPUT error before a walk can start.
func Decode(data []byte) (*Unit, error) {
	var raw rawUnit
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedInput, "decode declaration dump")
	}

	primary := strings.TrimSpace(raw.PrimaryFile)
	if primary == "" {
		return nil, errors.New(errors.CodeMalformedInput, "primary_file is required")
	}

	unit := &Unit{PrimaryFile: primary}
	for i := range raw.Declarations {
		path := fmt.Sprintf("declarations[%d]", i)
		d, err := convertDecl(&raw.Declarations[i], path, primary)
		if err != nil {
			return nil, err
		}
		unit.Declarations = append(unit.Declarations, d)
	}
	return unit, nil
}

func malformed(path, msg string) error {
	return errors.AddContext(errors.New(errors.CodeMalformedInput, msg), errors.CtxPath, path)
}

// malformedSymbol is malformed for a declaration whose name is known.
func malformedSymbol(path, name, msg string) error {
	err := malformed(path, msg)
	if name != "" {
		err = errors.AddContext(err, errors.CtxSymbol, name)
	}
	return err
}

func convertDecl(r *rawDecl, path, parentFile string) (Decl, error) {
	loc := Location{File: r.Location.File, Line: r.Location.Line, Column: r.Location.Column}
	if loc.File == "" {
		loc.File = parentFile
	}
	access, err := parseAccess(r.Access)
	if err != nil {
		return nil, malformedSymbol(path, strings.TrimSpace(r.Name), err.Error())
	}
	h := Header{
		Name:     strings.TrimSpace(r.Name),
		Access:   access,
		Location: loc,
		Range:    convertRange(r.Range, loc),
	}

	switch strings.ToLower(strings.TrimSpace(r.Kind)) {
	case "namespace":
		if h.Name == "" && !r.Anonymous {
			return nil, malformed(path, "namespace without a name must be marked anonymous")
		}
		ns := &Namespace{Header: h, Anonymous: r.Anonymous}
		children, err := convertDecls(r.Members, path+".members", loc.File)
		if err != nil {
			return nil, err
		}
		ns.Decls = children
		return ns, nil

	case "class", "struct", "union":
		return convertClass(r, h, path)

	case "field":
		// Unnamed fields (bit-field padding) are kept; the walker skips them.
		t, err := convertType(r.Type, path+".type")
		if err != nil {
			return nil, err
		}
		return &Field{Header: h, Type: t}, nil

	case "constructor":
		params, err := convertParams(r.Params, path, h.Range)
		if err != nil {
			return nil, err
		}
		return &Constructor{Header: h, Params: params}, nil

	case "destructor":
		return &Destructor{Header: h, Virtual: r.Virtual}, nil

	case "conversion":
		result, err := convertType(r.Result, path+".result")
		if err != nil {
			return nil, err
		}
		return &ConversionOperator{Header: h, Result: result, Const: r.Const}, nil

	case "method":
		sig, err := convertSignature(r, h, path)
		if err != nil {
			return nil, err
		}
		return &Method{
			Header:    h,
			Signature: sig,
			Static:    r.Static,
			Virtual:   r.Virtual,
			Const:     r.Const,
			Volatile:  r.Volatile,
			Overrides: r.Overrides,
		}, nil

	case "function":
		sig, err := convertSignature(r, h, path)
		if err != nil {
			return nil, err
		}
		linkage, err := parseLinkage(r.Linkage)
		if err != nil {
			return nil, malformedSymbol(path, h.Name, err.Error())
		}
		return &FreeFunction{Header: h, Signature: sig, Linkage: linkage}, nil

	case "class_template":
		if h.Name == "" {
			return nil, malformed(path, "class_template requires a name")
		}
		tmpl := &ClassTemplate{Header: h}
		for i := range r.Specializations {
			specPath := fmt.Sprintf("%s.specializations[%d]", path, i)
			spec := &r.Specializations[i]
			if spec.Name == "" {
				spec.Name = h.Name
			}
			d, err := convertDecl(spec, specPath, loc.File)
			if err != nil {
				return nil, err
			}
			cls, ok := d.(*Class)
			if !ok {
				return nil, malformedSymbol(specPath, h.Name, "specialization must be a class")
			}
			tmpl.Specializations = append(tmpl.Specializations, cls)
		}
		return tmpl, nil

	case "":
		return nil, malformed(path, "declaration kind is required")
	default:
		return nil, malformed(path, fmt.Sprintf("unknown declaration kind %q", r.Kind))
	}
}

func convertDecls(raws []rawDecl, path, parentFile string) ([]Decl, error) {
	out := make([]Decl, 0, len(raws))
	for i := range raws {
		d, err := convertDecl(&raws[i], fmt.Sprintf("%s[%d]", path, i), parentFile)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// convertClass accepts unnamed records (anonymous structs and unions); the
// walker skips them.
func convertClass(r *rawDecl, h Header, path string) (Decl, error) {
	cls := &Class{
		Header:        h,
		Union:         strings.EqualFold(strings.TrimSpace(r.Kind), "union"),
		HasDefinition: r.HasDefinition == nil || *r.HasDefinition,
	}
	for i := range r.TemplateArgs {
		arg, err := convertType(&r.TemplateArgs[i], fmt.Sprintf("%s.template_args[%d]", path, i))
		if err != nil {
			return nil, err
		}
		cls.TemplateArgs = append(cls.TemplateArgs, arg)
	}
	for i, b := range r.Bases {
		basePath := fmt.Sprintf("%s.bases[%d]", path, i)
		t, err := convertType(b.Type, basePath+".type")
		if err != nil {
			return nil, err
		}
		cls.Bases = append(cls.Bases, Base{Type: t, Range: convertRange(b.Range, h.Location)})
	}
	members, err := convertDecls(r.Members, path+".members", h.Location.File)
	if err != nil {
		return nil, err
	}
	cls.Members = members
	return cls, nil
}

func convertSignature(r *rawDecl, h Header, path string) (Signature, error) {
	if h.Name == "" {
		return Signature{}, malformed(path, "function requires a name")
	}
	result, err := convertType(r.Result, path+".result")
	if err != nil {
		return Signature{}, err
	}
	params, err := convertParams(r.Params, path, h.Range)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Result: result, Params: params}, nil
}

func convertParams(raws []rawParam, path string, fallback SourceRange) ([]Param, error) {
	params := make([]Param, 0, len(raws))
	for i, p := range raws {
		paramPath := fmt.Sprintf("%s.params[%d]", path, i)
		t, err := convertType(p.Type, paramPath+".type")
		if err != nil {
			return nil, err
		}
		rng := fallback
		if p.Range != nil {
			rng = convertRange(p.Range, fallback.Begin)
		}
		params = append(params, Param{Name: p.Name, Type: t, Range: rng})
	}
	return params, nil
}

func convertRange(r *rawRange, fallback Location) SourceRange {
	if r == nil {
		return SourceRange{Begin: fallback, End: fallback}
	}
	rng := SourceRange{
		Begin: Location{File: r.Begin.File, Line: r.Begin.Line, Column: r.Begin.Column},
		End:   Location{File: r.End.File, Line: r.End.Line, Column: r.End.Column},
	}
	if rng.Begin.File == "" {
		rng.Begin.File = fallback.File
	}
	if rng.End.File == "" {
		rng.End.File = rng.Begin.File
	}
	return rng
}

func convertType(r *rawType, path string) (*Type, error) {
	if r == nil {
		return nil, malformed(path, "type is required")
	}
	kind, ok := ParseTypeKind(r.Kind)
	if !ok {
		return nil, malformed(path, fmt.Sprintf("unknown type kind %q", r.Kind))
	}
	t := &Type{
		Kind:     kind,
		Name:     strings.TrimSpace(r.Name),
		Const:    r.Const,
		Volatile: r.Volatile,
		Complete: r.Complete == nil || *r.Complete,
		Length:   -1,
		Value:    r.Value,
	}
	if r.Length != nil {
		t.Length = *r.Length
	}

	switch kind {
	case TypeBuiltin, TypeRecord, TypeEnum, TypeAlias:
		if t.Name == "" {
			return nil, malformed(path, kind.String()+" type requires a name")
		}
	case TypeLiteral:
		if t.Name == "" || strings.TrimSpace(t.Value) == "" {
			return nil, malformed(path, "literal requires a type name and a value")
		}
	}

	switch kind {
	case TypeAlias, TypePointer, TypeLValueRef, TypeRValueRef, TypeArray:
		elem, err := convertType(r.Elem, path+".elem")
		if err != nil {
			return nil, err
		}
		t.Elem = elem
	case TypeFunction:
		result, err := convertType(r.Result, path+".result")
		if err != nil {
			return nil, err
		}
		t.Result = result
		for i := range r.Params {
			p, err := convertType(&r.Params[i], fmt.Sprintf("%s.params[%d]", path, i))
			if err != nil {
				return nil, err
			}
			t.Params = append(t.Params, p)
		}
	}

	for i := range r.Args {
		arg, err := convertType(&r.Args[i], fmt.Sprintf("%s.args[%d]", path, i))
		if err != nil {
			return nil, err
		}
		t.Args = append(t.Args, arg)
	}
	return t, nil
}

func parseAccess(value string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return AccessNone, nil
	case "public":
		return AccessPublic, nil
	case "protected":
		return AccessProtected, nil
	case "private":
		return AccessPrivate, nil
	default:
		return AccessNone, fmt.Errorf("unknown access level %q", value)
	}
}

func parseLinkage(value string) (Linkage, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return LinkageNone, nil
	case "internal":
		return LinkageInternal, nil
	case "external":
		return LinkageExternal, nil
	default:
		return LinkageNone, fmt.Errorf("unknown linkage %q", value)
	}
}
