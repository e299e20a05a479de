// Package composer turns a blueprint syntax tree into a Definition.
//
// Composition is two-pass: every model and member name is declared first,
// then queries, computeds and hooks are resolved on demand in dependency
// order (a member being resolved that is reached again is a cycle).
// Composition fails fast on the first error.
package composer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/strutil"
	"github.com/gauditech/gaudi-sub004/internal/validate"
)

// Names of the models added by the authenticator block.
const (
	AuthUserModel        = "AuthUser"
	AccessTokenModel     = "AuthUserAccessToken"
	AuthVar              = "@auth"
	RequestAuthTokenVar  = "@requestAuthToken"
	DefaultRuntimeName   = "default"
	DefaultAuthMethod    = "basic"
	defaultRuntimeSource = "."
)

type memberState int

const (
	stateDeclared memberState = iota
	stateResolving
	stateResolved
)

// composer holds the state of one composition.
type composer struct {
	doc *ast.Document
	def *definition.Definition

	models map[string]*modelEntry
	// state of lazily resolved members keyed by refKey
	state map[string]memberState

	defaultRuntime string
}

type modelEntry struct {
	node *ast.Model
	def  *definition.ModelDef
}

// Compose builds the Definition of doc.
func Compose(doc *ast.Document) (*definition.Definition, error) {
	c := &composer{
		doc: doc,
		def: &definition.Definition{
			Models:     []*definition.ModelDef{},
			APIs:       []*definition.APIDef{},
			Populators: []*definition.PopulatorDef{},
			Runtimes:   []*definition.RuntimeDef{},
			Generators: []*definition.GeneratorDef{},
		},
		models: make(map[string]*modelEntry),
		state:  make(map[string]memberState),
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"authenticator", c.composeAuthenticator},
		{"models", c.declareModels},
		{"relations", c.resolveRelations},
		{"runtimes", c.composeRuntimes},
		{"members", c.resolveMembers},
		{"generators", c.composeGenerators},
		{"apis", c.composeAPIs},
		{"populators", c.composePopulators},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return nil, err
		}
		slog.Debug("composer step done", "step", step.name)
	}
	return c.def, nil
}

// -----------------------------------------------------------------------------
// Models
// -----------------------------------------------------------------------------

func (c *composer) declareModels() error {
	for _, m := range c.doc.Models {
		if err := c.declareModel(m); err != nil {
			return err
		}
	}
	return nil
}

func (c *composer) declareModel(m *ast.Model) error {
	if err := validate.ModelName(m.Name); err != nil {
		return at(err, m.Pos)
	}
	if _, dup := c.models[m.Name]; dup {
		return errorAt(alerr.ErrDuplicateName, m.Pos, "model %s is declared twice", m.Name)
	}
	md := &definition.ModelDef{
		RefKey:     m.Name,
		Name:       m.Name,
		DBName:     strutil.TableName(m.Name),
		Fields:     []*definition.FieldDef{},
		References: []*definition.ReferenceDef{},
		Relations:  []*definition.RelationDef{},
		Queries:    []*definition.QueryDef{},
		Computeds:  []*definition.ComputedDef{},
		Hooks:      []*definition.ModelHookDef{},
	}
	warnReserved("model", m.Name, md.DBName)
	c.models[m.Name] = &modelEntry{node: m, def: md}
	c.def.Models = append(c.def.Models, md)

	names := map[string]ast.Pos{}
	declare := func(name string, pos ast.Pos) error {
		if err := validate.MemberName(name); err != nil {
			return at(err, pos).WithModel(m.Name)
		}
		if _, dup := names[name]; dup {
			return errorAt(alerr.ErrDuplicateName, pos, "%s.%s is declared twice", m.Name, name).WithModel(m.Name)
		}
		names[name] = pos
		return nil
	}

	hasID := false
	for _, f := range m.Fields {
		if f.Name == "id" {
			hasID = true
		}
	}
	if !hasID {
		md.Fields = append(md.Fields, idField(md))
		names["id"] = m.Pos
	}

	for _, f := range m.Fields {
		if err := declare(f.Name, f.Pos); err != nil {
			return err
		}
		fd, err := c.composeField(md, f)
		if err != nil {
			return err
		}
		md.Fields = append(md.Fields, fd)
	}

	for _, r := range m.References {
		if err := declare(r.Name, r.Pos); err != nil {
			return err
		}
		fieldName := strutil.FKColumn(r.Name)
		if err := declare(fieldName, r.Pos); err != nil {
			return err
		}
		switch r.OnDelete {
		case definition.OnDeleteNone, definition.OnDeleteCascade, definition.OnDeleteSetNull:
		default:
			return errorAt(alerr.ErrBlueprintInvalid, r.Pos, "unknown onDelete policy %q", r.OnDelete).
				WithHelp("use cascade or setNull")
		}
		if r.OnDelete == definition.OnDeleteSetNull && !r.Nullable {
			return errorAt(alerr.ErrBlueprintInvalid, r.Pos, "reference %s.%s uses setNull but is not nullable", m.Name, r.Name)
		}
		fd := &definition.FieldDef{
			RefKey:      m.Name + "." + fieldName,
			ModelRefKey: m.Name,
			Name:        fieldName,
			DBName:      strutil.ColumnName(fieldName),
			Type:        definition.TypeInteger,
			Unique:      r.Unique,
			Nullable:    r.Nullable,
			Validators:  []*definition.ValidatorDef{},
		}
		md.Fields = append(md.Fields, fd)
		md.References = append(md.References, &definition.ReferenceDef{
			RefKey:        m.Name + "." + r.Name,
			ModelRefKey:   m.Name,
			Name:          r.Name,
			FieldRefKey:   fd.RefKey,
			ToModelRefKey: r.To,
			Nullable:      r.Nullable,
			Unique:        r.Unique,
			OnDelete:      r.OnDelete,
		})
	}

	for _, r := range m.Relations {
		if err := declare(r.Name, r.Pos); err != nil {
			return err
		}
		md.Relations = append(md.Relations, &definition.RelationDef{
			RefKey:      m.Name + "." + r.Name,
			ModelRefKey: m.Name,
			Name:        r.Name,
		})
	}
	for _, q := range m.Queries {
		if err := declare(q.Name, q.Pos); err != nil {
			return err
		}
		md.Queries = append(md.Queries, &definition.QueryDef{
			RefKey:      m.Name + "." + q.Name,
			Name:        q.Name,
			ModelRefKey: m.Name,
		})
	}
	for _, cp := range m.Computeds {
		if err := declare(cp.Name, cp.Pos); err != nil {
			return err
		}
		md.Computeds = append(md.Computeds, &definition.ComputedDef{
			RefKey:      m.Name + "." + cp.Name,
			ModelRefKey: m.Name,
			Name:        cp.Name,
		})
	}
	for _, h := range m.Hooks {
		if err := declare(h.Name, h.Pos); err != nil {
			return err
		}
		md.Hooks = append(md.Hooks, &definition.ModelHookDef{
			RefKey:      m.Name + "." + h.Name,
			ModelRefKey: m.Name,
			Name:        h.Name,
		})
	}
	return nil
}

func idField(md *definition.ModelDef) *definition.FieldDef {
	return &definition.FieldDef{
		RefKey:      md.Name + ".id",
		ModelRefKey: md.Name,
		Name:        "id",
		DBName:      "id",
		Type:        definition.TypeInteger,
		Primary:     true,
		Unique:      true,
		Validators:  []*definition.ValidatorDef{},
	}
}

func (c *composer) composeField(md *definition.ModelDef, f *ast.Field) (*definition.FieldDef, error) {
	typ := definition.ScalarType(f.Type)
	if !typ.Valid() {
		return nil, errorAt(alerr.ErrBlueprintInvalid, f.Pos, "field %s.%s has unknown type %q", md.Name, f.Name, f.Type).
			WithHelp(alerr.SuggestSimilar(f.Type, []string{"integer", "float", "string", "boolean"}))
	}
	fd := &definition.FieldDef{
		RefKey:      md.Name + "." + f.Name,
		ModelRefKey: md.Name,
		Name:        f.Name,
		DBName:      strutil.ColumnName(f.Name),
		Type:        typ,
		Unique:      f.Unique,
		Nullable:    f.Nullable,
		Validators:  []*definition.ValidatorDef{},
	}
	if f.Name == "id" {
		if typ != definition.TypeInteger || f.Nullable {
			return nil, errorAt(alerr.ErrBlueprintInvalid, f.Pos, "field %s.id must be a non-nullable integer", md.Name)
		}
		fd.Primary, fd.Unique = true, true
	}
	warnReserved("field", md.Name+"."+f.Name, fd.DBName)

	if f.Default != nil {
		lit := literalExpr(f.Default)
		if lit.Type == definition.TypeNull {
			if !f.Nullable {
				return nil, errorAt(alerr.ErrTypeMismatch, f.Default.Pos, "field %s.%s is not nullable but defaults to null", md.Name, f.Name)
			}
		} else if !assignable(typ, lit.Type) {
			return nil, errorAt(alerr.ErrTypeMismatch, f.Default.Pos, "default of %s.%s must be %s, got %s", md.Name, f.Name, typ, lit.Type)
		}
		if typ == definition.TypeFloat && lit.Type == definition.TypeInteger {
			lit = &definition.LiteralExpr{Type: definition.TypeFloat, Value: float64(lit.Value.(int64))}
		}
		fd.Default = lit
	}

	for _, v := range f.Validators {
		vd, err := c.composeValidator(fd, v)
		if err != nil {
			return nil, err
		}
		fd.Validators = append(fd.Validators, vd)
	}
	return fd, nil
}

// builtin validators and the field types they apply to.
var builtinValidators = map[string]struct {
	types []definition.ScalarType
	arity int // -1 for one or more
}{
	"min":       {[]definition.ScalarType{definition.TypeInteger, definition.TypeFloat}, 1},
	"max":       {[]definition.ScalarType{definition.TypeInteger, definition.TypeFloat}, 1},
	"minLength": {[]definition.ScalarType{definition.TypeString}, 1},
	"maxLength": {[]definition.ScalarType{definition.TypeString}, 1},
	"isEmail":   {[]definition.ScalarType{definition.TypeString}, 0},
	"isIn":      {[]definition.ScalarType{definition.TypeString, definition.TypeInteger, definition.TypeFloat}, -1},
}

func (c *composer) composeValidator(fd *definition.FieldDef, v *ast.Validator) (*definition.ValidatorDef, error) {
	if v.Hook != nil {
		code, err := c.hookCode(v.Hook)
		if err != nil {
			return nil, err
		}
		return &definition.ValidatorDef{Kind: "hook", Name: v.Name, Hook: code}, nil
	}
	spec, ok := builtinValidators[v.Name]
	if !ok {
		names := make([]string, 0, len(builtinValidators))
		for n := range builtinValidators {
			names = append(names, n)
		}
		return nil, errorAt(alerr.ErrBlueprintInvalid, v.Pos, "unknown validator %q", v.Name).
			WithHelp(alerr.SuggestSimilar(v.Name, names))
	}
	applies := false
	for _, t := range spec.types {
		if t == fd.Type {
			applies = true
		}
	}
	if !applies {
		return nil, errorAt(alerr.ErrTypeMismatch, v.Pos, "validator %s does not apply to %s field %s", v.Name, fd.Type, fd.Name)
	}
	if (spec.arity >= 0 && len(v.Args) != spec.arity) || (spec.arity < 0 && len(v.Args) == 0) {
		return nil, errorAt(alerr.ErrBlueprintInvalid, v.Pos, "validator %s takes %s", v.Name, arityText(spec.arity))
	}
	vd := &definition.ValidatorDef{Kind: "builtin", Name: v.Name}
	for _, a := range v.Args {
		lit := literalExpr(a)
		want := fd.Type
		if v.Name == "minLength" || v.Name == "maxLength" {
			want = definition.TypeInteger
		}
		if !assignable(want, lit.Type) {
			return nil, errorAt(alerr.ErrTypeMismatch, a.Pos, "validator %s expects %s arguments, got %s", v.Name, want, lit.Type)
		}
		vd.Args = append(vd.Args, lit.Value)
	}
	return vd, nil
}

func arityText(n int) string {
	switch n {
	case -1:
		return "one or more arguments"
	case 0:
		return "no arguments"
	case 1:
		return "one argument"
	}
	return fmt.Sprintf("%d arguments", n)
}

func (c *composer) resolveRelations() error {
	for _, md := range c.def.Models {
		node := c.models[md.Name].node
		for i, rel := range md.Relations {
			r := node.Relations[i]
			from, ok := c.models[r.From]
			if !ok {
				return c.unknownModel(r.From, r.Pos)
			}
			through := from.def.Reference(r.Through)
			if through == nil {
				return errorAt(alerr.ErrUnresolvedPath, r.Pos, "relation %s.%s: model %s has no reference %q", md.Name, r.Name, r.From, r.Through).
					WithModel(md.Name).
					WithHelp(alerr.SuggestSimilar(r.Through, referenceNames(from.def)))
			}
			if through.ToModelRefKey != md.Name {
				return errorAt(alerr.ErrBlueprintInvalid, r.Pos, "relation %s.%s: reference %s.%s points to %s, not %s",
					md.Name, r.Name, r.From, r.Through, through.ToModelRefKey, md.Name)
			}
			rel.FromModelRefKey = r.From
			rel.ThroughRefKey = through.RefKey
			rel.Unique = through.Unique
		}
		for _, ref := range md.References {
			if _, ok := c.models[ref.ToModelRefKey]; !ok {
				pos := node.Pos
				for _, r := range node.References {
					if r.Name == ref.Name {
						pos = r.Pos
					}
				}
				return c.unknownModel(ref.ToModelRefKey, pos)
			}
		}
	}
	return nil
}

func referenceNames(m *definition.ModelDef) []string {
	out := make([]string, 0, len(m.References))
	for _, r := range m.References {
		out = append(out, r.Name)
	}
	return out
}

func (c *composer) unknownModel(name string, pos ast.Pos) *alerr.Error {
	names := make([]string, 0, len(c.def.Models))
	for _, m := range c.def.Models {
		names = append(names, m.Name)
	}
	return errorAt(alerr.ErrUnresolvedPath, pos, "unknown model %q", name).
		WithHelp(alerr.SuggestSimilar(name, names))
}

// -----------------------------------------------------------------------------
// Lazily resolved members
// -----------------------------------------------------------------------------

func (c *composer) resolveMembers() error {
	for _, md := range c.def.Models {
		for _, q := range md.Queries {
			if err := c.ensure(md, q.Name); err != nil {
				return err
			}
		}
		for _, cp := range md.Computeds {
			if err := c.ensure(md, cp.Name); err != nil {
				return err
			}
		}
		for _, h := range md.Hooks {
			if err := c.ensure(md, h.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensure resolves the query, computed or hook name of md if needed.
// Fields, references and relations are resolved eagerly.
func (c *composer) ensure(md *definition.ModelDef, name string) error {
	ref := md.Member(name)
	switch ref.Kind {
	case definition.RefQuery, definition.RefComputed, definition.RefHook:
	default:
		return nil
	}
	key := ref.RefKey()
	switch c.state[key] {
	case stateResolved:
		return nil
	case stateResolving:
		return alerr.New(alerr.ErrCircularDependency, fmt.Sprintf("%s depends on itself", key)).WithModel(md.Name)
	}
	c.state[key] = stateResolving

	node := c.models[md.Name].node
	var err error
	switch ref.Kind {
	case definition.RefQuery:
		for _, q := range node.Queries {
			if q.Name == name {
				err = c.resolveModelQuery(md, ref.Query, q)
			}
		}
	case definition.RefComputed:
		for _, cp := range node.Computeds {
			if cp.Name == name {
				err = c.resolveComputed(md, ref.Computed, cp)
			}
		}
	case definition.RefHook:
		for _, h := range node.Hooks {
			if h.Name == name {
				err = c.resolveModelHook(md, ref.Hook, h)
			}
		}
	}
	if err != nil {
		return err
	}
	c.state[key] = stateResolved
	return nil
}

func (c *composer) resolveModelQuery(md *definition.ModelDef, qd *definition.QueryDef, q *ast.Query) error {
	sc := c.staticScope()
	composed, err := c.composeQuery(sc, []string{md.Name}, md, q)
	if err != nil {
		return err
	}
	composed.RefKey = qd.RefKey
	composed.Name = qd.Name
	*qd = *composed
	return nil
}

func (c *composer) resolveComputed(md *definition.ModelDef, cd *definition.ComputedDef, cp *ast.Computed) error {
	sc := c.staticScope().withModel(md, []string{md.Name})
	sc.sql = true
	e, err := c.composeExpr(sc, cp.Expr)
	if err != nil {
		return err
	}
	if e.ExprType() == "" {
		return errorAt(alerr.ErrTypeMismatch, cp.Pos, "cannot infer the type of computed %s.%s", md.Name, cp.Name)
	}
	cd.Expr = e
	cd.Type = e.ExprType()
	return nil
}

func (c *composer) resolveModelHook(md *definition.ModelDef, hd *definition.ModelHookDef, h *ast.ModelHook) error {
	sc := c.staticScope().withModel(md, []string{md.Name})
	sc.sql = true
	hd.Args = []*definition.HookArgDef{}
	for _, a := range h.Args {
		if a.Query != nil {
			return errorAt(alerr.ErrUnsupported, a.Pos, "model hook %s.%s: query arguments are not supported", md.Name, h.Name)
		}
		e, err := c.composeExpr(sc, a.Expr)
		if err != nil {
			return err
		}
		hd.Args = append(hd.Args, &definition.HookArgDef{Name: a.Name, Expr: e})
	}
	code, err := c.hookCode(h.Code)
	if err != nil {
		return err
	}
	hd.Code = code
	return nil
}

// -----------------------------------------------------------------------------
// Runtimes, generators, authenticator
// -----------------------------------------------------------------------------

// composeRuntimes validates runtimes and picks the default one: the single
// runtime flagged default, or the only runtime declared.
func (c *composer) composeRuntimes() error {
	seen := map[string]bool{}
	var defaults []string
	for _, r := range c.doc.Runtimes {
		if r.Name == "" {
			return errorAt(alerr.ErrBlueprintInvalid, r.Pos, "runtime has no name")
		}
		if seen[r.Name] {
			return errorAt(alerr.ErrDuplicateName, r.Pos, "runtime %s is declared twice", r.Name)
		}
		seen[r.Name] = true
		if r.Default {
			defaults = append(defaults, r.Name)
		}
		c.def.Runtimes = append(c.def.Runtimes, &definition.RuntimeDef{
			Name:       r.Name,
			SourcePath: r.SourcePath,
			Default:    r.Default,
		})
	}
	switch {
	case len(defaults) > 1:
		return alerr.New(alerr.ErrDefaultRuntime, "more than one default runtime: "+strings.Join(defaults, ", "))
	case len(defaults) == 1:
		c.defaultRuntime = defaults[0]
	case len(c.def.Runtimes) == 1:
		c.def.Runtimes[0].Default = true
		c.defaultRuntime = c.def.Runtimes[0].Name
	}
	return nil
}

// hookCode resolves the runtime of a hook. A hook without a runtime uses the
// default runtime; with no runtimes declared at all an implicit default
// runtime is added.
func (c *composer) hookCode(h *ast.HookCode) (*definition.HookCode, error) {
	runtime := h.Runtime
	if runtime == "" {
		if c.defaultRuntime == "" {
			if len(c.def.Runtimes) > 0 {
				return nil, errorAt(alerr.ErrDefaultRuntime, h.Pos, "hook has no runtime and no default runtime is declared").
					WithHelp("mark one runtime with default: true")
			}
			c.def.Runtimes = append(c.def.Runtimes, &definition.RuntimeDef{
				Name:       DefaultRuntimeName,
				SourcePath: defaultRuntimeSource,
				Default:    true,
			})
			c.defaultRuntime = DefaultRuntimeName
		}
		runtime = c.defaultRuntime
	} else {
		found := false
		for _, r := range c.def.Runtimes {
			if r.Name == runtime {
				found = true
			}
		}
		if !found {
			return nil, errorAt(alerr.ErrUnresolvedPath, h.Pos, "unknown runtime %q", runtime)
		}
	}
	if h.Inline != "" {
		return &definition.HookCode{Kind: definition.HookInline, Inline: h.Inline, RuntimeName: runtime}, nil
	}
	return &definition.HookCode{Kind: definition.HookSource, File: h.File, Target: h.Function, RuntimeName: runtime}, nil
}

var generatorTargets = map[string][]string{
	"client": {"js", "ts"},
}

func (c *composer) composeGenerators() error {
	seen := map[string]bool{}
	for _, g := range c.doc.Generators {
		targets, ok := generatorTargets[g.Kind]
		if !ok {
			return errorAt(alerr.ErrBlueprintInvalid, g.Pos, "unknown generator kind %q", g.Kind)
		}
		valid := false
		for _, t := range targets {
			if t == g.Target {
				valid = true
			}
		}
		if !valid {
			return errorAt(alerr.ErrBlueprintInvalid, g.Pos, "generator %s does not support target %q", g.Kind, g.Target).
				WithHelp("supported targets: " + strings.Join(targets, ", "))
		}
		key := g.Kind + "/" + g.Target
		if seen[key] {
			return errorAt(alerr.ErrDuplicateName, g.Pos, "generator %s for target %s is declared twice", g.Kind, g.Target)
		}
		seen[key] = true
		c.def.Generators = append(c.def.Generators, &definition.GeneratorDef{Kind: g.Kind, Target: g.Target, Output: g.Output})
	}
	return nil
}

// composeAuthenticator adds the user and access token models.
func (c *composer) composeAuthenticator() error {
	a := c.doc.Authenticator
	if a == nil {
		return nil
	}
	method := a.Method
	if method == "" {
		method = DefaultAuthMethod
	}
	if method != DefaultAuthMethod {
		return errorAt(alerr.ErrBlueprintInvalid, a.Pos, "unsupported authenticator method %q", a.Method)
	}
	user := &ast.Model{
		Name: AuthUserModel,
		Pos:  a.Pos,
		Fields: []*ast.Field{
			{Name: "name", Type: "string", Pos: a.Pos},
			{Name: "username", Type: "string", Unique: true, Pos: a.Pos},
			{Name: "password", Type: "string", Pos: a.Pos},
		},
		Relations: []*ast.Relation{
			{Name: "accessTokens", From: AccessTokenModel, Through: "authUser", Pos: a.Pos},
		},
	}
	token := &ast.Model{
		Name: AccessTokenModel,
		Pos:  a.Pos,
		Fields: []*ast.Field{
			{Name: "token", Type: "string", Unique: true, Pos: a.Pos},
			{Name: "expiryDate", Type: "string", Pos: a.Pos},
		},
		References: []*ast.Reference{
			{Name: "authUser", To: AuthUserModel, OnDelete: definition.OnDeleteCascade, Pos: a.Pos},
		},
	}
	c.doc = &ast.Document{
		Models:        append([]*ast.Model{user, token}, c.doc.Models...),
		APIs:          c.doc.APIs,
		Populators:    c.doc.Populators,
		Runtimes:      c.doc.Runtimes,
		Generators:    c.doc.Generators,
		Authenticator: c.doc.Authenticator,
	}
	c.def.Authenticator = &definition.AuthenticatorDef{
		AuthUserModel:    AuthUserModel,
		AccessTokenModel: AccessTokenModel,
		Method:           method,
	}
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func errorAt(code alerr.Code, pos ast.Pos, format string, args ...any) *alerr.Error {
	return alerr.Newf(code, format, args...).WithLocation(pos.File, pos.Line, pos.Column)
}

// at attaches a position to err, converting plain errors to alerr errors.
func at(err error, pos ast.Pos) *alerr.Error {
	ae, ok := err.(*alerr.Error)
	if !ok {
		ae = alerr.Wrap(alerr.ErrBlueprintInvalid, err, err.Error())
	}
	return ae.WithLocation(pos.File, pos.Line, pos.Column)
}

func warnReserved(kind, name, dbname string) {
	if validate.IsReservedWord(dbname) {
		slog.Warn("name is a SQL reserved word and will always be quoted", "kind", kind, "name", name, "dbname", dbname)
	}
}

func literalExpr(l *ast.Literal) *definition.LiteralExpr {
	switch l.Kind {
	case ast.LitInteger:
		return &definition.LiteralExpr{Type: definition.TypeInteger, Value: l.Value}
	case ast.LitFloat:
		return &definition.LiteralExpr{Type: definition.TypeFloat, Value: l.Value}
	case ast.LitString:
		return &definition.LiteralExpr{Type: definition.TypeString, Value: l.Value}
	case ast.LitBoolean:
		return &definition.LiteralExpr{Type: definition.TypeBoolean, Value: l.Value}
	default:
		return &definition.LiteralExpr{Type: definition.TypeNull, Value: nil}
	}
}

// assignable reports whether a value of type from may be stored in a field
// of type to. Unknown types ("") are always assignable.
func assignable(to, from definition.ScalarType) bool {
	switch {
	case to == "" || from == "" || to == from:
		return true
	case from == definition.TypeNull:
		return true
	case to == definition.TypeFloat && from == definition.TypeInteger:
		return true
	}
	return false
}
