// Package ast defines the syntax tree of a blueprint.
// The blueprint loader produces these nodes; the composer consumes them
// without re-validating syntax.
package ast

import "fmt"

// Pos is a source position inside a blueprint file.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return "<input>"
	}
	if p.Line == 0 {
		return p.File
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Document is a complete blueprint, possibly merged from several files.
type Document struct {
	Models        []*Model
	APIs          []*API
	Populators    []*Populator
	Runtimes      []*Runtime
	Generators    []*Generator
	Authenticator *Authenticator
}

// Merge appends the declarations of other to d.
// A second authenticator block overrides nothing; the first one wins.
func (d *Document) Merge(other *Document) {
	d.Models = append(d.Models, other.Models...)
	d.APIs = append(d.APIs, other.APIs...)
	d.Populators = append(d.Populators, other.Populators...)
	d.Runtimes = append(d.Runtimes, other.Runtimes...)
	d.Generators = append(d.Generators, other.Generators...)
	if d.Authenticator == nil {
		d.Authenticator = other.Authenticator
	}
}

// -----------------------------------------------------------------------------
// Models
// -----------------------------------------------------------------------------

// Model declares a storable entity with its members.
type Model struct {
	Name       string
	Fields     []*Field
	References []*Reference
	Relations  []*Relation
	Queries    []*Query
	Computeds  []*Computed
	Hooks      []*ModelHook
	Pos        Pos
}

// Field is a scalar column.
type Field struct {
	Name       string
	Type       string // integer, float, string, boolean
	Nullable   bool
	Unique     bool
	Default    *Literal
	Validators []*Validator
	Pos        Pos
}

// Validator is a builtin check ("min", "isEmail") or a hook validator.
type Validator struct {
	Name string
	Args []*Literal
	Hook *HookCode
	Pos  Pos
}

// Reference points from the owning model to another model.
type Reference struct {
	Name     string
	To       string
	Nullable bool
	Unique   bool
	OnDelete string // cascade, setNull or empty
	Pos      Pos
}

// Relation is the inverse view of a reference declared on another model.
type Relation struct {
	Name    string
	From    string // model owning the reference
	Through string // reference name on From
	Pos     Pos
}

// Query is a named path with filter, ordering and paging.
type Query struct {
	Name      string
	From      []string
	FromAlias []string
	Filter    Expr
	OrderBy   []*OrderBy
	Limit     *int
	Offset    *int
	Select    []*SelectItem
	First     bool
	Aggregate *Aggregate
	Pos       Pos
}

// Aggregate turns a query into a scalar ("count", "sum").
type Aggregate struct {
	Name  string
	Field string // summed field, empty for count
	Pos   Pos
}

// OrderBy is one ordering entry; Desc defaults to false.
type OrderBy struct {
	Path []string
	Desc bool
	Pos  Pos
}

// SelectItem selects a model member, optionally renamed and with a nested select.
type SelectItem struct {
	Name   string
	Alias  string
	Select []*SelectItem
	Pos    Pos
}

// Computed is a named expression evaluated in SQL.
type Computed struct {
	Name string
	Expr Expr
	Pos  Pos
}

// ModelHook is a hook evaluated for every fetched row.
type ModelHook struct {
	Name string
	Args []*HookArg
	Code *HookCode
	Pos  Pos
}

// HookArg is a named hook argument.
type HookArg struct {
	Name  string
	Expr  Expr
	Query *Query
	Pos   Pos
}

// HookCode locates the code of a hook: inline source or a function in a file.
type HookCode struct {
	Runtime  string
	Inline   string
	File     string
	Function string
	Pos      Pos
}

// -----------------------------------------------------------------------------
// APIs
// -----------------------------------------------------------------------------

// API groups entrypoints under an optional name.
type API struct {
	Name        string
	Entrypoints []*Entrypoint
	Pos         Pos
}

// Entrypoint binds a path segment to a model, reference, relation or query.
type Entrypoint struct {
	Target      string
	As          string
	Identify    string
	Response    []*SelectItem
	Authorize   Expr
	Endpoints   []*Endpoint
	Entrypoints []*Entrypoint
	Pos         Pos
}

// Endpoint kinds.
const (
	EndpointList   = "list"
	EndpointGet    = "get"
	EndpointCreate = "create"
	EndpointUpdate = "update"
	EndpointDelete = "delete"
	EndpointCustom = "custom"
)

// Endpoint is one HTTP operation on an entrypoint.
type Endpoint struct {
	Kind        string
	Method      string
	Path        string
	Cardinality string
	Actions     []*Action
	Authorize   Expr
	Pageable    bool
	OrderBy     []*OrderBy
	Filter      Expr
	Response    []*SelectItem
	Pos         Pos
}

// Action kinds.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionExecute  = "execute"
	ActionFetch    = "fetch"
	ActionRespond  = "respond"
	ActionValidate = "validate"
)

// Action is one step of an endpoint or a populate block.
type Action struct {
	Kind       string
	Target     []string
	As         string
	Set        []*SetAtom
	Inputs     []*InputAtom
	References []*ReferenceAtom
	Deny       []string
	Hook       *HookCall
	Responds   bool
	Query      *Query
	Body       Expr
	HTTPStatus Expr
	Key        string
	Expr       Expr
	Nested     []*Action
	Pos        Pos
}

// SetAtom assigns a field from an expression, a hook or a query.
type SetAtom struct {
	Field string
	Expr  Expr
	Hook  *HookCall
	Query *Query
	Pos   Pos
}

// InputAtom exposes a field as request input.
type InputAtom struct {
	Field    string
	Optional bool
	Default  Expr
	Pos      Pos
}

// ReferenceAtom sets a reference by looking up a natural key.
type ReferenceAtom struct {
	Field   string
	Through string
	Pos     Pos
}

// HookCall invokes hook code with named arguments.
type HookCall struct {
	Args []*HookArg
	Code *HookCode
	Pos  Pos
}

// -----------------------------------------------------------------------------
// Populators, runtimes, generators, authenticator
// -----------------------------------------------------------------------------

// Populator is a named tree of populate blocks.
type Populator struct {
	Name      string
	Populates []*Populate
	Pos       Pos
}

// Populate creates rows of one target, optionally repeated.
type Populate struct {
	Target    string
	As        string
	Repeat    *Repeat
	Set       []*SetAtom
	Populates []*Populate
	Pos       Pos
}

// Repeat holds either Count ("repeat 5") or explicit bounds.
type Repeat struct {
	Count *int
	Start *int
	End   *int
	As    string
	Pos   Pos
}

// Runtime declares a hook execution runtime.
type Runtime struct {
	Name       string
	SourcePath string
	Default    bool
	Pos        Pos
}

// Generator declares a client generator.
type Generator struct {
	Kind   string
	Target string
	Output string
	Pos    Pos
}

// Authenticator enables the built-in user/token models.
type Authenticator struct {
	Method string
	Pos    Pos
}
