// Package definition holds the fully resolved intermediate representation a
// blueprint compiles to. A Definition is immutable once composed and is shared
// read-only by every request.
package definition

// ScalarType is the storage type of a field or expression.
type ScalarType string

const (
	TypeInteger ScalarType = "integer"
	TypeFloat   ScalarType = "float"
	TypeString  ScalarType = "string"
	TypeBoolean ScalarType = "boolean"
	TypeNull    ScalarType = "null"
)

// Valid reports whether t is one of the storable scalar types.
func (t ScalarType) Valid() bool {
	switch t {
	case TypeInteger, TypeFloat, TypeString, TypeBoolean:
		return true
	}
	return false
}

// Cardinality of a query, reference chain or nested select.
type Cardinality string

const (
	One      Cardinality = "one"
	Nullable Cardinality = "nullable"
	Many     Cardinality = "many"
)

// Definition is the compiler output and the runtime's only input.
type Definition struct {
	Models        []*ModelDef       `json:"models"`
	APIs          []*APIDef         `json:"apis"`
	Populators    []*PopulatorDef   `json:"populators"`
	Runtimes      []*RuntimeDef     `json:"runtimes"`
	Generators    []*GeneratorDef   `json:"generators"`
	Authenticator *AuthenticatorDef `json:"authenticator"`
}

// -----------------------------------------------------------------------------
// Model graph
// -----------------------------------------------------------------------------

// ModelDef is a storable entity.
type ModelDef struct {
	RefKey     string          `json:"refKey"`
	Name       string          `json:"name"`
	DBName     string          `json:"dbname"`
	Fields     []*FieldDef     `json:"fields"`
	References []*ReferenceDef `json:"references"`
	Relations  []*RelationDef  `json:"relations"`
	Queries    []*QueryDef     `json:"queries"`
	Computeds  []*ComputedDef  `json:"computeds"`
	Hooks      []*ModelHookDef `json:"hooks"`
}

// FieldDef is a scalar column.
type FieldDef struct {
	RefKey      string          `json:"refKey"`
	ModelRefKey string          `json:"modelRefKey"`
	Name        string          `json:"name"`
	DBName      string          `json:"dbname"`
	Type        ScalarType      `json:"type"`
	Primary     bool            `json:"primary"`
	Unique      bool            `json:"unique"`
	Nullable    bool            `json:"nullable"`
	Default     *LiteralExpr    `json:"default"`
	Validators  []*ValidatorDef `json:"validators"`
}

// ValidatorDef is a builtin check or a hook validator.
type ValidatorDef struct {
	Kind string    `json:"kind"` // builtin or hook
	Name string    `json:"name"`
	Args []any     `json:"args,omitempty"`
	Hook *HookCode `json:"hook,omitempty"`
}

// Reference on-delete policies.
const (
	OnDeleteNone    = ""
	OnDeleteCascade = "cascade"
	OnDeleteSetNull = "setNull"
)

// ReferenceDef is a pointer to another model, stored in FieldRefKey.
type ReferenceDef struct {
	RefKey        string `json:"refKey"`
	ModelRefKey   string `json:"modelRefKey"`
	Name          string `json:"name"`
	FieldRefKey   string `json:"fieldRefKey"`
	ToModelRefKey string `json:"toModelRefKey"`
	Nullable      bool   `json:"nullable"`
	Unique        bool   `json:"unique"`
	OnDelete      string `json:"onDelete"`
}

// RelationDef is the inverse of a reference. Unique references yield
// one-to-one relations.
type RelationDef struct {
	RefKey          string `json:"refKey"`
	ModelRefKey     string `json:"modelRefKey"`
	Name            string `json:"name"`
	FromModelRefKey string `json:"fromModelRefKey"`
	ThroughRefKey   string `json:"throughRefKey"`
	Unique          bool   `json:"unique"`
}

// ComputedDef is an expression evaluated in SQL, rooted at its model.
type ComputedDef struct {
	RefKey      string     `json:"refKey"`
	ModelRefKey string     `json:"modelRefKey"`
	Name        string     `json:"name"`
	Expr        TypedExpr  `json:"exp"`
	Type        ScalarType `json:"type"`
}

// ModelHookDef is evaluated per fetched row with expression arguments.
type ModelHookDef struct {
	RefKey      string        `json:"refKey"`
	ModelRefKey string        `json:"modelRefKey"`
	Name        string        `json:"name"`
	Args        []*HookArgDef `json:"args"`
	Code        *HookCode     `json:"code"`
}

// HookArgDef is a model hook argument rooted at the hook's model.
type HookArgDef struct {
	Name string    `json:"name"`
	Expr TypedExpr `json:"exp"`
}

// Hook code kinds.
const (
	HookInline = "inline"
	HookSource = "source"
)

// HookCode locates hook code.
type HookCode struct {
	Kind        string `json:"kind"`
	Inline      string `json:"inline,omitempty"`
	File        string `json:"file,omitempty"`
	Target      string `json:"target,omitempty"`
	RuntimeName string `json:"runtimeName,omitempty"`
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// QueryDef is a fetch rooted at FromPath[0]. Every alias path inside it
// (filter, select, order) starts with that root name.
type QueryDef struct {
	RefKey         string        `json:"refKey,omitempty"`
	Name           string        `json:"name"`
	ModelRefKey    string        `json:"modelRefKey"`
	RetType        string        `json:"retType"`
	RetCardinality Cardinality   `json:"retCardinality"`
	FromPath       []string      `json:"fromPath"`
	Filter         TypedExpr     `json:"filter"`
	Select         []SelectItem  `json:"select"`
	OrderBy        []*OrderByDef `json:"orderBy"`
	Limit          *int          `json:"limit"`
	Offset         *int          `json:"offset"`
	Aggregate      *AggregateDef `json:"aggregate"`
}

// Aggregate function names.
const (
	AggregateCount = "count"
	AggregateSum   = "sum"
)

// AggregateDef reduces the query to a scalar.
type AggregateDef struct {
	Name     string   `json:"name"`
	NamePath []string `json:"namePath,omitempty"`
}

// OrderByDef orders by an expression rooted at the query's from alias.
type OrderByDef struct {
	Expr TypedExpr `json:"exp"`
	Desc bool      `json:"desc"`
}

// -----------------------------------------------------------------------------
// APIs
// -----------------------------------------------------------------------------

// APIDef groups entrypoints; Name becomes a path prefix when set.
type APIDef struct {
	Name        string           `json:"name"`
	Path        string           `json:"path"`
	Entrypoints []*EntrypointDef `json:"entrypoints"`
}

// EntrypointDef is one routable level of an API.
type EntrypointDef struct {
	Name        string           `json:"name"`
	Target      *TargetDef       `json:"target"`
	Endpoints   []*EndpointDef   `json:"endpoints"`
	Entrypoints []*EntrypointDef `json:"entrypoints"`
}

// Target kinds.
const (
	TargetModel     = "model"
	TargetReference = "reference"
	TargetRelation  = "relation"
	TargetQuery     = "query"
)

// TargetDef is what an entrypoint (or populate block) points at.
// NamePath is the full path from the root entrypoint model.
type TargetDef struct {
	Kind           string        `json:"kind"`
	Name           string        `json:"name"`
	NamePath       []string      `json:"namePath"`
	RetType        string        `json:"retType"`
	RetCardinality Cardinality   `json:"retCardinality"`
	RefKey         string        `json:"refKey"`
	Alias          string        `json:"alias"`
	IdentifyWith   *IdentifyWith `json:"identifyWith"`
}

// IdentifyWith binds a path parameter to a unique field.
type IdentifyWith struct {
	Name      string     `json:"name"`
	RefKey    string     `json:"refKey"`
	Type      ScalarType `json:"type"`
	ParamName string     `json:"paramName"`
}

// TargetWithSelect is a target plus the fields later actions read from it.
type TargetWithSelect struct {
	*TargetDef
	Select []SelectItem `json:"select"`
}

// Endpoint kinds.
const (
	EndpointList       = "list"
	EndpointGet        = "get"
	EndpointCreate     = "create"
	EndpointUpdate     = "update"
	EndpointDelete     = "delete"
	EndpointCustomOne  = "custom-one"
	EndpointCustomMany = "custom-many"
)

// EndpointDef is one HTTP operation.
type EndpointDef struct {
	Kind       string              `json:"kind"`
	Method     string              `json:"method"`
	Path       string              `json:"path"`
	Parents    []*TargetWithSelect `json:"parentContext"`
	Target     *TargetWithSelect   `json:"target"`
	Fieldset   Fieldset            `json:"fieldset"`
	Actions    []ActionDef         `json:"actions"`
	Authorize  TypedExpr           `json:"authorize"`
	AuthSelect []SelectItem        `json:"authSelect"`
	Response   []SelectItem        `json:"response"`
	Pageable   bool                `json:"pageable"`
	OrderBy    []*OrderByDef       `json:"orderBy"`
	Filter     TypedExpr           `json:"filter"`
	Responds   bool                `json:"responds"`
}

// IsCustom reports whether the endpoint is a custom one.
func (e *EndpointDef) IsCustom() bool {
	return e.Kind == EndpointCustomOne || e.Kind == EndpointCustomMany
}

// -----------------------------------------------------------------------------
// Populators, runtimes, generators, authenticator
// -----------------------------------------------------------------------------

// PopulatorDef is a named fixture tree.
type PopulatorDef struct {
	Name      string         `json:"name"`
	Populates []*PopulateDef `json:"populates"`
}

// PopulateDef creates rows of Target, repeated by Repeater.
type PopulateDef struct {
	Target    *TargetDef     `json:"target"`
	Actions   []ActionDef    `json:"actions"`
	Repeater  *RepeaterDef   `json:"repeater"`
	Populates []*PopulateDef `json:"populates"`
}

// RepeaterDef bounds are inclusive and 1-based. Alias, when set, is bound to
// {current, total} during each iteration.
type RepeaterDef struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Alias string `json:"alias,omitempty"`
}

// RuntimeDef is a hook execution runtime.
type RuntimeDef struct {
	Name       string `json:"name"`
	SourcePath string `json:"sourcePath"`
	Default    bool   `json:"default"`
}

// GeneratorDef is a client generator request.
type GeneratorDef struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Output string `json:"output"`
}

// AuthenticatorDef describes the built-in user and token models.
type AuthenticatorDef struct {
	AuthUserModel    string `json:"authUserModel"`
	AccessTokenModel string `json:"accessTokenModel"`
	Method           string `json:"method"`
}
