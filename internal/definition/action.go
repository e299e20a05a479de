package definition

// -----------------------------------------------------------------------------
// Fieldsets
// -----------------------------------------------------------------------------

// Fieldset is the expected shape of a request body: FieldsetRecord or
// FieldsetField.
type Fieldset interface {
	fieldset()
}

// FieldsetRecord is an object with named members.
type FieldsetRecord struct {
	Record   map[string]Fieldset `json:"record"`
	Nullable bool                `json:"nullable"`
}

// FieldsetField is a scalar input.
type FieldsetField struct {
	Type       ScalarType      `json:"type"`
	Required   bool            `json:"required"`
	Nullable   bool            `json:"nullable"`
	Validators []*ValidatorDef `json:"validators"`
}

func (*FieldsetRecord) fieldset() {}
func (*FieldsetField) fieldset()  {}

// -----------------------------------------------------------------------------
// Setters
// -----------------------------------------------------------------------------

// Setter computes one changeset value at runtime.
type Setter interface {
	setter()
}

// LiteralSetter is a constant.
type LiteralSetter struct {
	Type  ScalarType `json:"type"`
	Value any        `json:"value"`
}

// FieldsetInputSetter reads the request body at FieldsetAccess.
type FieldsetInputSetter struct {
	Type           ScalarType `json:"type"`
	FieldsetAccess []string   `json:"fieldsetAccess"`
	Required       bool       `json:"required"`
	Default        Setter     `json:"default"`
}

// FieldsetReferenceInputSetter resolves a natural key from the request body
// to an id of the referenced model.
type FieldsetReferenceInputSetter struct {
	FieldsetAccess []string   `json:"fieldsetAccess"`
	ThroughRefKey  string     `json:"throughRefKey"`
	Type           ScalarType `json:"type"`
}

// ReferenceValueSetter reads a context alias at Access.
type ReferenceValueSetter struct {
	Alias  string   `json:"alias"`
	Access []string `json:"access"`
}

// ChangesetReferenceSetter reuses an earlier value of the same changeset.
type ChangesetReferenceSetter struct {
	ReferenceName string `json:"referenceName"`
}

// FunctionSetter applies a builtin to evaluated arguments.
type FunctionSetter struct {
	Name string   `json:"name"`
	Args []Setter `json:"args"`
}

// ArraySetter builds a list.
type ArraySetter struct {
	Elements []Setter `json:"elements"`
}

// HookSetter invokes a hook with its own argument changeset.
type HookSetter struct {
	Hook *HookDef `json:"hook"`
}

// QuerySetter runs a nested query and uses its result.
type QuerySetter struct {
	Query *QueryDef `json:"query"`
}

func (*LiteralSetter) setter()                {}
func (*FieldsetInputSetter) setter()          {}
func (*FieldsetReferenceInputSetter) setter() {}
func (*ReferenceValueSetter) setter()         {}
func (*ChangesetReferenceSetter) setter()     {}
func (*FunctionSetter) setter()               {}
func (*ArraySetter) setter()                  {}
func (*HookSetter) setter()                   {}
func (*QuerySetter) setter()                  {}

// HookDef is a hook call: code plus named arguments.
type HookDef struct {
	Code *HookCode `json:"code"`
	Args Changeset `json:"args"`
}

// ChangesetOperation names one computed value.
type ChangesetOperation struct {
	Name   string `json:"name"`
	Setter Setter `json:"setter"`
}

// Changeset is evaluated in order; later setters may refer to earlier names.
type Changeset []*ChangesetOperation

// Get returns the operation named name.
func (c Changeset) Get(name string) *ChangesetOperation {
	for _, op := range c {
		if op.Name == name {
			return op
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Actions
// -----------------------------------------------------------------------------

// ActionDef is one step of an endpoint or populate block.
type ActionDef interface {
	GetAlias() string
	action()
}

// CreateOneAction inserts one row. Select lists the fields later actions
// read from Alias.
type CreateOneAction struct {
	Alias      string       `json:"alias"`
	Model      string       `json:"model"`
	TargetPath []string     `json:"targetPath"`
	Changeset  Changeset    `json:"changeset"`
	Select     []SelectItem `json:"select"`
	IsPrimary  bool         `json:"isPrimary"`
}

// UpdateOneAction updates the row found at TargetPath + id in Vars.
type UpdateOneAction struct {
	Alias      string       `json:"alias"`
	Model      string       `json:"model"`
	TargetPath []string     `json:"targetPath"`
	Changeset  Changeset    `json:"changeset"`
	Select     []SelectItem `json:"select"`
	IsPrimary  bool         `json:"isPrimary"`
}

// DeleteOneAction deletes the row found at TargetPath + id in Vars.
type DeleteOneAction struct {
	Model      string   `json:"model"`
	TargetPath []string `json:"targetPath"`
	IsPrimary  bool     `json:"isPrimary"`
}

// ExecuteHookAction calls a hook. A responding hook produces the response.
type ExecuteHookAction struct {
	Alias    string   `json:"alias"`
	Hook     *HookDef `json:"hook"`
	Responds bool     `json:"responds"`
}

// FetchAction runs a query and binds the result to Alias.
type FetchAction struct {
	Alias string    `json:"alias"`
	Query *QueryDef `json:"query"`
}

// RespondAction finishes the request with an explicit body and status.
type RespondAction struct {
	Body       TypedExpr `json:"body"`
	HTTPStatus TypedExpr `json:"httpStatus"`
}

// ValidateAction fails the request with a validation issue under Key when
// Expr does not hold.
type ValidateAction struct {
	Key  string    `json:"key"`
	Expr TypedExpr `json:"validate"`
}

func (a *CreateOneAction) GetAlias() string   { return a.Alias }
func (a *UpdateOneAction) GetAlias() string   { return a.Alias }
func (a *DeleteOneAction) GetAlias() string   { return "" }
func (a *ExecuteHookAction) GetAlias() string { return a.Alias }
func (a *FetchAction) GetAlias() string       { return a.Alias }
func (a *RespondAction) GetAlias() string     { return "" }
func (a *ValidateAction) GetAlias() string    { return "" }

func (*CreateOneAction) action()   {}
func (*UpdateOneAction) action()   {}
func (*DeleteOneAction) action()   {}
func (*ExecuteHookAction) action() {}
func (*FetchAction) action()       {}
func (*RespondAction) action()     {}
func (*ValidateAction) action()    {}
