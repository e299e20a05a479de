package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Every tagged union is serialized with a "kind" discriminator.
// Variants marshal through marshalKind; containers of interface values
// decode through the decodeX helpers below.

// Encode writes the Definition as indented JSON.
func Encode(w io.Writer, def *Definition) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(def)
}

// Decode reads a Definition written by Encode.
func Decode(r io.Reader) (*Definition, error) {
	var def Definition
	dec := json.NewDecoder(r)
	if err := dec.Decode(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

func marshalKind(kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteString(`{"kind":`)
	k, _ := json.Marshal(kind)
	b.Write(k)
	if len(body) > 2 {
		b.WriteByte(',')
		b.Write(body[1:])
	} else {
		b.WriteByte('}')
	}
	return b.Bytes(), nil
}

func peekKind(raw json.RawMessage) (string, error) {
	var k struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &k); err != nil {
		return "", err
	}
	return k.Kind, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decodeList[T any](raws []json.RawMessage, dec func(json.RawMessage) (T, error)) ([]T, error) {
	if raws == nil {
		return nil, nil
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		v, err := dec(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Expressions
// -----------------------------------------------------------------------------

func decodeExpr(raw json.RawMessage) (TypedExpr, error) {
	if isNull(raw) {
		return nil, nil
	}
	kind, err := peekKind(raw)
	if err != nil {
		return nil, err
	}
	var e TypedExpr
	switch kind {
	case "literal":
		e = &LiteralExpr{}
	case "alias":
		e = &AliasExpr{}
	case "variable":
		e = &VariableExpr{}
	case "function":
		e = &FunctionExpr{}
	case "array":
		e = &ArrayExpr{}
	default:
		return nil, fmt.Errorf("unknown expression kind %q", kind)
	}
	if err := json.Unmarshal(raw, e); err != nil {
		return nil, err
	}
	return e, nil
}

// normalizeValue restores integer literals decoded as float64.
func normalizeValue(t ScalarType, v any) any {
	if f, ok := v.(float64); ok && t == TypeInteger {
		return int64(f)
	}
	return v
}

func (e *LiteralExpr) MarshalJSON() ([]byte, error) {
	type plain LiteralExpr
	return marshalKind("literal", (*plain)(e))
}

func (e *LiteralExpr) UnmarshalJSON(b []byte) error {
	type plain LiteralExpr
	if err := json.Unmarshal(b, (*plain)(e)); err != nil {
		return err
	}
	e.Value = normalizeValue(e.Type, e.Value)
	return nil
}

func (e *AliasExpr) MarshalJSON() ([]byte, error) {
	type plain AliasExpr
	return marshalKind("alias", (*plain)(e))
}

func (e *VariableExpr) MarshalJSON() ([]byte, error) {
	type plain VariableExpr
	return marshalKind("variable", (*plain)(e))
}

func (e *FunctionExpr) MarshalJSON() ([]byte, error) {
	type plain FunctionExpr
	return marshalKind("function", (*plain)(e))
}

func (e *FunctionExpr) UnmarshalJSON(b []byte) error {
	type plain FunctionExpr
	aux := struct {
		*plain
		Args []json.RawMessage `json:"args"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	e.Args, err = decodeList(aux.Args, decodeExpr)
	return err
}

func (e *ArrayExpr) MarshalJSON() ([]byte, error) {
	type plain ArrayExpr
	return marshalKind("array", (*plain)(e))
}

func (e *ArrayExpr) UnmarshalJSON(b []byte) error {
	type plain ArrayExpr
	aux := struct {
		*plain
		Elements []json.RawMessage `json:"elements"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	e.Elements, err = decodeList(aux.Elements, decodeExpr)
	return err
}

func (c *ComputedDef) UnmarshalJSON(b []byte) error {
	type plain ComputedDef
	aux := struct {
		*plain
		Expr json.RawMessage `json:"exp"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	c.Expr, err = decodeExpr(aux.Expr)
	return err
}

func (a *HookArgDef) UnmarshalJSON(b []byte) error {
	type plain HookArgDef
	aux := struct {
		*plain
		Expr json.RawMessage `json:"exp"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	a.Expr, err = decodeExpr(aux.Expr)
	return err
}

func (o *OrderByDef) UnmarshalJSON(b []byte) error {
	type plain OrderByDef
	aux := struct {
		*plain
		Expr json.RawMessage `json:"exp"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	o.Expr, err = decodeExpr(aux.Expr)
	return err
}

func (q *QueryDef) UnmarshalJSON(b []byte) error {
	type plain QueryDef
	aux := struct {
		*plain
		Filter json.RawMessage   `json:"filter"`
		Select []json.RawMessage `json:"select"`
	}{plain: (*plain)(q)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	if q.Filter, err = decodeExpr(aux.Filter); err != nil {
		return err
	}
	q.Select, err = decodeList(aux.Select, decodeSelect)
	return err
}

// -----------------------------------------------------------------------------
// Selects
// -----------------------------------------------------------------------------

func decodeSelect(raw json.RawMessage) (SelectItem, error) {
	kind, err := peekKind(raw)
	if err != nil {
		return nil, err
	}
	var s SelectItem
	switch kind {
	case SelectField, SelectComputed, SelectAggregate:
		s = &ValueSelect{Kind: kind}
	case "expression":
		s = &ExpressionSelect{}
	case "nested-select":
		s = &NestedSelect{}
	case "model-hook":
		s = &HookSelect{}
	default:
		return nil, fmt.Errorf("unknown select kind %q", kind)
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ValueSelect) MarshalJSON() ([]byte, error) {
	type plain ValueSelect
	return marshalKind(s.Kind, (*plain)(s))
}

func (s *ExpressionSelect) MarshalJSON() ([]byte, error) {
	type plain ExpressionSelect
	return marshalKind("expression", (*plain)(s))
}

func (s *ExpressionSelect) UnmarshalJSON(b []byte) error {
	type plain ExpressionSelect
	aux := struct {
		*plain
		Expr json.RawMessage `json:"exp"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	s.Expr, err = decodeExpr(aux.Expr)
	return err
}

func (s *NestedSelect) MarshalJSON() ([]byte, error) {
	type plain NestedSelect
	return marshalKind("nested-select", (*plain)(s))
}

func (s *HookSelect) MarshalJSON() ([]byte, error) {
	type plain HookSelect
	return marshalKind("model-hook", (*plain)(s))
}

func (t *TargetWithSelect) UnmarshalJSON(b []byte) error {
	var target TargetDef
	if err := json.Unmarshal(b, &target); err != nil {
		return err
	}
	var aux struct {
		Select []json.RawMessage `json:"select"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	t.TargetDef = &target
	var err error
	t.Select, err = decodeList(aux.Select, decodeSelect)
	return err
}

// -----------------------------------------------------------------------------
// Fieldsets
// -----------------------------------------------------------------------------

func decodeFieldset(raw json.RawMessage) (Fieldset, error) {
	if isNull(raw) {
		return nil, nil
	}
	kind, err := peekKind(raw)
	if err != nil {
		return nil, err
	}
	var f Fieldset
	switch kind {
	case "record":
		f = &FieldsetRecord{}
	case "field":
		f = &FieldsetField{}
	default:
		return nil, fmt.Errorf("unknown fieldset kind %q", kind)
	}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FieldsetRecord) MarshalJSON() ([]byte, error) {
	type plain FieldsetRecord
	return marshalKind("record", (*plain)(f))
}

func (f *FieldsetRecord) UnmarshalJSON(b []byte) error {
	type plain FieldsetRecord
	aux := struct {
		*plain
		Record map[string]json.RawMessage `json:"record"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	f.Record = make(map[string]Fieldset, len(aux.Record))
	for name, raw := range aux.Record {
		child, err := decodeFieldset(raw)
		if err != nil {
			return err
		}
		f.Record[name] = child
	}
	return nil
}

func (f *FieldsetField) MarshalJSON() ([]byte, error) {
	type plain FieldsetField
	return marshalKind("field", (*plain)(f))
}

// -----------------------------------------------------------------------------
// Setters
// -----------------------------------------------------------------------------

func decodeSetter(raw json.RawMessage) (Setter, error) {
	if isNull(raw) {
		return nil, nil
	}
	kind, err := peekKind(raw)
	if err != nil {
		return nil, err
	}
	var s Setter
	switch kind {
	case "literal":
		s = &LiteralSetter{}
	case "fieldset-input":
		s = &FieldsetInputSetter{}
	case "fieldset-reference-input":
		s = &FieldsetReferenceInputSetter{}
	case "reference-value":
		s = &ReferenceValueSetter{}
	case "changeset-reference":
		s = &ChangesetReferenceSetter{}
	case "function":
		s = &FunctionSetter{}
	case "array":
		s = &ArraySetter{}
	case "hook":
		s = &HookSetter{}
	case "query":
		s = &QuerySetter{}
	default:
		return nil, fmt.Errorf("unknown setter kind %q", kind)
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LiteralSetter) MarshalJSON() ([]byte, error) {
	type plain LiteralSetter
	return marshalKind("literal", (*plain)(s))
}

func (s *LiteralSetter) UnmarshalJSON(b []byte) error {
	type plain LiteralSetter
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}
	s.Value = normalizeValue(s.Type, s.Value)
	return nil
}

func (s *FieldsetInputSetter) MarshalJSON() ([]byte, error) {
	type plain FieldsetInputSetter
	return marshalKind("fieldset-input", (*plain)(s))
}

func (s *FieldsetInputSetter) UnmarshalJSON(b []byte) error {
	type plain FieldsetInputSetter
	aux := struct {
		*plain
		Default json.RawMessage `json:"default"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	s.Default, err = decodeSetter(aux.Default)
	return err
}

func (s *FieldsetReferenceInputSetter) MarshalJSON() ([]byte, error) {
	type plain FieldsetReferenceInputSetter
	return marshalKind("fieldset-reference-input", (*plain)(s))
}

func (s *ReferenceValueSetter) MarshalJSON() ([]byte, error) {
	type plain ReferenceValueSetter
	return marshalKind("reference-value", (*plain)(s))
}

func (s *ChangesetReferenceSetter) MarshalJSON() ([]byte, error) {
	type plain ChangesetReferenceSetter
	return marshalKind("changeset-reference", (*plain)(s))
}

func (s *FunctionSetter) MarshalJSON() ([]byte, error) {
	type plain FunctionSetter
	return marshalKind("function", (*plain)(s))
}

func (s *FunctionSetter) UnmarshalJSON(b []byte) error {
	type plain FunctionSetter
	aux := struct {
		*plain
		Args []json.RawMessage `json:"args"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	s.Args, err = decodeList(aux.Args, decodeSetter)
	return err
}

func (s *ArraySetter) MarshalJSON() ([]byte, error) {
	type plain ArraySetter
	return marshalKind("array", (*plain)(s))
}

func (s *ArraySetter) UnmarshalJSON(b []byte) error {
	type plain ArraySetter
	aux := struct {
		*plain
		Elements []json.RawMessage `json:"elements"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	s.Elements, err = decodeList(aux.Elements, decodeSetter)
	return err
}

func (s *HookSetter) MarshalJSON() ([]byte, error) {
	type plain HookSetter
	return marshalKind("hook", (*plain)(s))
}

func (s *QuerySetter) MarshalJSON() ([]byte, error) {
	type plain QuerySetter
	return marshalKind("query", (*plain)(s))
}

func (o *ChangesetOperation) UnmarshalJSON(b []byte) error {
	type plain ChangesetOperation
	aux := struct {
		*plain
		Setter json.RawMessage `json:"setter"`
	}{plain: (*plain)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	o.Setter, err = decodeSetter(aux.Setter)
	return err
}

// -----------------------------------------------------------------------------
// Actions
// -----------------------------------------------------------------------------

func decodeAction(raw json.RawMessage) (ActionDef, error) {
	kind, err := peekKind(raw)
	if err != nil {
		return nil, err
	}
	var a ActionDef
	switch kind {
	case "create-one":
		a = &CreateOneAction{}
	case "update-one":
		a = &UpdateOneAction{}
	case "delete-one":
		a = &DeleteOneAction{}
	case "execute-hook":
		a = &ExecuteHookAction{}
	case "fetch":
		a = &FetchAction{}
	case "respond":
		a = &RespondAction{}
	case "validate":
		a = &ValidateAction{}
	default:
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *CreateOneAction) MarshalJSON() ([]byte, error) {
	type plain CreateOneAction
	return marshalKind("create-one", (*plain)(a))
}

func (a *CreateOneAction) UnmarshalJSON(b []byte) error {
	type plain CreateOneAction
	aux := struct {
		*plain
		Select []json.RawMessage `json:"select"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	a.Select, err = decodeList(aux.Select, decodeSelect)
	return err
}

func (a *UpdateOneAction) MarshalJSON() ([]byte, error) {
	type plain UpdateOneAction
	return marshalKind("update-one", (*plain)(a))
}

func (a *UpdateOneAction) UnmarshalJSON(b []byte) error {
	type plain UpdateOneAction
	aux := struct {
		*plain
		Select []json.RawMessage `json:"select"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	a.Select, err = decodeList(aux.Select, decodeSelect)
	return err
}

func (a *DeleteOneAction) MarshalJSON() ([]byte, error) {
	type plain DeleteOneAction
	return marshalKind("delete-one", (*plain)(a))
}

func (a *ExecuteHookAction) MarshalJSON() ([]byte, error) {
	type plain ExecuteHookAction
	return marshalKind("execute-hook", (*plain)(a))
}

func (a *FetchAction) MarshalJSON() ([]byte, error) {
	type plain FetchAction
	return marshalKind("fetch", (*plain)(a))
}

func (a *RespondAction) MarshalJSON() ([]byte, error) {
	type plain RespondAction
	return marshalKind("respond", (*plain)(a))
}

func (a *RespondAction) UnmarshalJSON(b []byte) error {
	type plain RespondAction
	aux := struct {
		*plain
		Body       json.RawMessage `json:"body"`
		HTTPStatus json.RawMessage `json:"httpStatus"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	if a.Body, err = decodeExpr(aux.Body); err != nil {
		return err
	}
	a.HTTPStatus, err = decodeExpr(aux.HTTPStatus)
	return err
}

func (a *ValidateAction) MarshalJSON() ([]byte, error) {
	type plain ValidateAction
	return marshalKind("validate", (*plain)(a))
}

func (a *ValidateAction) UnmarshalJSON(b []byte) error {
	type plain ValidateAction
	aux := struct {
		*plain
		Expr json.RawMessage `json:"validate"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	a.Expr, err = decodeExpr(aux.Expr)
	return err
}

// -----------------------------------------------------------------------------
// Endpoints and populates
// -----------------------------------------------------------------------------

func (e *EndpointDef) UnmarshalJSON(b []byte) error {
	type plain EndpointDef
	aux := struct {
		*plain
		Fieldset   json.RawMessage   `json:"fieldset"`
		Actions    []json.RawMessage `json:"actions"`
		Authorize  json.RawMessage   `json:"authorize"`
		AuthSelect []json.RawMessage `json:"authSelect"`
		Response   []json.RawMessage `json:"response"`
		Filter     json.RawMessage   `json:"filter"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	if e.Fieldset, err = decodeFieldset(aux.Fieldset); err != nil {
		return err
	}
	if e.Actions, err = decodeList(aux.Actions, decodeAction); err != nil {
		return err
	}
	if e.Authorize, err = decodeExpr(aux.Authorize); err != nil {
		return err
	}
	if e.AuthSelect, err = decodeList(aux.AuthSelect, decodeSelect); err != nil {
		return err
	}
	if e.Response, err = decodeList(aux.Response, decodeSelect); err != nil {
		return err
	}
	e.Filter, err = decodeExpr(aux.Filter)
	return err
}

func (p *PopulateDef) UnmarshalJSON(b []byte) error {
	type plain PopulateDef
	aux := struct {
		*plain
		Actions []json.RawMessage `json:"actions"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var err error
	p.Actions, err = decodeList(aux.Actions, decodeAction)
	return err
}
