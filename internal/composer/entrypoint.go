package composer

import (
	"regexp"
	"slices"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/ast"
	"github.com/gauditech/gaudi-sub004/internal/definition"
	"github.com/gauditech/gaudi-sub004/internal/strutil"
)

// APIPathPrefix is the path every API is mounted under.
const APIPathPrefix = "/api"

var customPathPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var customMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// entrypointContext carries what nested entrypoints inherit.
type entrypointContext struct {
	parents      []*definition.TargetDef
	parentModels []*definition.ModelDef
	authorize    []ast.Expr
	scope        *scope
}

func (c *composer) composeAPIs() error {
	byName := map[string]*definition.APIDef{}
	for _, api := range c.doc.APIs {
		def, ok := byName[api.Name]
		if !ok {
			path := APIPathPrefix
			if api.Name != "" {
				if err := checkAPIName(api); err != nil {
					return err
				}
				path += "/" + strutil.PathSegment(api.Name)
			}
			def = &definition.APIDef{Name: api.Name, Path: path, Entrypoints: []*definition.EntrypointDef{}}
			byName[api.Name] = def
			c.def.APIs = append(c.def.APIs, def)
		}
		ctx := &entrypointContext{scope: c.staticScope()}
		for _, ep := range api.Entrypoints {
			ed, err := c.composeEntrypoint(ctx, ep)
			if err != nil {
				return err
			}
			for _, existing := range def.Entrypoints {
				if existing.Name == ed.Name {
					return errorAt(alerr.ErrDuplicateName, ep.Pos, "entrypoint %s is declared twice", ed.Name)
				}
			}
			def.Entrypoints = append(def.Entrypoints, ed)
		}
	}
	return nil
}

func checkAPIName(api *ast.API) error {
	if strutil.PathSegment(api.Name) == "" {
		return errorAt(alerr.ErrBlueprintInvalid, api.Pos, "invalid api name %q", api.Name)
	}
	return nil
}

func (c *composer) composeEntrypoint(ctx *entrypointContext, ep *ast.Entrypoint) (*definition.EntrypointDef, error) {
	target, model, err := c.entrypointTarget(ctx, ep)
	if err != nil {
		return nil, err
	}
	if err := c.checkAlias(ctx.scope, target.Alias, ep.Pos); err != nil {
		return nil, err
	}

	out := &definition.EntrypointDef{
		Name:        target.Name,
		Target:      target,
		Endpoints:   []*definition.EndpointDef{},
		Entrypoints: []*definition.EntrypointDef{},
	}

	authorize := ctx.authorize
	if ep.Authorize != nil {
		authorize = append(slices.Clone(authorize), ep.Authorize)
	}

	seen := map[string]bool{}
	for _, e := range ep.Endpoints {
		ed, err := c.composeEndpoint(ctx, target, model, ep, e, authorize)
		if err != nil {
			return nil, err
		}
		key := ed.Kind
		if ed.IsCustom() {
			key = ed.Method + " " + ed.Path
		}
		if seen[key] {
			return nil, errorAt(alerr.ErrDuplicateName, e.Pos, "endpoint %s is declared twice on %s", key, target.Alias)
		}
		seen[key] = true
		out.Endpoints = append(out.Endpoints, ed)
	}

	child := &entrypointContext{
		parents:      append(slices.Clone(ctx.parents), target),
		parentModels: append(slices.Clone(ctx.parentModels), model),
		authorize:    authorize,
		scope:        ctx.scope.withVar(&contextVar{name: target.Alias, kind: varRecord, model: model}),
	}
	for _, sub := range ep.Entrypoints {
		sd, err := c.composeEntrypoint(child, sub)
		if err != nil {
			return nil, err
		}
		for _, existing := range out.Entrypoints {
			if existing.Name == sd.Name {
				return nil, errorAt(alerr.ErrDuplicateName, sub.Pos, "entrypoint %s is declared twice in %s", sd.Name, target.Alias)
			}
		}
		out.Entrypoints = append(out.Entrypoints, sd)
	}
	return out, nil
}

// entrypointTarget resolves the target of ep: a model at the top level, a
// reference, relation or query of the parent model below it.
func (c *composer) entrypointTarget(ctx *entrypointContext, ep *ast.Entrypoint) (*definition.TargetDef, *definition.ModelDef, error) {
	var target *definition.TargetDef
	var model *definition.ModelDef

	if len(ctx.parents) == 0 {
		entry, ok := c.models[ep.Target]
		if !ok {
			return nil, nil, c.unknownModel(ep.Target, ep.Pos)
		}
		model = entry.def
		target = &definition.TargetDef{
			Kind:           definition.TargetModel,
			Name:           ep.Target,
			NamePath:       []string{ep.Target},
			RetType:        ep.Target,
			RetCardinality: definition.Many,
			RefKey:         ep.Target,
		}
	} else {
		parent := ctx.parents[len(ctx.parents)-1]
		parentModel := ctx.parentModels[len(ctx.parentModels)-1]
		refs, m, err := c.walk(parentModel, []string{ep.Target}, ep.Pos)
		if err != nil {
			return nil, nil, err
		}
		ref := refs[0]
		if m == nil {
			return nil, nil, errorAt(alerr.ErrTypeMismatch, ep.Pos, "entrypoint target %s.%s is a %s, not a model",
				parentModel.Name, ep.Target, ref.Kind)
		}
		model = m
		target = &definition.TargetDef{
			Name:           ep.Target,
			NamePath:       concat(parent.NamePath, []string{ep.Target}),
			RetType:        m.Name,
			RetCardinality: refCardinality(ref),
			RefKey:         ref.RefKey(),
		}
		switch ref.Kind {
		case definition.RefReference:
			target.Kind = definition.TargetReference
		case definition.RefRelation:
			target.Kind = definition.TargetRelation
		default:
			target.Kind = definition.TargetQuery
		}
	}

	target.Alias = ep.As
	if target.Alias == "" {
		target.Alias = strutil.LowerFirst(target.Name)
	}

	if target.RetCardinality == definition.Many {
		name := ep.Identify
		if name == "" {
			name = "id"
		}
		f := model.Field(name)
		if f == nil {
			return nil, nil, errorAt(alerr.ErrUnresolvedPath, ep.Pos, "cannot identify %s with %q: not a field", target.Alias, name).
				WithHelp(alerr.SuggestSimilar(name, model.MemberNames()))
		}
		if !f.Unique {
			return nil, nil, errorAt(alerr.ErrBlueprintInvalid, ep.Pos, "cannot identify %s with %s.%s: field is not unique",
				target.Alias, model.Name, f.Name)
		}
		target.IdentifyWith = &definition.IdentifyWith{
			Name:      f.Name,
			RefKey:    f.RefKey,
			Type:      f.Type,
			ParamName: target.Alias + "_" + f.Name,
		}
	} else if ep.Identify != "" {
		return nil, nil, errorAt(alerr.ErrBlueprintInvalid, ep.Pos, "%s is a single record and cannot be identified", target.Alias)
	}
	return target, model, nil
}

// endpointKind maps a blueprint endpoint to its definition kind and checks
// it fits the target cardinality.
func endpointKind(target *definition.TargetDef, e *ast.Endpoint) (string, error) {
	many := target.RetCardinality == definition.Many
	switch e.Kind {
	case ast.EndpointList:
		if !many {
			return "", errorAt(alerr.ErrBlueprintInvalid, e.Pos, "%s is a single record and cannot be listed", target.Alias)
		}
		return definition.EndpointList, nil
	case ast.EndpointCreate:
		if target.Kind == definition.TargetReference || target.Kind == definition.TargetQuery {
			return "", errorAt(alerr.ErrUnsupported, e.Pos, "cannot create through %s %s", target.Kind, target.Name)
		}
		return definition.EndpointCreate, nil
	case ast.EndpointDelete:
		if target.Kind == definition.TargetReference {
			return "", errorAt(alerr.ErrUnsupported, e.Pos, "cannot delete through reference %s", target.Name)
		}
		return definition.EndpointDelete, nil
	case ast.EndpointGet:
		return definition.EndpointGet, nil
	case ast.EndpointUpdate:
		return definition.EndpointUpdate, nil
	case ast.EndpointCustom:
		switch e.Cardinality {
		case "", "one":
			return definition.EndpointCustomOne, nil
		case "many":
			if !many {
				return "", errorAt(alerr.ErrBlueprintInvalid, e.Pos, "%s is a single record; custom endpoints on it have cardinality one", target.Alias)
			}
			return definition.EndpointCustomMany, nil
		}
		return "", errorAt(alerr.ErrBlueprintInvalid, e.Pos, "unknown cardinality %q", e.Cardinality).
			WithHelp("use one or many")
	}
	return "", errorAt(alerr.ErrBlueprintInvalid, e.Pos, "unknown endpoint kind %q", e.Kind)
}

var defaultMethods = map[string]string{
	definition.EndpointList:   "GET",
	definition.EndpointGet:    "GET",
	definition.EndpointCreate: "POST",
	definition.EndpointUpdate: "PATCH",
	definition.EndpointDelete: "DELETE",
}

// bindsTarget reports whether the target record is fetched before the
// endpoint's actions run.
func bindsTarget(kind string) bool {
	switch kind {
	case definition.EndpointGet, definition.EndpointUpdate, definition.EndpointDelete, definition.EndpointCustomOne:
		return true
	}
	return false
}

func (c *composer) composeEndpoint(ctx *entrypointContext, target *definition.TargetDef, model *definition.ModelDef,
	ep *ast.Entrypoint, e *ast.Endpoint, authorize []ast.Expr) (*definition.EndpointDef, error) {

	kind, err := endpointKind(target, e)
	if err != nil {
		return nil, err
	}
	out := &definition.EndpointDef{
		Kind:     kind,
		Method:   defaultMethods[kind],
		Pageable: e.Pageable,
		OrderBy:  []*definition.OrderByDef{},
		Actions:  []definition.ActionDef{},
	}

	if kind == definition.EndpointCustomOne || kind == definition.EndpointCustomMany {
		method := strings.ToUpper(e.Method)
		if !slices.Contains(customMethods, method) {
			return nil, errorAt(alerr.ErrBlueprintInvalid, e.Pos, "custom endpoint has invalid method %q", e.Method).
				WithHelp("use one of " + strings.Join(customMethods, ", "))
		}
		if !customPathPattern.MatchString(e.Path) {
			return nil, errorAt(alerr.ErrBlueprintInvalid, e.Pos, "custom endpoint path %q must be a single lowercase segment", e.Path)
		}
		out.Method, out.Path = method, e.Path
	} else if e.Method != "" || e.Path != "" || e.Cardinality != "" {
		return nil, errorAt(alerr.ErrBlueprintInvalid, e.Pos, "only custom endpoints take method, path and cardinality")
	}

	if e.Pageable && kind != definition.EndpointList {
		return nil, errorAt(alerr.ErrBlueprintInvalid, e.Pos, "only list endpoints are pageable")
	}
	listing := kind == definition.EndpointList || kind == definition.EndpointCustomMany
	if !listing && (e.Filter != nil || len(e.OrderBy) > 0) {
		return nil, errorAt(alerr.ErrBlueprintInvalid, e.Pos, "filter and orderBy apply to list endpoints only")
	}
	if (kind == definition.EndpointList || kind == definition.EndpointGet) && len(e.Actions) > 0 {
		return nil, errorAt(alerr.ErrBlueprintInvalid, e.Pos, "%s endpoints cannot have actions", kind)
	}

	s := ctx.scope
	if bindsTarget(kind) {
		s = s.withVar(&contextVar{name: target.Alias, kind: varRecord, model: model})
	}

	block := &actionBlock{
		kind:        kind,
		scope:       s,
		target:      target,
		targetModel: model,
		fieldset:    newFieldsetBuilder(),
		deps:        newSelectDeps(c),
		pos:         e.Pos,
	}
	if target.Kind == definition.TargetRelation && len(ctx.parents) > 0 {
		parentModel := ctx.parentModels[len(ctx.parentModels)-1]
		rel := parentModel.Member(target.Name).Relation
		field, err := c.throughField(rel)
		if err != nil {
			return nil, err
		}
		block.parent = &parentLink{field: field, alias: ctx.parents[len(ctx.parents)-1].Alias}
	}

	if kind != definition.EndpointList && kind != definition.EndpointGet {
		if out.Actions, err = c.composeActions(block, e.Actions); err != nil {
			return nil, err
		}
	}
	for _, a := range out.Actions {
		if respondsAction(a) {
			out.Responds = true
		}
	}
	out.Fieldset = block.fieldset.fieldset()

	var rules []definition.TypedExpr
	for _, rule := range append(slices.Clone(authorize), e.Authorize) {
		if rule == nil {
			continue
		}
		r, err := c.composeExpr(s, rule)
		if err != nil {
			return nil, err
		}
		if err := expectBoolean(r, rule.Position(), "authorize"); err != nil {
			return nil, err
		}
		block.deps.expr(s, r)
		rules = append(rules, r)
	}
	out.Authorize = definition.And(rules...)

	if listing {
		fs := s.withModel(model, target.NamePath)
		fs.sql = true
		if out.Filter, err = c.composeExpr(fs, e.Filter); err != nil {
			return nil, err
		}
		if err := expectBoolean(out.Filter, e.Pos, "filter"); err != nil {
			return nil, err
		}
		block.deps.expr(s, out.Filter)
		if out.OrderBy, err = c.composeOrder(fs, e.OrderBy); err != nil {
			return nil, err
		}
	}

	response := e.Response
	if response == nil {
		response = ep.Response
	}
	if len(response) > 0 {
		out.Response, err = c.composeSelect(s, model, target.NamePath, response)
		if err != nil {
			return nil, err
		}
	} else {
		out.Response = defaultSelect(model, target.NamePath)
	}

	out.Parents = []*definition.TargetWithSelect{}
	for i, p := range ctx.parents {
		m := ctx.parentModels[i]
		out.Parents = append(out.Parents, &definition.TargetWithSelect{
			TargetDef: p,
			Select:    block.deps.get(p.Alias, m, p.NamePath),
		})
	}
	out.Target = &definition.TargetWithSelect{TargetDef: target, Select: []definition.SelectItem{}}
	if bindsTarget(kind) {
		out.Target.Select = block.deps.get(target.Alias, model, target.NamePath)
	}
	if c.def.Authenticator != nil {
		auth := c.models[AuthUserModel].def
		out.AuthSelect = block.deps.get(AuthVar, auth, []string{auth.Name})
	}
	return out, nil
}
