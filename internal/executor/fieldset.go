package executor

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// Issue codes of request validation.
const (
	IssueRequired          = "required"
	IssueNotNull           = "notNull"
	IssueType              = "type"
	IssueHook              = "hook"
	IssueReferenceNotFound = "referenceNotFound"
	IssueValidate          = "validate"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateFieldset checks input against fs and records every problem in
// issues. Only hook failures other than a rejected value are returned as
// errors.
func (x *Executor) ValidateFieldset(ctx context.Context, fs definition.Fieldset, input map[string]any, issues *alerr.ValidationErrors) error {
	if fs == nil {
		return nil
	}
	return x.validateNode(ctx, fs, nil, input, true, issues)
}

func (x *Executor) validateNode(ctx context.Context, fs definition.Fieldset, path []string, v any, present bool,
	issues *alerr.ValidationErrors) error {

	switch fs := fs.(type) {
	case *definition.FieldsetRecord:
		if present && v == nil {
			if !fs.Nullable && len(path) > 0 {
				issues.Add(path, IssueNotNull, "must not be null")
			}
			return nil
		}
		if !present && fs.Nullable {
			return nil
		}
		rec, ok := v.(map[string]any)
		if present && !ok {
			issues.Add(path, IssueType, "must be an object")
			return nil
		}
		keys := make([]string, 0, len(fs.Record))
		for k := range fs.Record {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child, ok := rec[k]
			if err := x.validateNode(ctx, fs.Record[k], append(slices.Clone(path), k), child, ok, issues); err != nil {
				return err
			}
		}
		return nil

	case *definition.FieldsetField:
		if !present {
			if fs.Required {
				issues.Add(path, IssueRequired, "is required")
			}
			return nil
		}
		if v == nil {
			if !fs.Nullable {
				issues.Add(path, IssueNotNull, "must not be null")
			}
			return nil
		}
		if !hasType(v, fs.Type) {
			issues.AddIssue(alerr.FieldIssue{
				Path:    path,
				Code:    IssueType,
				Message: fmt.Sprintf("must be a %s", fs.Type),
				Params:  map[string]any{"type": string(fs.Type)},
			})
			return nil
		}
		for _, val := range fs.Validators {
			if err := x.runValidator(ctx, val, path, v, issues); err != nil {
				return err
			}
		}
	}
	return nil
}

// hasType reports whether a decoded JSON value fits t.
func hasType(v any, t definition.ScalarType) bool {
	switch t {
	case definition.TypeString:
		_, ok := v.(string)
		return ok
	case definition.TypeBoolean:
		_, ok := v.(bool)
		return ok
	case definition.TypeInteger:
		if _, ok := v.(string); ok {
			return false
		}
		f, ok := toFloat64(v)
		_, isBool := v.(bool)
		return ok && !isBool && f == math.Trunc(f)
	case definition.TypeFloat:
		if _, ok := v.(string); ok {
			return false
		}
		_, isBool := v.(bool)
		_, ok := toFloat64(v)
		return ok && !isBool
	}
	return true
}

func (x *Executor) runValidator(ctx context.Context, val *definition.ValidatorDef, path []string, v any,
	issues *alerr.ValidationErrors) error {

	if val.Kind == "hook" {
		if x.hooks == nil {
			return alerr.New(alerr.EInternalError, "field has a hook validator but no hook runner is configured")
		}
		ok, err := x.hooks.Invoke(ctx, val.Hook, map[string]any{"value": v})
		if err != nil {
			return err
		}
		if ok != true {
			issues.AddIssue(alerr.FieldIssue{
				Path:    path,
				Code:    IssueHook,
				Message: fmt.Sprintf("failed %s validation", val.Name),
				Params:  map[string]any{"validator": val.Name},
			})
		}
		return nil
	}

	var (
		arg  any
		pass bool
		msg  string
	)
	if len(val.Args) > 0 {
		arg = val.Args[0]
	}
	switch val.Name {
	case "minLength":
		n, _ := toInt64(arg)
		s, _ := v.(string)
		pass, msg = int64(utf8.RuneCountInString(s)) >= n, fmt.Sprintf("must be at least %d characters long", n)
	case "maxLength":
		n, _ := toInt64(arg)
		s, _ := v.(string)
		pass, msg = int64(utf8.RuneCountInString(s)) <= n, fmt.Sprintf("must be at most %d characters long", n)
	case "min":
		c, ok := compare(v, arg)
		pass, msg = ok && c >= 0, fmt.Sprintf("must be at least %s", stringify(arg))
	case "max":
		c, ok := compare(v, arg)
		pass, msg = ok && c <= 0, fmt.Sprintf("must be at most %s", stringify(arg))
	case "isEmail":
		s, _ := v.(string)
		pass, msg = emailPattern.MatchString(s), "must be an email address"
	case "isIn":
		pass = slices.ContainsFunc(val.Args, func(a any) bool { return equal(v, a) })
		msg = "must be one of the allowed values"
	default:
		return alerr.Newf(alerr.EInternalError, "unknown validator %q", val.Name)
	}
	if !pass {
		issues.AddIssue(alerr.FieldIssue{
			Path:    path,
			Code:    val.Name,
			Message: msg,
			Params:  map[string]any{"args": val.Args},
		})
	}
	return nil
}
