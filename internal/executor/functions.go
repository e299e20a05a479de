package executor

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// HashCost is the bcrypt cost of cryptoHash.
var HashCost = bcrypt.DefaultCost

// Apply evaluates the builtin name over already evaluated arguments.
// Arithmetic and comparisons on nil yield nil and false the way SQL NULL
// does.
func Apply(name string, args []any) (any, error) {
	spec, ok := definition.LookupFunction(name)
	if !ok {
		return nil, alerr.Newf(alerr.EInternalError, "unknown function %q", name)
	}
	if len(args) != spec.Arity {
		return nil, alerr.Newf(alerr.EInternalError, "%s takes %d arguments, got %d", name, spec.Arity, len(args))
	}

	switch name {
	case definition.FnAdd, definition.FnSub, definition.FnMul, definition.FnDiv, definition.FnMod:
		return arithmetic(name, args[0], args[1])

	case definition.FnLt, definition.FnLte, definition.FnGt, definition.FnGte:
		c, ok := compare(args[0], args[1])
		if !ok {
			return false, nil
		}
		switch name {
		case definition.FnLt:
			return c < 0, nil
		case definition.FnLte:
			return c <= 0, nil
		case definition.FnGt:
			return c > 0, nil
		}
		return c >= 0, nil

	case definition.FnIs:
		return equal(args[0], args[1]), nil
	case definition.FnIsNot:
		return !equal(args[0], args[1]), nil
	case definition.FnAnd:
		return truthy(args[0]) && truthy(args[1]), nil
	case definition.FnOr:
		return truthy(args[0]) || truthy(args[1]), nil
	case definition.FnNot:
		return !truthy(args[0]), nil

	case definition.FnIn, definition.FnNotIn:
		in := slices.ContainsFunc(list(args[1]), func(e any) bool { return equal(args[0], e) })
		if name == definition.FnNotIn {
			return !in, nil
		}
		return in, nil

	case definition.FnConcat:
		return stringify(args[0]) + stringify(args[1]), nil
	case definition.FnLength:
		switch x := args[0].(type) {
		case nil:
			return nil, nil
		case string:
			return int64(utf8.RuneCountInString(x)), nil
		}
		return int64(len(list(args[0]))), nil
	case definition.FnLower:
		if args[0] == nil {
			return nil, nil
		}
		return strings.ToLower(stringify(args[0])), nil
	case definition.FnUpper:
		if args[0] == nil {
			return nil, nil
		}
		return strings.ToUpper(stringify(args[0])), nil
	case definition.FnStringify:
		return stringify(args[0]), nil
	case definition.FnNow:
		return time.Now().UnixMilli(), nil

	case definition.FnCryptoHash:
		hash, err := bcrypt.GenerateFromPassword([]byte(stringify(args[0])), HashCost)
		if err != nil {
			return nil, alerr.Wrap(alerr.EInternalError, err, "failed to hash value")
		}
		return string(hash), nil
	case definition.FnCryptoCompare:
		if args[0] == nil || args[1] == nil {
			return false, nil
		}
		err := bcrypt.CompareHashAndPassword([]byte(stringify(args[1])), []byte(stringify(args[0])))
		return err == nil, nil
	case definition.FnCryptoToken:
		return uuid.NewString(), nil
	}
	return nil, alerr.Newf(alerr.EInternalError, "function %q has no runtime implementation", name)
}

func arithmetic(name string, a, b any) (any, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt && name != definition.FnDiv {
		switch name {
		case definition.FnAdd:
			return ai + bi, nil
		case definition.FnSub:
			return ai - bi, nil
		case definition.FnMul:
			return ai * bi, nil
		}
		if bi == 0 {
			return nil, alerr.New(alerr.EInternalError, "modulo by zero")
		}
		return ai % bi, nil
	}
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if !aok || !bok {
		return nil, alerr.Newf(alerr.EInternalError, "%s needs numbers, got %s and %s", name, typeName(a), typeName(b))
	}
	switch name {
	case definition.FnAdd:
		return af + bf, nil
	case definition.FnSub:
		return af - bf, nil
	case definition.FnMul:
		return af * bf, nil
	case definition.FnMod:
		if int64(bf) == 0 {
			return nil, alerr.New(alerr.EInternalError, "modulo by zero")
		}
		return int64(af) % int64(bf), nil
	}
	if bf == 0 {
		return nil, alerr.New(alerr.EInternalError, "division by zero")
	}
	return af / bf, nil
}

// compare orders numbers numerically and everything else as text.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if _, isStr := a.(string); !isStr {
		if af, ok := toFloat64(a); ok {
			if bf, ok := toFloat64(b); ok {
				switch {
				case af < bf:
					return -1, true
				case af > bf:
					return 1, true
				}
				return 0, true
			}
		}
	}
	return strings.Compare(stringify(a), stringify(b)), true
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	c, ok := compare(a, b)
	return ok && c == 0
}

func truthy(v any) bool {
	b, _ := v.(bool)
	return b
}

func list(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	}
	return nil
}
