package executor

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args []any
		want any
	}{
		{"add_ints", definition.FnAdd, []any{int64(2), int64(3)}, int64(5)},
		{"add_mixed", definition.FnAdd, []any{int64(2), 0.5}, 2.5},
		{"sub", definition.FnSub, []any{int64(2), int64(3)}, int64(-1)},
		{"mul", definition.FnMul, []any{int64(4), int64(3)}, int64(12)},
		{"div_is_float", definition.FnDiv, []any{int64(3), int64(2)}, 1.5},
		{"mod", definition.FnMod, []any{int64(7), int64(3)}, int64(1)},
		{"add_null", definition.FnAdd, []any{nil, int64(1)}, nil},

		{"lt", definition.FnLt, []any{int64(1), int64(2)}, true},
		{"lte_equal", definition.FnLte, []any{int64(2), 2.0}, true},
		{"gt_strings", definition.FnGt, []any{"b", "a"}, true},
		{"gte_null", definition.FnGte, []any{nil, int64(1)}, false},

		{"is", definition.FnIs, []any{int64(1), 1.0}, true},
		{"is_null", definition.FnIs, []any{nil, nil}, true},
		{"is_not_null", definition.FnIsNot, []any{int64(1), nil}, true},
		{"is_bool", definition.FnIs, []any{true, true}, true},
		{"and", definition.FnAnd, []any{true, false}, false},
		{"or", definition.FnOr, []any{true, false}, true},
		{"not", definition.FnNot, []any{false}, true},
		{"not_null", definition.FnNot, []any{nil}, true},

		{"in", definition.FnIn, []any{"b", []any{"a", "b"}}, true},
		{"in_numeric", definition.FnIn, []any{int64(2), []any{1.0, 2.0}}, true},
		{"not_in", definition.FnNotIn, []any{"c", []any{"a", "b"}}, true},

		{"concat", definition.FnConcat, []any{"org", int64(1)}, "org1"},
		{"concat_null", definition.FnConcat, []any{"a", nil}, "a"},
		{"length", definition.FnLength, []any{"héllo"}, int64(5)},
		{"length_list", definition.FnLength, []any{[]any{1, 2}}, int64(2)},
		{"lower", definition.FnLower, []any{"ACME"}, "acme"},
		{"upper", definition.FnUpper, []any{"acme"}, "ACME"},
		{"upper_null", definition.FnUpper, []any{nil}, nil},
		{"stringify_float", definition.FnStringify, []any{2.5}, "2.5"},
		{"stringify_int", definition.FnStringify, []any{int64(7)}, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.fn, tt.args)
			if err != nil {
				t.Fatalf("Apply(%q) error: %v", tt.fn, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply(%q, %v) mismatch (-want +got):\n%s", tt.fn, tt.args, diff)
			}
		})
	}
}

func TestApplyErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args []any
	}{
		{"unknown", "sqrt", []any{int64(1)}},
		{"arity", definition.FnAdd, []any{int64(1)}},
		{"div_by_zero", definition.FnDiv, []any{int64(1), int64(0)}},
		{"mod_by_zero", definition.FnMod, []any{int64(1), int64(0)}},
		{"add_text", definition.FnMul, []any{"a", int64(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tt.fn, tt.args)
			if !alerr.Is(err, alerr.EInternalError) {
				t.Errorf("Apply(%q) error = %v, want %s", tt.fn, err, alerr.EInternalError)
			}
		})
	}
}

// Every builtin the composer accepts must be evaluable at runtime.
func TestApplyCoversAllFunctions(t *testing.T) {
	prev := HashCost
	HashCost = bcrypt.MinCost
	defer func() { HashCost = prev }()

	for _, name := range definition.FunctionNames() {
		spec, _ := definition.LookupFunction(name)
		args := make([]any, spec.Arity)
		for i := range args {
			args[i] = int64(1)
		}
		if _, err := Apply(name, args); err != nil {
			t.Errorf("Apply(%q) error: %v", name, err)
		}
	}
}

func TestApplyCrypto(t *testing.T) {
	prev := HashCost
	HashCost = bcrypt.MinCost
	defer func() { HashCost = prev }()

	hash, err := Apply(definition.FnCryptoHash, []any{"secret"})
	if err != nil {
		t.Fatalf("cryptoHash error: %v", err)
	}
	if h, _ := hash.(string); !strings.HasPrefix(h, "$2") {
		t.Fatalf("cryptoHash = %v, want a bcrypt hash", hash)
	}

	for _, tt := range []struct {
		clear string
		want  bool
	}{
		{"secret", true},
		{"guess", false},
	} {
		got, err := Apply(definition.FnCryptoCompare, []any{tt.clear, hash})
		if err != nil {
			t.Fatalf("cryptoCompare error: %v", err)
		}
		if got != tt.want {
			t.Errorf("cryptoCompare(%q) = %v, want %v", tt.clear, got, tt.want)
		}
	}

	a, _ := Apply(definition.FnCryptoToken, nil)
	b, _ := Apply(definition.FnCryptoToken, nil)
	if a == b || len(a.(string)) != 36 {
		t.Errorf("cryptoToken = %v, %v; want two distinct uuids", a, b)
	}
}
