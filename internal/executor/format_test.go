package executor

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gauditech/gaudi-sub004/internal/definition"
)

func TestFormatFieldValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		typ  definition.ScalarType
		want any
	}{
		// booleans
		{"bool_true", true, definition.TypeBoolean, true},
		{"bool_false", false, definition.TypeBoolean, false},
		{"bool_string_true", "true", definition.TypeBoolean, true},
		{"bool_string_mixed_case", "TrUe", definition.TypeBoolean, true},
		{"bool_string_other", "yes", definition.TypeBoolean, false},
		{"bool_number", int64(1), definition.TypeBoolean, false},
		{"bool_nil", nil, definition.TypeBoolean, nil},

		// integers
		{"int_json_number", float64(42), definition.TypeInteger, int64(42)},
		{"int_truncates", 4.7, definition.TypeInteger, int64(4)},
		{"int_string", "17", definition.TypeInteger, int64(17)},
		{"int_string_float", "2.5", definition.TypeInteger, int64(2)},
		{"int_not_numeric", "abc", definition.TypeInteger, int64(0)},
		{"int_decoder_number", json.Number("9"), definition.TypeInteger, int64(9)},
		{"int_out_of_range", 1e300, definition.TypeInteger, int64(0)},
		{"int_negative_out_of_range", -1e300, definition.TypeInteger, int64(0)},
		{"int_string_out_of_range", "1e300", definition.TypeInteger, int64(0)},
		{"int_infinity", math.Inf(1), definition.TypeInteger, int64(0)},
		{"int_nan", math.NaN(), definition.TypeInteger, int64(0)},
		{"int_min", float64(math.MinInt64), definition.TypeInteger, int64(math.MinInt64)},
		{"int_nil", nil, definition.TypeInteger, nil},

		// floats
		{"float_int", int64(3), definition.TypeFloat, float64(3)},
		{"float_string", "1.25", definition.TypeFloat, 1.25},
		{"float_not_numeric", "x", definition.TypeFloat, float64(0)},

		// strings
		{"string", "acme", definition.TypeString, "acme"},
		{"string_from_int", int64(5), definition.TypeString, "5"},
		{"string_from_float", 1.5, definition.TypeString, "1.5"},
		{"string_from_bool", true, definition.TypeString, "true"},
		{"string_nil", nil, definition.TypeString, nil},

		{"untyped_passes_through", int64(1), definition.TypeNull, int64(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatFieldValue(tt.in, tt.typ)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FormatFieldValue(%v, %s) mismatch (-want +got):\n%s", tt.in, tt.typ, diff)
			}
		})
	}
}
