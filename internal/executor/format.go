package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// FormatFieldValue coerces an input value to the storage form of t.
// Booleans are true only for true or "true" in any case. Numbers are parsed
// best-effort and anything non-numeric becomes 0. Strings take the text form
// of any value. nil passes through for every type.
func FormatFieldValue(v any, t definition.ScalarType) any {
	if v == nil {
		return nil
	}
	switch t {
	case definition.TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x
		case string:
			return strings.EqualFold(x, "true")
		}
		return false
	case definition.TypeInteger:
		if n, ok := toInt64(v); ok {
			return n
		}
		if f, ok := toFloat64(v); ok {
			if n, ok := floatToInt64(math.Trunc(f)); ok {
				return n
			}
		}
		return int64(0)
	case definition.TypeFloat:
		if f, ok := toFloat64(v); ok {
			return f
		}
		return float64(0)
	case definition.TypeString:
		return stringify(v)
	}
	return v
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) {
			return floatToInt64(x)
		}
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// floatToInt64 converts an integral f, failing outside the int64 range
// where the conversion is undefined. NaN fails too.
func floatToInt64(f float64) (int64, bool) {
	if f >= -(1<<63) && f < 1<<63 {
		return int64(f), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// stringify renders v the way it reads in a blueprint expression.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
