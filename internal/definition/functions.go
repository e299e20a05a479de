package definition

// Builtin function and operator names used in FunctionExpr and FunctionSetter.
const (
	FnAdd           = "+"
	FnSub           = "-"
	FnMul           = "*"
	FnDiv           = "/"
	FnMod           = "%"
	FnLt            = "<"
	FnLte           = "<="
	FnGt            = ">"
	FnGte           = ">="
	FnIs            = "is"
	FnIsNot         = "is not"
	FnAnd           = "and"
	FnOr            = "or"
	FnNot           = "not"
	FnIn            = "in"
	FnNotIn         = "not in"
	FnConcat        = "concat"
	FnLength        = "length"
	FnLower         = "lower"
	FnUpper         = "upper"
	FnStringify     = "stringify"
	FnNow           = "now"
	FnCryptoHash    = "cryptoHash"
	FnCryptoCompare = "cryptoCompare"
	FnCryptoToken   = "cryptoToken"
)

// FunctionSpec describes a builtin: its arity, result type and whether it can
// only be evaluated in the runtime (never in SQL).
type FunctionSpec struct {
	Name        string
	Arity       int
	Result      func(args []ScalarType) ScalarType
	RuntimeOnly bool
}

func fixed(t ScalarType) func([]ScalarType) ScalarType {
	return func([]ScalarType) ScalarType { return t }
}

// numeric returns float when any operand is float, else integer.
func numeric(args []ScalarType) ScalarType {
	for _, a := range args {
		if a == TypeFloat {
			return TypeFloat
		}
	}
	return TypeInteger
}

var functions = map[string]FunctionSpec{
	FnAdd:           {Name: FnAdd, Arity: 2, Result: numeric},
	FnSub:           {Name: FnSub, Arity: 2, Result: numeric},
	FnMul:           {Name: FnMul, Arity: 2, Result: numeric},
	FnDiv:           {Name: FnDiv, Arity: 2, Result: fixed(TypeFloat)},
	FnMod:           {Name: FnMod, Arity: 2, Result: fixed(TypeInteger)},
	FnLt:            {Name: FnLt, Arity: 2, Result: fixed(TypeBoolean)},
	FnLte:           {Name: FnLte, Arity: 2, Result: fixed(TypeBoolean)},
	FnGt:            {Name: FnGt, Arity: 2, Result: fixed(TypeBoolean)},
	FnGte:           {Name: FnGte, Arity: 2, Result: fixed(TypeBoolean)},
	FnIs:            {Name: FnIs, Arity: 2, Result: fixed(TypeBoolean)},
	FnIsNot:         {Name: FnIsNot, Arity: 2, Result: fixed(TypeBoolean)},
	FnAnd:           {Name: FnAnd, Arity: 2, Result: fixed(TypeBoolean)},
	FnOr:            {Name: FnOr, Arity: 2, Result: fixed(TypeBoolean)},
	FnNot:           {Name: FnNot, Arity: 1, Result: fixed(TypeBoolean)},
	FnIn:            {Name: FnIn, Arity: 2, Result: fixed(TypeBoolean)},
	FnNotIn:         {Name: FnNotIn, Arity: 2, Result: fixed(TypeBoolean)},
	FnConcat:        {Name: FnConcat, Arity: 2, Result: fixed(TypeString)},
	FnLength:        {Name: FnLength, Arity: 1, Result: fixed(TypeInteger)},
	FnLower:         {Name: FnLower, Arity: 1, Result: fixed(TypeString)},
	FnUpper:         {Name: FnUpper, Arity: 1, Result: fixed(TypeString)},
	FnStringify:     {Name: FnStringify, Arity: 1, Result: fixed(TypeString)},
	FnNow:           {Name: FnNow, Arity: 0, Result: fixed(TypeInteger)},
	FnCryptoHash:    {Name: FnCryptoHash, Arity: 1, Result: fixed(TypeString), RuntimeOnly: true},
	FnCryptoCompare: {Name: FnCryptoCompare, Arity: 2, Result: fixed(TypeBoolean), RuntimeOnly: true},
	FnCryptoToken:   {Name: FnCryptoToken, Arity: 0, Result: fixed(TypeString), RuntimeOnly: true},
}

// LookupFunction returns the signature of a builtin.
func LookupFunction(name string) (FunctionSpec, bool) {
	f, ok := functions[name]
	return f, ok
}

// FunctionNames returns every builtin name. SQL writers and evaluators are
// tested against this list to stay total.
func FunctionNames() []string {
	out := make([]string, 0, len(functions))
	for name := range functions {
		out = append(out, name)
	}
	return out
}
