package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"bies/internal/bytecode"
)

// Value is any runtime value: float64, string, List, *Closure or nil.
type Value interface{}

// List values are never mutated in place; list instructions build new
// slices, so sharing a backing array is safe.
type List []Value

// TypeName returns the runtime tag checked by CST and INO.
func TypeName(v Value) string {
	switch v.(type) {
	case float64:
		return bytecode.TypeNumber
	case string:
		return bytecode.TypeString
	case List:
		return bytecode.TypeList
	case *Closure:
		return "function"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

// IsTruthy: 0, "", [] and null are false, everything else is true.
func IsTruthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case float64:
		return x != 0
	case string:
		return x != ""
	case List:
		return len(x) > 0
	}
	return true
}

func boolValue(b bool) Value {
	if b {
		return 1.0
	}
	return 0.0
}

// ToString renders a value the way PRN prints it.
func ToString(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case float64:
		return bytecode.FormatNumber(x)
	case string:
		return x
	case List:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = repr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Closure:
		return "<function " + x.Function + ">"
	}
	return fmt.Sprintf("%v", v)
}

// repr quotes strings so list elements stay distinguishable.
func repr(v Value) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return ToString(v)
}

// Equal is deep equality; closures compare by identity.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Closure:
		y, ok := b.(*Closure)
		return ok && x == y
	}
	return false
}

// FromOperand converts an LDV literal to a runtime value. Symbols are
// not values.
func FromOperand(o bytecode.Operand) (Value, bool) {
	switch o.Kind {
	case bytecode.NumberOperand:
		return o.Num, true
	case bytecode.StringOperand:
		return o.Str, true
	case bytecode.NullOperand:
		return nil, true
	case bytecode.ListOperand:
		out := make(List, 0, len(o.List))
		for _, item := range o.List {
			v, ok := FromOperand(item)
			if !ok {
				return nil, false
			}
			out = append(out, v)
		}
		return out, true
	}
	return nil, false
}

func isInteger(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0)
}
