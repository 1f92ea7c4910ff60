package vm

import (
	"math"

	"bies/internal/bytecode"
	"bies/internal/errors"
)

func init() {
	register(bytecode.OpAdd, add)
	register(bytecode.OpSub, numeric(func(a, b float64) float64 { return a - b }))
	register(bytecode.OpMul, numeric(func(a, b float64) float64 { return a * b }))
	register(bytecode.OpDiv, numeric(func(a, b float64) float64 { return a / b }))
	register(bytecode.OpPow, numeric(math.Pow))
	register(bytecode.OpNegate, negate)
	register(bytecode.OpSign, sign)

	register(bytecode.OpEqual, func(r *Runner, _ bytecode.Instruction) {
		b, a := r.pop(), r.pop()
		r.push(boolValue(Equal(a, b)))
	})
	register(bytecode.OpNotEqual, func(r *Runner, _ bytecode.Instruction) {
		b, a := r.pop(), r.pop()
		r.push(boolValue(!Equal(a, b)))
	})
	register(bytecode.OpGreater, ordered(func(c int) bool { return c > 0 }))
	register(bytecode.OpGreaterEqual, ordered(func(c int) bool { return c >= 0 }))
	register(bytecode.OpLess, ordered(func(c int) bool { return c < 0 }))
	register(bytecode.OpLessEqual, ordered(func(c int) bool { return c <= 0 }))

	register(bytecode.OpAnd, logical(func(a, b bool) bool { return a && b }))
	register(bytecode.OpOr, logical(func(a, b bool) bool { return a || b }))
	register(bytecode.OpXor, logical(func(a, b bool) bool { return a != b }))
	register(bytecode.OpNot, func(r *Runner, _ bytecode.Instruction) {
		r.push(boolValue(!IsTruthy(r.pop())))
	})
}

func (r *Runner) number(op bytecode.Mnemonic, v Value) float64 {
	f, ok := v.(float64)
	if !ok {
		r.fail(errors.TypeError, "%s expects a number, got %s", op, TypeName(v))
	}
	return f
}

func add(r *Runner, ins bytecode.Instruction) {
	b, a := r.pop(), r.pop()
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			r.push(x + y)
			return
		}
	case List:
		if y, ok := b.(List); ok {
			out := make(List, 0, len(x)+len(y))
			r.push(append(append(out, x...), y...))
			return
		}
	}
	_, as := a.(string)
	_, bs := b.(string)
	if as || bs {
		r.push(ToString(a) + ToString(b))
		return
	}
	r.fail(errors.TypeError, "cannot add %s and %s", TypeName(a), TypeName(b))
}

func numeric(f func(a, b float64) float64) CommandFunc {
	return func(r *Runner, ins bytecode.Instruction) {
		b := r.number(ins.Op, r.pop())
		a := r.number(ins.Op, r.pop())
		r.push(f(a, b))
	}
}

func negate(r *Runner, ins bytecode.Instruction) {
	r.push(-r.number(ins.Op, r.pop()))
}

func sign(r *Runner, ins bytecode.Instruction) {
	f := r.number(ins.Op, r.pop())
	switch {
	case f > 0:
		r.push(1.0)
	case f < 0:
		r.push(-1.0)
	default:
		r.push(0.0)
	}
}

// ordered compares two numbers or two strings.
func ordered(test func(c int) bool) CommandFunc {
	return func(r *Runner, ins bytecode.Instruction) {
		b, a := r.pop(), r.pop()
		var c int
		switch x := a.(type) {
		case float64:
			y, ok := b.(float64)
			if !ok {
				r.fail(errors.TypeError, "cannot compare number with %s", TypeName(b))
			}
			if math.IsNaN(x) || math.IsNaN(y) {
				r.push(boolValue(false))
				return
			}
			c = compare(x, y)
		case string:
			y, ok := b.(string)
			if !ok {
				r.fail(errors.TypeError, "cannot compare string with %s", TypeName(b))
			}
			c = compare(x, y)
		default:
			r.fail(errors.TypeError, "%s is not ordered", TypeName(a))
		}
		r.push(boolValue(test(c)))
	}
}

func compare[T float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func logical(f func(a, b bool) bool) CommandFunc {
	return func(r *Runner, _ bytecode.Instruction) {
		b, a := r.pop(), r.pop()
		r.push(boolValue(f(IsTruthy(a), IsTruthy(b))))
	}
}
