package vm

import (
	"unicode/utf8"

	"bies/internal/bytecode"
	"bies/internal/errors"
)

func init() {
	register(bytecode.OpStrEmpty, func(r *Runner, ins bytecode.Instruction) {
		r.push(boolValue(r.str(ins.Op, r.pop()) == ""))
	})
	register(bytecode.OpConcat, concat)
	register(bytecode.OpToString, func(r *Runner, _ bytecode.Instruction) {
		r.push(ToString(r.pop()))
	})
	register(bytecode.OpStrDropLast, dropRune(false))
	register(bytecode.OpStrDropFirst, dropRune(true))

	register(bytecode.OpListEmpty, func(r *Runner, ins bytecode.Instruction) {
		r.push(boolValue(len(r.list(ins.Op, r.pop())) == 0))
	})
	register(bytecode.OpListPrepend, prepend)
	register(bytecode.OpListIndex, index)
	register(bytecode.OpListDrop, drop)
	register(bytecode.OpToList, toList)

	register(bytecode.OpCast, cast)
	register(bytecode.OpInstanceOf, func(r *Runner, ins bytecode.Instruction) {
		want := r.typeOperand(ins)
		r.push(boolValue(TypeName(r.pop()) == want))
	})
	register(bytecode.OpLength, length)
}

func (r *Runner) str(op bytecode.Mnemonic, v Value) string {
	s, ok := v.(string)
	if !ok {
		r.fail(errors.TypeError, "%s expects a string, got %s", op, TypeName(v))
	}
	return s
}

func (r *Runner) list(op bytecode.Mnemonic, v Value) List {
	l, ok := v.(List)
	if !ok {
		r.fail(errors.TypeError, "%s expects a list, got %s", op, TypeName(v))
	}
	return l
}

func (r *Runner) index(op bytecode.Mnemonic, v Value) int {
	f := r.number(op, v)
	if !isInteger(f) {
		r.fail(errors.TypeError, "%s expects a whole number, got %s", op, ToString(f))
	}
	return int(f)
}

func concat(r *Runner, ins bytecode.Instruction) {
	b, a := r.pop(), r.pop()
	if x, ok := a.(List); ok {
		y := r.list(ins.Op, b)
		out := make(List, 0, len(x)+len(y))
		r.push(append(append(out, x...), y...))
		return
	}
	r.push(r.str(ins.Op, a) + r.str(ins.Op, b))
}

func dropRune(first bool) CommandFunc {
	return func(r *Runner, ins bytecode.Instruction) {
		s := r.str(ins.Op, r.pop())
		if s == "" {
			r.fail(errors.RuntimeError, "%s on an empty string", ins.Op)
		}
		if first {
			_, size := utf8.DecodeRuneInString(s)
			r.push(s[size:])
			return
		}
		_, size := utf8.DecodeLastRuneInString(s)
		r.push(s[:len(s)-size])
	}
}

func prepend(r *Runner, ins bytecode.Instruction) {
	v := r.pop()
	l := r.list(ins.Op, r.pop())
	out := make(List, 0, len(l)+1)
	r.push(append(append(out, v), l...))
}

func index(r *Runner, ins bytecode.Instruction) {
	i := r.index(ins.Op, r.pop())
	l := r.list(ins.Op, r.pop())
	if i < 0 || i >= len(l) {
		r.fail(errors.RuntimeError, "index %d out of range for list of length %d", i, len(l))
	}
	r.push(l[i])
}

// drop pops the list first, then k.
func drop(r *Runner, ins bytecode.Instruction) {
	l := r.list(ins.Op, r.pop())
	k := r.index(ins.Op, r.pop())
	if k < 0 || k > len(l) {
		r.fail(errors.RuntimeError, "cannot drop %d element(s) from list of length %d", k, len(l))
	}
	r.push(l[k:])
}

// toList splits strings into one-character strings and wraps scalars.
func toList(r *Runner, _ bytecode.Instruction) {
	switch x := r.pop().(type) {
	case List:
		r.push(x)
	case string:
		out := make(List, 0, utf8.RuneCountInString(x))
		for _, c := range x {
			out = append(out, string(c))
		}
		r.push(out)
	case nil:
		r.push(List{})
	default:
		r.push(List{x})
	}
}

func (r *Runner) typeOperand(ins bytecode.Instruction) string {
	name := r.symbolOperand(ins)
	switch name {
	case bytecode.TypeNumber, bytecode.TypeString, bytecode.TypeList:
		return name
	}
	r.fail(errors.RuntimeError, "%s: unknown type %q", ins.Op, name)
	return ""
}

// cast asserts the runtime type and leaves the value in place.
func cast(r *Runner, ins bytecode.Instruction) {
	want := r.typeOperand(ins)
	v := r.pop()
	if got := TypeName(v); got != want {
		r.fail(errors.TypeError, "expected %s, got %s", want, got)
	}
	r.push(v)
}

func length(r *Runner, ins bytecode.Instruction) {
	switch x := r.pop().(type) {
	case string:
		r.push(float64(utf8.RuneCountInString(x)))
	case List:
		r.push(float64(len(x)))
	default:
		r.fail(errors.TypeError, "LEN expects a string or list, got %s", TypeName(x))
	}
}
