package vm

import (
	"bies/internal/bytecode"
	"bies/internal/errors"
)

// Command executes one instruction against the Runner. Failures are
// raised through the Runner's helpers, so Execute has no error result.
type Command interface {
	Execute(r *Runner, ins bytecode.Instruction)
}

type CommandFunc func(r *Runner, ins bytecode.Instruction)

func (f CommandFunc) Execute(r *Runner, ins bytecode.Instruction) { f(r, ins) }

var commands = map[bytecode.Mnemonic]Command{
	bytecode.OpHalt: CommandFunc(halt),
	bytecode.OpInit: CommandFunc(initEntry),
	bytecode.OpNop:  CommandFunc(func(*Runner, bytecode.Instruction) {}),

	bytecode.OpPop:       CommandFunc(popValue),
	bytecode.OpSwap:      CommandFunc(swap),
	bytecode.OpLoadValue: CommandFunc(loadValue),
	bytecode.OpLoadBind:  CommandFunc(loadBind),
	bytecode.OpStoreBind: CommandFunc(storeBind),

	bytecode.OpLoadFunc: CommandFunc(loadFunc),
	bytecode.OpApply:    CommandFunc(apply),
	bytecode.OpReturn:   CommandFunc(ret),

	bytecode.OpBranch:      CommandFunc(branch),
	bytecode.OpBranchTrue:  CommandFunc(branchIf(true)),
	bytecode.OpBranchFalse: CommandFunc(branchIf(false)),
}

// Lookup returns the Command registered for a mnemonic.
func Lookup(m bytecode.Mnemonic) (Command, bool) {
	c, ok := commands[m]
	return c, ok
}

func register(m bytecode.Mnemonic, f CommandFunc) {
	commands[m] = f
}

// Operand helpers.

func (r *Runner) intOperand(ins bytecode.Instruction, i int) int {
	if i >= len(ins.Operands) {
		r.fail(errors.RuntimeError, "%s is missing operand %d", ins.Op, i+1)
	}
	n, ok := ins.Operands[i].AsInt()
	if !ok {
		r.fail(errors.RuntimeError, "%s expects an integer operand, got %s", ins.Op, ins.Operands[i])
	}
	return n
}

func (r *Runner) symbolOperand(ins bytecode.Instruction) string {
	if len(ins.Operands) != 1 || ins.Operands[0].Kind != bytecode.SymbolOperand {
		r.fail(errors.RuntimeError, "%s expects a single name operand", ins.Op)
	}
	return ins.Operands[0].Str
}

// Control

func halt(r *Runner, _ bytecode.Instruction) {
	r.halted = true
}

func initEntry(r *Runner, _ bytecode.Instruction) {
	r.fail(errors.RuntimeError, "INI declares the entry point and cannot be executed")
}

// Stack and bindings

func popValue(r *Runner, _ bytecode.Instruction) {
	r.pop()
}

func swap(r *Runner, _ bytecode.Instruction) {
	a := r.pop()
	b := r.pop()
	r.push(a)
	r.push(b)
}

func loadValue(r *Runner, ins bytecode.Instruction) {
	if len(ins.Operands) != 1 {
		r.fail(errors.RuntimeError, "LDV expects one operand")
	}
	v, ok := FromOperand(ins.Operands[0])
	if !ok {
		r.fail(errors.RuntimeError, "LDV cannot load %s", ins.Operands[0])
	}
	r.push(v)
}

func (r *Runner) bindFrame(ins bytecode.Instruction) (*Frame, int) {
	depth := r.intOperand(ins, 0)
	slot := r.intOperand(ins, 1)
	f, ok := r.frame.Ancestor(depth)
	if !ok {
		r.fail(errors.RuntimeError, "%s %d %d reaches past the outermost frame", ins.Op, depth, slot)
	}
	return f, slot
}

func loadBind(r *Runner, ins bytecode.Instruction) {
	f, slot := r.bindFrame(ins)
	v, ok := f.Get(slot)
	if !ok {
		r.fail(errors.RuntimeError, "slot %d at depth %d is unbound", slot, r.intOperand(ins, 0))
	}
	r.push(v)
}

func storeBind(r *Runner, ins bytecode.Instruction) {
	v := r.pop()
	f, slot := r.bindFrame(ins)
	f.Set(slot, v)
}

// Functions

func loadFunc(r *Runner, ins bytecode.Instruction) {
	id := r.symbolOperand(ins)
	if _, ok := r.code.Function(id); !ok {
		r.fail(errors.RuntimeError, "LDF %s names no function", id)
	}
	r.push(&Closure{Function: id, Env: r.frame})
}

func apply(r *Runner, ins bytecode.Instruction) {
	k := r.intOperand(ins, 0)
	callee := r.pop()
	c, ok := callee.(*Closure)
	if !ok {
		r.fail(errors.TypeError, "cannot apply a %s", TypeName(callee))
	}
	if len(r.stack) < k {
		r.fail(errors.RuntimeError, "APP %d with only %d values on the stack", k, len(r.stack))
	}
	args := make([]Value, k)
	for i := k - 1; i >= 0; i-- {
		args[i] = r.pop()
	}

	fn, ok := r.code.Function(c.Function)
	if !ok {
		r.fail(errors.RuntimeError, "closure refers to unknown function %s", c.Function)
	}
	if fn.Arity != k {
		r.fail(errors.TypeError, "function %s expects %d argument(s), got %d", fn.ID, fn.Arity, k)
	}

	frame := NewFrame(c.Env)
	for i, a := range args {
		frame.Set(i, a)
	}
	r.contexts.Push(Context{PC: r.pc, Frame: r.frame, Function: r.fn.ID})
	r.frame = frame
	r.fn = fn
	r.pc = -1
	if r.hook != nil {
		r.hook.OnCall(r, c)
	}
}

func ret(r *Runner, _ bytecode.Instruction) {
	v := r.pop()
	ctx, ok := r.contexts.Pop()
	if !ok {
		r.fail(errors.RuntimeError, "RET with no pending call")
	}
	fn, ok := r.code.Function(ctx.Function)
	if !ok {
		r.fail(errors.RuntimeError, "return to unknown function %s", ctx.Function)
	}
	r.fn = fn
	r.pc = ctx.PC
	r.frame = ctx.Frame
	r.push(v)
	if r.hook != nil {
		r.hook.OnReturn(r)
	}
}

// Branches are relative: operand N at index p continues at p+N.

func (r *Runner) jump(ins bytecode.Instruction) {
	n := r.intOperand(ins, 0)
	target := r.pc + n
	if target < 0 || target > len(r.fn.Instructions) {
		r.fail(errors.RuntimeError, "%s %d from %d leaves function %s", ins.Op, n, r.pc, r.fn.ID)
	}
	r.pc += n - 1
}

func branch(r *Runner, ins bytecode.Instruction) {
	r.jump(ins)
}

func branchIf(want bool) CommandFunc {
	return func(r *Runner, ins bytecode.Instruction) {
		if IsTruthy(r.pop()) == want {
			r.jump(ins)
		}
	}
}
