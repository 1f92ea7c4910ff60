package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"

	"bies/internal/bytecode"
	"bies/internal/errors"
)

// ErrStopped is returned by Run when a hook asked execution to stop.
var ErrStopped = pkgerrors.New("execution stopped")

// Hook observes execution. OnInstruction runs before every instruction
// and returning false stops the Runner.
type Hook interface {
	OnInstruction(r *Runner, ins bytecode.Instruction) bool
	OnCall(r *Runner, c *Closure)
	OnReturn(r *Runner)
}

// Runner executes one Code value. It is not safe for concurrent use;
// separate Runners over the same Code are independent.
type Runner struct {
	code     *bytecode.Code
	fn       *bytecode.Function
	pc       int
	frame    *Frame
	globals  *Frame
	stack    []Value
	contexts ContextStack

	out      io.Writer
	in       *bufio.Reader
	hook     Hook
	maxSteps int
	steps    int
	halted   bool
}

type Option func(*Runner)

func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

func WithInput(rd io.Reader) Option {
	return func(r *Runner) { r.in = bufio.NewReader(rd) }
}

func WithHook(h Hook) Option {
	return func(r *Runner) { r.hook = h }
}

// WithMaxSteps bounds the number of executed instructions; 0 means no
// bound.
func WithMaxSteps(n int) Option {
	return func(r *Runner) { r.maxSteps = n }
}

// WithGlobals runs the entry function in an existing outermost frame,
// so bindings survive across programs.
func WithGlobals(f *Frame) Option {
	return func(r *Runner) { r.globals = f }
}

func NewRunner(code *bytecode.Code, opts ...Option) (*Runner, error) {
	entry, ok := code.Function(code.Entry)
	if !ok {
		return nil, errors.NewRuntimeError(fmt.Sprintf("entry point %q names no function", code.Entry), 0)
	}
	r := &Runner{code: code, fn: entry}
	for _, opt := range opts {
		opt(r)
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.in == nil {
		r.in = bufio.NewReader(os.Stdin)
	}
	if r.globals == nil {
		r.globals = NewFrame(nil)
	}
	r.frame = r.globals
	return r, nil
}

// fault carries a runtime failure out of a Command.
type fault struct {
	err *errors.BiesError
}

// Run executes until HLT or the first failure.
func (r *Runner) Run() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			f, ok := rec.(fault)
			if !ok {
				panic(rec)
			}
			err = f.err.WithStack(r.CallStack())
		}
	}()

	for !r.halted {
		if r.pc < 0 || r.pc >= len(r.fn.Instructions) {
			r.fail(errors.RuntimeError, "function %s ran past its last instruction (pc %d)", r.fn.ID, r.pc)
		}
		ins := r.fn.Instructions[r.pc]
		if r.hook != nil && !r.hook.OnInstruction(r, ins) {
			return ErrStopped
		}
		if r.maxSteps > 0 && r.steps >= r.maxSteps {
			r.fail(errors.RuntimeError, "step budget of %d instructions exhausted", r.maxSteps)
		}
		r.steps++

		cmd, ok := Lookup(ins.Op)
		if !ok {
			r.fail(errors.RuntimeError, "unrecognized instruction %s", ins.Op)
		}
		cmd.Execute(r, ins)
		if r.halted {
			break
		}
		r.pc++
	}
	return nil
}

// fail stops the Runner with a runtime failure at the current instruction.
func (r *Runner) fail(t errors.ErrorType, format string, args ...interface{}) {
	line := 0
	if r.pc >= 0 && r.pc < len(r.fn.Instructions) {
		line = r.fn.Instructions[r.pc].Line
	}
	panic(fault{err: errors.New(t, "", line, format, args...)})
}

func (r *Runner) push(v Value) {
	r.stack = append(r.stack, v)
}

func (r *Runner) pop() Value {
	if len(r.stack) == 0 {
		r.fail(errors.RuntimeError, "operand stack underflow")
	}
	v := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	return v
}

// CallStack lists the current position and every pending call,
// innermost first.
func (r *Runner) CallStack() []errors.StackFrame {
	out := []errors.StackFrame{r.position(r.fn.ID, r.pc)}
	items := r.contexts.Items()
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, r.position(items[i].Function, items[i].PC))
	}
	return out
}

func (r *Runner) position(id string, pc int) errors.StackFrame {
	sf := errors.StackFrame{Function: id, PC: pc}
	if fn, ok := r.code.Function(id); ok && pc >= 0 && pc < len(fn.Instructions) {
		sf.Line = fn.Instructions[pc].Line
	}
	return sf
}

// Accessors for hooks and debuggers.

func (r *Runner) Code() *bytecode.Code { return r.code }
func (r *Runner) Function() string     { return r.fn.ID }
func (r *Runner) PC() int              { return r.pc }
func (r *Runner) Frame() *Frame        { return r.frame }
func (r *Runner) Globals() *Frame      { return r.globals }
func (r *Runner) Steps() int           { return r.steps }
func (r *Runner) CallDepth() int       { return r.contexts.Len() }
func (r *Runner) Contexts() []Context  { return r.contexts.Items() }

// Stack returns a copy of the operand stack, bottom first.
func (r *Runner) Stack() []Value {
	return append([]Value(nil), r.stack...)
}
