// internal/debugger/vm_hook.go
package debugger

import (
	"fmt"
	"io"

	"bies/internal/bytecode"
	"bies/internal/logging"
	"bies/internal/vm"
)

// VMDebugHook connects a Debugger to a Runner.
type VMDebugHook struct {
	debugger *Debugger
}

func NewVMDebugHook(debugger *Debugger) *VMDebugHook {
	return &VMDebugHook{debugger: debugger}
}

// OnInstruction is called before each instruction. Returning false
// stops the Runner.
func (h *VMDebugHook) OnInstruction(r *vm.Runner, ins bytecode.Instruction) bool {
	d := h.debugger
	if d.GetState() == Terminated {
		return false
	}

	pause := d.CheckBreakpoint(r, ins)
	switch d.GetState() {
	case Paused, StepInto:
		pause = true
	case StepOver:
		pause = pause || r.CallDepth() <= d.stepDepth
	case StepOut:
		pause = pause || r.CallDepth() < d.stepDepth
	}
	if !pause {
		return true
	}

	d.SetState(Paused)
	d.ShowCurrentLocation(r, ins)
	d.RunDebugger(r)
	return d.GetState() != Terminated
}

func (h *VMDebugHook) OnCall(*vm.Runner, *vm.Closure) {}

func (h *VMDebugHook) OnReturn(*vm.Runner) {}

// Tracer prints every instruction before it runs, prefixed by the id of
// the function it belongs to. Terminals get it in red.
type Tracer struct {
	out   io.Writer
	color bool
}

func NewTracer(out io.Writer) *Tracer {
	return &Tracer{out: out, color: logging.IsTerminal(out)}
}

func (t *Tracer) OnInstruction(r *vm.Runner, ins bytecode.Instruction) bool {
	if t.color {
		fmt.Fprintf(t.out, "\x1b[31m%s %s\x1b[0m\n", r.Function(), ins)
	} else {
		fmt.Fprintf(t.out, "%s %s\n", r.Function(), ins)
	}
	return true
}

func (t *Tracer) OnCall(*vm.Runner, *vm.Closure) {}

func (t *Tracer) OnReturn(*vm.Runner) {}

var (
	_ vm.Hook = (*VMDebugHook)(nil)
	_ vm.Hook = (*Tracer)(nil)
)
