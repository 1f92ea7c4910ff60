// internal/debugger/debugger.go
package debugger

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kr/pretty"

	"bies/internal/bytecode"
	"bies/internal/vm"
)

// BreakpointType selects what a breakpoint matches.
type BreakpointType int

const (
	// InstructionBreakpoint matches one pc of one function.
	InstructionBreakpoint BreakpointType = iota
	// LineBreakpoint matches the first instruction of a line.
	LineBreakpoint
	// FunctionBreakpoint matches entry into a function.
	FunctionBreakpoint
)

type Breakpoint struct {
	ID       int
	Type     BreakpointType
	Function string
	PC       int
	Line     int
	Enabled  bool
	HitCount int
}

func (bp *Breakpoint) String() string {
	switch bp.Type {
	case LineBreakpoint:
		return fmt.Sprintf("line %d", bp.Line)
	case FunctionBreakpoint:
		return "entry of " + bp.Function
	}
	return fmt.Sprintf("%s:%d", bp.Function, bp.PC)
}

// DebugState is what the debugger does at the next instruction.
type DebugState int

const (
	Running DebugState = iota
	Paused
	StepInto
	StepOver
	StepOut
	Terminated
)

// Debugger drives a Runner interactively through its Hook.
type Debugger struct {
	breakpoints map[int]*Breakpoint
	nextBpID    int
	state       DebugState
	stepDepth   int
	in          *bufio.Reader
	out         io.Writer
	source      []string
	watches     []watch
}

type watch struct {
	depth, slot int
}

// NewDebugger starts paused, so the first instruction prompts.
func NewDebugger(in io.Reader, out io.Writer) *Debugger {
	return &Debugger{
		breakpoints: make(map[int]*Breakpoint),
		nextBpID:    1,
		state:       Paused,
		in:          bufio.NewReader(in),
		out:         out,
	}
}

// LoadSource keeps the text the instruction lines refer to, for listings.
func (d *Debugger) LoadSource(content string) {
	d.source = strings.Split(content, "\n")
}

func (d *Debugger) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.out, format, args...)
}

func (d *Debugger) add(bp *Breakpoint) int {
	bp.ID = d.nextBpID
	bp.Enabled = true
	d.breakpoints[bp.ID] = bp
	d.nextBpID++
	d.printf("Breakpoint %d set at %s\n", bp.ID, bp)
	return bp.ID
}

func (d *Debugger) AddBreakpoint(function string, pc int) int {
	return d.add(&Breakpoint{Type: InstructionBreakpoint, Function: function, PC: pc})
}

func (d *Debugger) AddLineBreakpoint(line int) int {
	return d.add(&Breakpoint{Type: LineBreakpoint, Line: line})
}

func (d *Debugger) AddFunctionBreakpoint(function string) int {
	return d.add(&Breakpoint{Type: FunctionBreakpoint, Function: function})
}

func (d *Debugger) RemoveBreakpoint(id int) bool {
	bp, ok := d.breakpoints[id]
	if !ok {
		d.printf("Breakpoint %d not found\n", id)
		return false
	}
	delete(d.breakpoints, id)
	d.printf("Breakpoint %d removed from %s\n", bp.ID, bp)
	return true
}

// Breakpoints returns the breakpoints ordered by id.
func (d *Debugger) Breakpoints() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(d.breakpoints))
	for _, bp := range d.breakpoints {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Debugger) ListBreakpoints() {
	if len(d.breakpoints) == 0 {
		d.printf("No breakpoints set\n")
		return
	}
	d.printf("Breakpoints:\n")
	for _, bp := range d.Breakpoints() {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}
		d.printf("  %d: %s (%s) hits: %d\n", bp.ID, bp, status, bp.HitCount)
	}
}

// CheckBreakpoint reports whether the instruction about to run matches
// an enabled breakpoint, and counts the hit.
func (d *Debugger) CheckBreakpoint(r *vm.Runner, ins bytecode.Instruction) bool {
	hit := false
	for _, bp := range d.Breakpoints() {
		if !bp.Enabled || !matches(bp, r, ins) {
			continue
		}
		bp.HitCount++
		d.printf("\nBreakpoint %d hit at %s (hit count: %d)\n", bp.ID, bp, bp.HitCount)
		hit = true
	}
	if hit {
		d.state = Paused
	}
	return hit
}

func matches(bp *Breakpoint, r *vm.Runner, ins bytecode.Instruction) bool {
	switch bp.Type {
	case InstructionBreakpoint:
		return bp.Function == r.Function() && bp.PC == r.PC()
	case FunctionBreakpoint:
		return bp.Function == r.Function() && r.PC() == 0
	case LineBreakpoint:
		if ins.Line != bp.Line {
			return false
		}
		if r.PC() == 0 {
			return true
		}
		fn, _ := r.Code().Function(r.Function())
		return fn.Instructions[r.PC()-1].Line != bp.Line
	}
	return false
}

// ShowCurrentLocation prints the instruction about to run with its
// neighbours, and the source lines around it when source is loaded.
func (d *Debugger) ShowCurrentLocation(r *vm.Runner, ins bytecode.Instruction) {
	d.printf("\n-> %s:%d  %s  (line %d)\n", r.Function(), r.PC(), ins, ins.Line)

	fn, ok := r.Code().Function(r.Function())
	if ok {
		start := max(0, r.PC()-2)
		end := min(len(fn.Instructions), r.PC()+3)
		for i := start; i < end; i++ {
			marker := "   "
			if i == r.PC() {
				marker = "=> "
			}
			d.printf("%s%4d | %s\n", marker, i, fn.Instructions[i])
		}
	}

	if ins.Line > 0 && ins.Line <= len(d.source) {
		start := max(0, ins.Line-2)
		end := min(len(d.source), ins.Line+1)
		for i := start; i < end; i++ {
			marker := "   "
			if i+1 == ins.Line {
				marker = "-> "
			}
			d.printf("%s%4d | %s\n", marker, i+1, d.source[i])
		}
	}
	d.showWatches(r)
}

func (d *Debugger) ShowCallStack(r *vm.Runner) {
	d.printf("Call Stack:\n")
	for i, sf := range r.CallStack() {
		marker := "   "
		if i == 0 {
			marker = "-> "
		}
		d.printf("%s%d: %s pc %d (line %d)\n", marker, i, sf.Function, sf.PC, sf.Line)
	}
}

func (d *Debugger) ShowStack(r *vm.Runner) {
	stack := r.Stack()
	if len(stack) == 0 {
		d.printf("Stack is empty\n")
		return
	}
	for i := len(stack) - 1; i >= 0; i-- {
		d.printf("  [%d] %s\n", i, vm.ToString(stack[i]))
	}
}

type slotView struct {
	Slot  int
	Type  string
	Value string
}

// ShowFrame dumps the slots of the frame depth levels out.
func (d *Debugger) ShowFrame(r *vm.Runner, depth int) {
	f, ok := r.Frame().Ancestor(depth)
	if !ok {
		d.printf("No frame at depth %d\n", depth)
		return
	}
	views := []slotView{}
	for _, slot := range f.Slots() {
		v, _ := f.Get(slot)
		views = append(views, slotView{Slot: slot, Type: vm.TypeName(v), Value: vm.ToString(v)})
	}
	d.printf("%# v\n", pretty.Formatter(views))
}

func (d *Debugger) lookup(r *vm.Runner, depth, slot int) string {
	f, ok := r.Frame().Ancestor(depth)
	if !ok {
		return "<no frame>"
	}
	v, ok := f.Get(slot)
	if !ok {
		return "<unbound>"
	}
	return vm.ToString(v)
}

func (d *Debugger) showWatches(r *vm.Runner) {
	for _, w := range d.watches {
		d.printf("  watch %d %d = %s\n", w.depth, w.slot, d.lookup(r, w.depth, w.slot))
	}
}

// RunDebugger reads commands until one resumes execution.
func (d *Debugger) RunDebugger(r *vm.Runner) {
	for d.state == Paused {
		d.printf("(bies-debug) ")
		command, err := d.in.ReadString('\n')
		if err != nil && strings.TrimSpace(command) == "" {
			d.state = Terminated
			d.printf("\n")
			return
		}
		d.executeCommand(r, strings.TrimSpace(command))
	}
}

func (d *Debugger) executeCommand(r *vm.Runner, command string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return
	}
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "help", "h":
		d.showHelp()

	case "break", "b":
		d.breakCommand(args)

	case "delete", "d":
		if len(args) != 1 {
			d.printf("Usage: delete <breakpoint_id>\n")
			return
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			d.printf("Invalid breakpoint ID: %s\n", args[0])
			return
		}
		d.RemoveBreakpoint(id)

	case "list", "l":
		d.ListBreakpoints()

	case "continue", "c":
		d.state = Running

	case "step", "s":
		d.state = StepInto

	case "next", "n":
		d.state = StepOver
		d.stepDepth = r.CallDepth()

	case "finish", "f":
		d.state = StepOut
		d.stepDepth = r.CallDepth()

	case "where", "w":
		d.ShowCallStack(r)

	case "stack":
		d.ShowStack(r)

	case "frame":
		depth := 0
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				d.printf("Invalid depth: %s\n", args[0])
				return
			}
			depth = n
		}
		d.ShowFrame(r, depth)

	case "print", "p", "watch":
		if len(args) != 2 {
			d.printf("Usage: %s <depth> <slot>\n", cmd)
			return
		}
		depth, err1 := strconv.Atoi(args[0])
		slot, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			d.printf("Invalid address: %s %s\n", args[0], args[1])
			return
		}
		if cmd == "watch" {
			d.watches = append(d.watches, watch{depth: depth, slot: slot})
		}
		d.printf("%d %d = %s\n", depth, slot, d.lookup(r, depth, slot))

	case "quit", "q":
		d.state = Terminated
		d.printf("Debugging session terminated\n")

	default:
		d.printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
	}
}

// breakCommand accepts "break <line>", "break <fn>" or "break <fn> <pc>".
func (d *Debugger) breakCommand(args []string) {
	switch {
	case len(args) == 1 && bytecode.IsFunctionID(args[0]):
		d.AddFunctionBreakpoint(args[0])
	case len(args) == 1:
		line, err := strconv.Atoi(args[0])
		if err != nil {
			d.printf("Invalid line number: %s\n", args[0])
			return
		}
		d.AddLineBreakpoint(line)
	case len(args) == 2 && bytecode.IsFunctionID(args[0]):
		pc, err := strconv.Atoi(args[1])
		if err != nil {
			d.printf("Invalid pc: %s\n", args[1])
			return
		}
		d.AddBreakpoint(args[0], pc)
	default:
		d.printf("Usage: break <line> | break <$fn> [pc]\n")
	}
}

func (d *Debugger) showHelp() {
	d.printf(`Available commands:
  help, h               - Show this help
  break <line>          - Break at the first instruction of a line
  break <$fn> [pc]      - Break on entry to a function, or at one pc
  delete <id>           - Remove breakpoint by ID
  list                  - List all breakpoints
  continue, c           - Continue execution
  step, s               - Execute one instruction
  next, n               - Step over calls
  finish, f             - Run until the current function returns
  where, w              - Show call stack
  stack                 - Show the operand stack
  frame [depth]         - Dump the slots of a frame
  print <depth> <slot>  - Print one binding
  watch <depth> <slot>  - Print a binding at every stop
  quit, q               - Stop the program
`)
}

func (d *Debugger) GetState() DebugState {
	return d.state
}

func (d *Debugger) SetState(state DebugState) {
	d.state = state
}
