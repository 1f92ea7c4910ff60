package bytecode

import (
	"strconv"
	"strings"
)

// Function is one compiled function or block. Parent is the lexically
// enclosing function id and is informational only.
type Function struct {
	ID           string
	Arity        int
	Parent       string
	Instructions []Instruction
}

func NewFunction(id string, arity int, parent string) *Function {
	return &Function{ID: id, Arity: arity, Parent: parent}
}

// Emit appends an instruction and returns its index.
func (f *Function) Emit(ins Instruction) int {
	f.Instructions = append(f.Instructions, ins)
	return len(f.Instructions) - 1
}

// Append splices a whole instruction run onto the end of f.
func (f *Function) Append(ins []Instruction) {
	f.Instructions = append(f.Instructions, ins...)
}

func (f *Function) Len() int {
	return len(f.Instructions)
}

// FunctionID renders the $N id used for compiled scope n.
func FunctionID(n int) string {
	return "$" + strconv.Itoa(n)
}

// IsFunctionID reports whether s looks like a $N function id.
func IsFunctionID(s string) bool {
	if !strings.HasPrefix(s, "$") || len(s) < 2 {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

// Code is a complete program: every function keyed by id, kept in
// emission order, plus the entry function.
type Code struct {
	Entry     string
	functions map[string]*Function
	order     []string
}

func NewCode() *Code {
	return &Code{functions: make(map[string]*Function)}
}

// Add registers fn. A function with the same id is replaced in place.
func (c *Code) Add(fn *Function) {
	if _, exists := c.functions[fn.ID]; !exists {
		c.order = append(c.order, fn.ID)
	}
	c.functions[fn.ID] = fn
}

func (c *Code) Function(id string) (*Function, bool) {
	fn, ok := c.functions[id]
	return fn, ok
}

// Functions returns every function in emission order.
func (c *Code) Functions() []*Function {
	out := make([]*Function, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.functions[id])
	}
	return out
}

func (c *Code) Len() int {
	return len(c.order)
}

// InstructionCount totals the instructions of every function.
func (c *Code) InstructionCount() int {
	n := 0
	for _, fn := range c.functions {
		n += len(fn.Instructions)
	}
	return n
}

// Merge adds every function of other to c and adopts its entry point.
func (c *Code) Merge(other *Code) {
	for _, fn := range other.Functions() {
		c.Add(fn)
	}
	if other.Entry != "" {
		c.Entry = other.Entry
	}
}
