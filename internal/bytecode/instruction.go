package bytecode

import (
	"math"
	"strconv"
	"strings"
)

type OperandKind int

const (
	NumberOperand OperandKind = iota
	StringOperand
	ListOperand
	NullOperand
	// SymbolOperand is bare text: type names and $function ids.
	SymbolOperand
)

// Operand is one literal argument of an instruction.
type Operand struct {
	Kind OperandKind
	Num  float64
	Str  string
	List []Operand
}

func Number(f float64) Operand { return Operand{Kind: NumberOperand, Num: f} }
func Int(n int) Operand        { return Operand{Kind: NumberOperand, Num: float64(n)} }
func String(s string) Operand  { return Operand{Kind: StringOperand, Str: s} }
func Symbol(s string) Operand  { return Operand{Kind: SymbolOperand, Str: s} }
func Null() Operand            { return Operand{Kind: NullOperand} }

func List(items ...Operand) Operand {
	if items == nil {
		items = []Operand{}
	}
	return Operand{Kind: ListOperand, List: items}
}

// AsInt returns the operand as an integer when it is an integral number.
func (o Operand) AsInt() (int, bool) {
	if o.Kind != NumberOperand || o.Num != math.Trunc(o.Num) || math.IsInf(o.Num, 0) {
		return 0, false
	}
	return int(o.Num), true
}

func (o Operand) Equal(other Operand) bool {
	if o.Kind != other.Kind {
		return false
	}
	switch o.Kind {
	case NumberOperand:
		return o.Num == other.Num || (math.IsNaN(o.Num) && math.IsNaN(other.Num))
	case StringOperand, SymbolOperand:
		return o.Str == other.Str
	case ListOperand:
		if len(o.List) != len(other.List) {
			return false
		}
		for i := range o.List {
			if !o.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// String renders the operand in bytecode text form.
func (o Operand) String() string {
	switch o.Kind {
	case NumberOperand:
		return FormatNumber(o.Num)
	case StringOperand:
		return strconv.Quote(o.Str)
	case ListOperand:
		parts := make([]string, len(o.List))
		for i, item := range o.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case NullOperand:
		return "null"
	default:
		return o.Str
	}
}

// FormatNumber is the single number format shared by the bytecode text
// and printed program output.
func FormatNumber(f float64) string {
	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Instruction is one mnemonic with its operands. Line is the source line
// when produced by the compiler, or the bytecode file line when loaded.
type Instruction struct {
	Op       Mnemonic
	Operands []Operand
	Line     int
}

func NewInstruction(op Mnemonic, line int, operands ...Operand) Instruction {
	return Instruction{Op: op, Operands: operands, Line: line}
}

func (i Instruction) String() string {
	if len(i.Operands) == 0 {
		return string(i.Op)
	}
	parts := make([]string, 0, len(i.Operands)+1)
	parts = append(parts, string(i.Op))
	for _, o := range i.Operands {
		parts = append(parts, o.String())
	}
	return strings.Join(parts, " ")
}

// Equal compares mnemonic and operands, ignoring line information.
func (i Instruction) Equal(other Instruction) bool {
	if i.Op != other.Op || len(i.Operands) != len(other.Operands) {
		return false
	}
	for n := range i.Operands {
		if !i.Operands[n].Equal(other.Operands[n]) {
			return false
		}
	}
	return true
}
