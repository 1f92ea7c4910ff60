package bytecode

// Mnemonic names one instruction of the stack machine. The text form of
// the bytecode uses the mnemonic verbatim.
type Mnemonic string

const (
	// Control
	OpHalt Mnemonic = "HLT"
	OpInit Mnemonic = "INI"
	OpNop  Mnemonic = "NOP"

	// Stack and bindings
	OpPop       Mnemonic = "POP"
	OpSwap      Mnemonic = "SWP"
	OpLoadValue Mnemonic = "LDV"
	OpLoadBind  Mnemonic = "BLD"
	OpStoreBind Mnemonic = "BST"

	// Functions
	OpLoadFunc Mnemonic = "LDF"
	OpApply    Mnemonic = "APP"
	OpReturn   Mnemonic = "RET"

	// Arithmetic
	OpAdd    Mnemonic = "ADD"
	OpSub    Mnemonic = "SUB"
	OpMul    Mnemonic = "MUL"
	OpDiv    Mnemonic = "DIV"
	OpPow    Mnemonic = "POW"
	OpNegate Mnemonic = "NEG"
	OpSign   Mnemonic = "SGN"

	// Comparison and logic
	OpEqual        Mnemonic = "EQ"
	OpNotEqual     Mnemonic = "NEQ"
	OpGreater      Mnemonic = "GT"
	OpGreaterEqual Mnemonic = "GTE"
	OpLess         Mnemonic = "LT"
	OpLessEqual    Mnemonic = "LTE"
	OpAnd          Mnemonic = "AND"
	OpOr           Mnemonic = "OR"
	OpXor          Mnemonic = "XOR"
	OpNot          Mnemonic = "NOT"

	// Branches, all relative to the branch instruction itself
	OpBranch      Mnemonic = "BR"
	OpBranchTrue  Mnemonic = "BT"
	OpBranchFalse Mnemonic = "BF"

	// I/O
	OpPrint Mnemonic = "PRN"
	OpInput Mnemonic = "INP"

	// Strings
	OpStrEmpty     Mnemonic = "SNT"
	OpConcat       Mnemonic = "CAT"
	OpToString     Mnemonic = "TOS"
	OpStrDropLast  Mnemonic = "STK"
	OpStrDropFirst Mnemonic = "SRK"

	// Lists
	OpListEmpty   Mnemonic = "LNT"
	OpListPrepend Mnemonic = "LIN"
	OpListIndex   Mnemonic = "LTK"
	OpListDrop    Mnemonic = "LRK"
	OpToList      Mnemonic = "TOL"

	// Type tags
	OpCast       Mnemonic = "CST"
	OpInstanceOf Mnemonic = "INO"

	OpLength Mnemonic = "LEN"
)

// operandCounts lists every known mnemonic with the number of operands
// it takes.
var operandCounts = map[Mnemonic]int{
	OpHalt: 0, OpInit: 1, OpNop: 0,
	OpPop: 0, OpSwap: 0, OpLoadValue: 1, OpLoadBind: 2, OpStoreBind: 2,
	OpLoadFunc: 1, OpApply: 1, OpReturn: 0,
	OpAdd: 0, OpSub: 0, OpMul: 0, OpDiv: 0, OpPow: 0, OpNegate: 0, OpSign: 0,
	OpEqual: 0, OpNotEqual: 0, OpGreater: 0, OpGreaterEqual: 0, OpLess: 0, OpLessEqual: 0,
	OpAnd: 0, OpOr: 0, OpXor: 0, OpNot: 0,
	OpBranch: 1, OpBranchTrue: 1, OpBranchFalse: 1,
	OpPrint: 0, OpInput: 0,
	OpStrEmpty: 0, OpConcat: 0, OpToString: 0, OpStrDropLast: 0, OpStrDropFirst: 0,
	OpListEmpty: 0, OpListPrepend: 0, OpListIndex: 0, OpListDrop: 0, OpToList: 0,
	OpCast: 1, OpInstanceOf: 1,
	OpLength: 0,
}

// OperandCount reports how many operands m takes and whether m is a
// known mnemonic.
func OperandCount(m Mnemonic) (int, bool) {
	n, ok := operandCounts[m]
	return n, ok
}

// Known reports whether m is part of the instruction set.
func Known(m Mnemonic) bool {
	_, ok := operandCounts[m]
	return ok
}

// IsBranch reports whether m is a relative branch.
func IsBranch(m Mnemonic) bool {
	return m == OpBranch || m == OpBranchTrue || m == OpBranchFalse
}

// Type names accepted by CST and INO.
const (
	TypeNumber = "number"
	TypeString = "string"
	TypeList   = "list"
)
