package vm

import (
	"bytes"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bies/internal/bytecode"
	"bies/internal/compiler"
	"bies/internal/errors"
	"bies/internal/parser"
)

func compile(t *testing.T, src string) *bytecode.Code {
	t.Helper()
	code, err := compiler.CompileSource(src, "test.bies")
	require.NoError(t, err)
	return code
}

func load(t *testing.T, text string) *bytecode.Code {
	t.Helper()
	code, err := bytecode.ParseString(text, "test.basm")
	require.NoError(t, err)
	return code
}

func run(t *testing.T, code *bytecode.Code, opts ...Option) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r, err := NewRunner(code, append([]Option{WithOutput(&out), WithInput(strings.NewReader(""))}, opts...)...)
	require.NoError(t, err)
	err = r.Run()
	return out.String(), err
}

func runSource(t *testing.T, src string) string {
	t.Helper()
	out, err := run(t, compile(t, src))
	require.NoError(t, err)
	return out
}

func TestPrograms(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"let and print", "let x = 5\nprint(x + 3)", "8\n"},
		{"hello", "fun hello() => \"Hello World!\"\nprint(hello())", "Hello World!\n"},
		{"closure", "let base = 10\nfun adder(a) => (b) => a + b + base\nprint(adder(1)(2))", "13\n"},
		{"recursion", "fun sum(l) => if emptylist(l) then 0 else l[0] + sum(drop(l, 1))\nprint(sum([1, 2, 3]))", "6\n"},
		{"let in captured", "fun make(n) => let { k = n * 2 } in (x) => x + k\nprint(make(2)(3))", "7\n"},
		{"factorial", "fun fact(n) => if n <= 1 then 1 else n * fact(n - 1)\nprint(fact(10))", "3628800\n"},
		{"shared binding", "var x = 1\nfun f() => x\nx = 2\nprint(f())", "2\n"},
		{"missing else", "print(if 0 then 1)", "null\n"},
		{"division", "print(10 / 4)", "2.5\n"},
		{"power", "print(2 ** 10)", "1024\n"},
		{"string concat", "print(\"a\" + 1)", "a1\n"},
		{"list append", "print([1] + [2, 3])", "[1, 2, 3]\n"},
		{"list literal", "print([1, \"a\", []])", "[1, \"a\", []]\n"},
		{"prepend", "print(prepend(1, [2]))", "[1, 2]\n"},
		{"drop", "print(drop([1, 2, 3], 1))", "[2, 3]\n"},
		{"drop evaluates in order", "let l = [1, 2]\nprint(drop(prepend(0, l), len(l)))", "[2]\n"},
		{"tolist", "print(tolist(\"ab\"))", "[\"a\", \"b\"]\n"},
		{"len counts runes", "print(len(\"héllo\"))", "5\n"},
		{"string ends", "print(dropfirst(\"abc\"))\nprint(droplast(\"abc\"))", "bc\nab\n"},
		{"sign", "print(sign(-3))\nprint(sign(0))", "-1\n0\n"},
		{"logic", "print(xor(1, 0))\nprint(1 && 0)\nprint(!\"\")", "1\n0\n1\n"},
		{"deep equality", "print([1, [2]] == [1, [2]])\nprint(1 != \"1\")", "1\n1\n"},
		{"string order", "print(\"a\" < \"b\")", "1\n"},
		{"types", "print(num(5))\nprint(isstr(1))\nprint(islist([]))", "5\n0\n1\n"},
		{"tostr", "print(tostr(12) + \"!\")", "12!\n"},
		{"cat", "print(cat(\"a\", \"b\"))", "ab\n"},
		{"empty checks", "print(emptystr(\"\"))\nprint(emptylist([0]))", "1\n0\n"},
		{"print value", "let v = print(1)\nprint(v)", "1\nnull\n"},
		{"initializer reads outer", "let x = 1\nprint(let { x = x + 1 } in x)\nprint(x)", "2\n1\n"},
		{"recursive lambda", "let count = (n) => if n <= 0 then 0 else 1 + count(n - 1)\nprint(count(4))", "4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runSource(t, tt.src))
		})
	}
}

func TestTextProgram(t *testing.T) {
	code := load(t, `
$FUN $1 args:0 parent:$0
LDV "Hello World!"
RET
$END $1
$FUN $0 args:0 parent:$0
LDF $1
BST 0 0
BLD 0 0
APP 0
PRN
HLT
$END $0
INI $0
`)
	out, err := run(t, code)
	require.NoError(t, err)
	assert.Equal(t, "Hello World!\n", out)
}

func TestListDropTakesListFromTop(t *testing.T) {
	code := load(t, `
$FUN $0 args:0 parent:$0
LDV 1
LDV [1, 2, 3]
NOP
LRK
PRN
HLT
$END $0
INI $0
`)
	out, err := run(t, code)
	require.NoError(t, err)
	assert.Equal(t, "[2, 3]\n", out)
}

func TestBranchesLand(t *testing.T) {
	tests := []struct {
		cond string
		op   string
		want string
	}{
		{"0", "BF", "else\n"},
		{"1", "BF", "then\n"},
		{"1", "BT", "else\n"},
		{"\"\"", "BT", "then\n"},
	}
	for _, tt := range tests {
		t.Run(tt.op+" "+tt.cond, func(t *testing.T) {
			code := load(t, "$FUN $0 args:0 parent:$0\nLDV "+tt.cond+"\n"+tt.op+" 3\nLDV \"then\"\nBR 2\nLDV \"else\"\nPRN\nHLT\n$END $0\nINI $0\n")
			out, err := run(t, code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRuntimeFailures(t *testing.T) {
	main := func(body string) string {
		return "$FUN $0 args:0 parent:$0\n" + body + "\n$END $0\nINI $0\n"
	}
	tests := []struct {
		name string
		code *bytecode.Code
		kind errors.ErrorType
		msg  string
	}{
		{"arity", load(t, "$FUN $1 args:1 parent:$0\nBLD 0 0\nRET\n$END $1\n"+main("LDF $1\nAPP 0\nHLT")),
			errors.TypeError, "expects 1 argument(s), got 0"},
		{"unbound slot", load(t, main("BLD 0 3\nHLT")), errors.RuntimeError, "slot 3 at depth 0 is unbound"},
		{"unknown mnemonic", load(t, main("FOO\nHLT")), errors.RuntimeError, "unrecognized instruction FOO"},
		{"return underflow", load(t, main("LDV 1\nRET")), errors.RuntimeError, "RET with no pending call"},
		{"run off the end", load(t, main("LDV 1")), errors.RuntimeError, "ran past its last instruction"},
		{"branch out of range", load(t, main("BR 7\nHLT")), errors.RuntimeError, "leaves function $0"},
		{"stack underflow", load(t, main("POP\nHLT")), errors.RuntimeError, "operand stack underflow"},
		{"executed INI", executedInit(), errors.RuntimeError, "cannot be executed"},
		{"cast mismatch", compile(t, "print(num(\"a\"))"), errors.TypeError, "expected number, got string"},
		{"index bounds", compile(t, "print([1][3])"), errors.RuntimeError, "index 3 out of range"},
		{"drop bounds", compile(t, "print(drop([1], 2))"), errors.RuntimeError, "cannot drop 2"},
		{"empty string", compile(t, "print(droplast(\"\"))"), errors.RuntimeError, "empty string"},
		{"apply a number", compile(t, "let f = 1\nprint(f(2))"), errors.TypeError, "cannot apply a number"},
		{"bad operands", compile(t, "print(1 - \"a\")"), errors.TypeError, "SUB expects a number"},
		{"unordered", compile(t, "print([1] < [2])"), errors.TypeError, "list is not ordered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.code)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

// executedInit builds by hand what the loader refuses to accept.
func executedInit() *bytecode.Code {
	fn := bytecode.NewFunction("$0", 0, "$0")
	fn.Emit(bytecode.NewInstruction(bytecode.OpInit, 1, bytecode.Symbol("$0")))
	fn.Emit(bytecode.NewInstruction(bytecode.OpHalt, 2))
	code := bytecode.NewCode()
	code.Add(fn)
	code.Entry = "$0"
	return code
}

func TestCallStackOnFailure(t *testing.T) {
	_, err := run(t, compile(t, "fun at(l) => l[5]\nlet x = 1\nprint(at([1]))"))
	require.Error(t, err)
	be, ok := err.(*errors.BiesError)
	require.True(t, ok)
	require.Len(t, be.CallStack, 2)
	assert.Equal(t, "$1", be.CallStack[0].Function)
	assert.Equal(t, 1, be.CallStack[0].Line)
	assert.Equal(t, "$0", be.CallStack[1].Function)
	assert.Equal(t, 3, be.CallStack[1].Line)
	assert.Contains(t, err.Error(), "Call Stack:")
}

func TestInput(t *testing.T) {
	code := compile(t, "let name = input(\"who? \")\nprint(\"hi \" + name)\nprint(len(input()))")
	out, err := run(t, code, WithInput(strings.NewReader("bob\r\n")))
	require.NoError(t, err)
	assert.Equal(t, "who? \nhi bob\n0\n", out)
}

func TestMaxSteps(t *testing.T) {
	_, err := run(t, compile(t, "fun spin(n) => spin(n + 1)\nspin(0)"), WithMaxSteps(500))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step budget of 500")
}

func TestGlobalsPersist(t *testing.T) {
	c := compiler.New("<repl>")
	globals := NewFrame(nil)
	merged := bytecode.NewCode()

	step := func(src string) string {
		prog, err := parser.ParseSource(src, "<repl>")
		require.NoError(t, err)
		code, err := c.Compile(prog)
		require.NoError(t, err)
		merged.Merge(code)
		out, err := run(t, merged, WithGlobals(globals))
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, "", step("let x = 41\nfun inc(v) => v + 1"))
	assert.Equal(t, "42\n", step("print(inc(x))"))
	assert.Equal(t, []int{0, 1}, globals.Slots())
}

type recordingHook struct {
	limit   int
	seen    []bytecode.Mnemonic
	calls   int
	returns int
}

func (h *recordingHook) OnInstruction(_ *Runner, ins bytecode.Instruction) bool {
	if h.limit > 0 && len(h.seen) == h.limit {
		return false
	}
	h.seen = append(h.seen, ins.Op)
	return true
}

func (h *recordingHook) OnCall(*Runner, *Closure) { h.calls++ }
func (h *recordingHook) OnReturn(*Runner)         { h.returns++ }

func TestHook(t *testing.T) {
	code := compile(t, "fun hello() => \"hi\"\nprint(hello())")

	h := &recordingHook{}
	_, err := run(t, code, WithHook(h))
	require.NoError(t, err)
	assert.Equal(t, []bytecode.Mnemonic{"LDF", "BST", "BLD", "APP", "LDV", "RET", "PRN", "HLT"}, h.seen)
	assert.Equal(t, 1, h.calls)
	assert.Equal(t, 1, h.returns)

	stop := &recordingHook{limit: 3}
	out, err := run(t, code, WithHook(stop))
	assert.True(t, pkgerrors.Is(err, ErrStopped))
	assert.Empty(t, out)
}

func TestRunnerState(t *testing.T) {
	r, err := NewRunner(load(t, "$FUN $0 args:0 parent:$0\nLDV 1\nLDV \"two\"\nSWP\nHLT\n$END $0\nINI $0\n"))
	require.NoError(t, err)
	require.NoError(t, r.Run())
	assert.Equal(t, []Value{"two", 1.0}, r.Stack())
	assert.Equal(t, 4, r.Steps())
	assert.Equal(t, "$0", r.Function())
	assert.Equal(t, 0, r.CallDepth())
}

func TestFrames(t *testing.T) {
	root := NewFrame(nil)
	child := NewFrame(root)
	grand := NewFrame(child)

	f, ok := grand.Ancestor(2)
	require.True(t, ok)
	assert.Same(t, root, f)
	_, ok = grand.Ancestor(3)
	assert.False(t, ok)
	assert.Equal(t, 2, grand.Depth())

	root.Set(4, "a")
	root.Set(1, 2.0)
	assert.Equal(t, []int{1, 4}, root.Slots())
}

func TestValues(t *testing.T) {
	assert.False(t, IsTruthy(nil))
	assert.False(t, IsTruthy(0.0))
	assert.False(t, IsTruthy(""))
	assert.False(t, IsTruthy(List{}))
	assert.True(t, IsTruthy(List{nil}))
	assert.True(t, IsTruthy(&Closure{Function: "$1"}))

	assert.Equal(t, "[1.5, \"x\", null]", ToString(List{1.5, "x", nil}))
	assert.Equal(t, "<function $2>", ToString(&Closure{Function: "$2"}))
	assert.True(t, Equal(List{1.0, List{"a"}}, List{1.0, List{"a"}}))
	assert.False(t, Equal(1.0, "1"))
}
