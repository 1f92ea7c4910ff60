package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// parseString parses input and returns the statements or the error.
func parseString(t *testing.T, input string) ([]Stmt, error) {
	t.Helper()
	prog, err := ParseSource(input, "test.bies")
	if err != nil {
		return nil, err
	}
	return prog.Stmts, nil
}

func assertParseSuccess(t *testing.T, input string) []Stmt {
	t.Helper()
	stmts, err := parseString(t, input)
	require.NoError(t, err, "parsing %q", input)
	return stmts
}

func TestStatements(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"let", "let x = 5", true},
		{"const", "const k = \"s\"", true},
		{"var without initializer", "var v", true},
		{"const without initializer", "const k", false},
		{"reassignment", "let x = 1; x = 2", true},
		{"function", "fun add(a, b) => a + b", true},
		{"zero arg function", "fun hello() => \"hi\"", true},
		{"lambda", "let sq = (n) => n * n", true},
		{"let in", "let { a = 1; b = 2 } in a + b", true},
		{"conditional", "print(if 1 < 2 then {\"yes\"} else {\"no\"})", true},
		{"conditional without else", "if 1 then 2", true},
		{"list and index", "let l = [1, 2, [3]]; print(l[2][0])", true},
		{"call chain", "fun f(a) => (b) => a + b; print(f(1)(2))", true},
		{"missing then", "if 1 2 else 3", false},
		{"missing arrow", "fun f(a) a", false},
		{"rebinding builtin", "let print = 1", false},
		{"builtin arity", "print(1, 2)", false},
		{"duplicate parameter", "fun f(a, a) => a", false},
		{"unterminated list", "[1, 2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, tt.input)
			if tt.shouldPass {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestLeftAssociativity(t *testing.T) {
	stmts := assertParseSuccess(t, "1 - 2 - 3")
	b := stmts[0].(*ExpressionStmt).Expr.(*Binary)
	require.Equal(t, "-", b.Operator)
	inner, ok := b.Left.(*Binary)
	require.True(t, ok, "left operand should be the first subtraction")
	require.Equal(t, 1.0, inner.Left.(*Literal).Value)
	require.Equal(t, 3.0, b.Right.(*Literal).Value)
}

func TestPrecedence(t *testing.T) {
	stmts := assertParseSuccess(t, "a || b && c == d + e * f ** g")
	or := stmts[0].(*ExpressionStmt).Expr.(*Binary)
	require.Equal(t, "||", or.Operator)
	and := or.Right.(*Binary)
	require.Equal(t, "&&", and.Operator)
	eq := and.Right.(*Binary)
	require.Equal(t, "==", eq.Operator)
	plus := eq.Right.(*Binary)
	require.Equal(t, "+", plus.Operator)
	mul := plus.Right.(*Binary)
	require.Equal(t, "*", mul.Operator)
	require.Equal(t, "**", mul.Right.(*Binary).Operator)
}

func TestLambdaVersusGrouping(t *testing.T) {
	stmts := assertParseSuccess(t, "let a = (x) => x\nlet b = (x)\nlet c = () => 1")
	require.IsType(t, &LambdaExpr{}, stmts[0].(*LetStmt).Expr)
	require.IsType(t, &Variable{}, stmts[1].(*LetStmt).Expr)
	require.Empty(t, stmts[2].(*LetStmt).Expr.(*LambdaExpr).Params)
}

func TestCallChainNesting(t *testing.T) {
	stmts := assertParseSuccess(t, "f(1)(2, 3)")
	outer := stmts[0].(*ExpressionStmt).Expr.(*CallExpr)
	require.Len(t, outer.Args, 2)
	inner := outer.Callee.(*CallExpr)
	require.Equal(t, "f", inner.Callee.(*Variable).Name)
}

func TestLetInStatement(t *testing.T) {
	stmts := assertParseSuccess(t, "let {\n  const a = 1\n  fun g(x) => x\n} in g(a)")
	letIn := stmts[0].(*ExpressionStmt).Expr.(*LetInExpr)
	require.Len(t, letIn.Decls, 2)
	require.Equal(t, DeclConst, letIn.Decls[0].(*LetStmt).Kind)
	require.IsType(t, &FunctionStmt{}, letIn.Decls[1])
}

func TestErrorRecoveryReportsEveryStatement(t *testing.T) {
	_, err := parseString(t, "let = 1\nlet ok = 2\nconst\nlet y = 3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "2 errors")
}

func TestLines(t *testing.T) {
	stmts := assertParseSuccess(t, "let x = 1\n\nprint(x)")
	require.Equal(t, 1, stmts[0].Pos())
	require.Equal(t, 3, stmts[1].Pos())
}
