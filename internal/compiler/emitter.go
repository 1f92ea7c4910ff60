package compiler

import (
	"bies/internal/bytecode"
	"bies/internal/parser"
	"bies/internal/scope"
)

var binaryOps = map[string]bytecode.Mnemonic{
	"||": bytecode.OpOr,
	"&&": bytecode.OpAnd,
	"==": bytecode.OpEqual,
	"!=": bytecode.OpNotEqual,
	">":  bytecode.OpGreater,
	">=": bytecode.OpGreaterEqual,
	"<":  bytecode.OpLess,
	"<=": bytecode.OpLessEqual,
	"+":  bytecode.OpAdd,
	"-":  bytecode.OpSub,
	"**": bytecode.OpPow,
	"*":  bytecode.OpMul,
	"/":  bytecode.OpDiv,
}

var unaryOps = map[string]bytecode.Mnemonic{
	"-": bytecode.OpNegate,
	"!": bytecode.OpNot,
}

type builtinOp struct {
	op      bytecode.Mnemonic
	operand string
}

// Builtins whose arguments are evaluated in order and consumed by a
// single instruction. print, input, prepend and drop are emitted by hand.
var builtinOps = map[string]builtinOp{
	"len":       {bytecode.OpLength, ""},
	"num":       {bytecode.OpCast, bytecode.TypeNumber},
	"int":       {bytecode.OpCast, bytecode.TypeNumber},
	"str":       {bytecode.OpCast, bytecode.TypeString},
	"list":      {bytecode.OpCast, bytecode.TypeList},
	"isnum":     {bytecode.OpInstanceOf, bytecode.TypeNumber},
	"isstr":     {bytecode.OpInstanceOf, bytecode.TypeString},
	"islist":    {bytecode.OpInstanceOf, bytecode.TypeList},
	"tostr":     {bytecode.OpToString, ""},
	"tolist":    {bytecode.OpToList, ""},
	"emptystr":  {bytecode.OpStrEmpty, ""},
	"emptylist": {bytecode.OpListEmpty, ""},
	"cat":       {bytecode.OpConcat, ""},
	"droplast":  {bytecode.OpStrDropLast, ""},
	"dropfirst": {bytecode.OpStrDropFirst, ""},
	"sign":      {bytecode.OpSign, ""},
	"xor":       {bytecode.OpXor, ""},
}

var declKinds = map[parser.DeclKind]scope.Kind{
	parser.DeclLet:   scope.Let,
	parser.DeclConst: scope.Const,
	parser.DeclVar:   scope.Var,
}

// emitter compiles one lexical unit into fn. Nested units get their own
// emitter; branch arms compile into a scratch function that is spliced
// back into fn.
type emitter struct {
	c  *Compiler
	fn *bytecode.Function
}

func (e *emitter) emit(op bytecode.Mnemonic, line int, operands ...bytecode.Operand) {
	e.fn.Emit(bytecode.NewInstruction(op, line, operands...))
}

func (e *emitter) store(addr scope.Address, line int) {
	e.emit(bytecode.OpStoreBind, line, bytecode.Int(addr.Depth), bytecode.Int(addr.Slot))
}

// --- Statements ---

func (e *emitter) VisitLetStmt(stmt *parser.LetStmt) interface{} {
	id, addr, ok := e.c.table.Declare(stmt.Name, declKinds[stmt.Kind], stmt.Line)
	if ok {
		describe(id, stmt.Expr)
	}
	if stmt.Expr == nil {
		e.emit(bytecode.OpLoadValue, stmt.Line, bytecode.Null())
	} else {
		if ok {
			id.Initializing = true
		}
		stmt.Expr.Accept(e)
	}
	if ok {
		id.Initializing = false
		e.store(addr, stmt.Line)
	} else {
		e.emit(bytecode.OpPop, stmt.Line)
	}
	return nil
}

func (e *emitter) VisitFunctionStmt(stmt *parser.FunctionStmt) interface{} {
	// Declared before the body is compiled so the body can call itself.
	id, addr, ok := e.c.table.Declare(stmt.Name, scope.Function, stmt.Line)
	if ok {
		id.IsFunction = true
		id.Arity = len(stmt.Params)
	}
	e.function(stmt.Name, stmt.Params, stmt.Body, stmt.Line)
	if ok {
		e.store(addr, stmt.Line)
	} else {
		e.emit(bytecode.OpPop, stmt.Line)
	}
	return nil
}

func (e *emitter) VisitAssignmentStmt(stmt *parser.AssignmentStmt) interface{} {
	addr, id, ok := e.c.table.Reassign(stmt.Name, stmt.Line)
	stmt.Value.Accept(e)
	if !ok {
		e.emit(bytecode.OpPop, stmt.Line)
		return nil
	}
	id.Forget()
	e.store(addr, stmt.Line)
	return nil
}

func (e *emitter) VisitExpressionStmt(stmt *parser.ExpressionStmt) interface{} {
	if b, ok := stmt.Expr.(*parser.BuiltinExpr); ok && b.Name == "print" {
		b.Args[0].Accept(e)
		e.emit(bytecode.OpPrint, b.Line)
		return nil
	}
	stmt.Expr.Accept(e)
	e.emit(bytecode.OpPop, stmt.Line)
	return nil
}

// describe records what is statically known about a binding's value.
func describe(id *scope.Identifier, value parser.Expr) {
	switch v := value.(type) {
	case nil:
		id.NotCallable = true
	case *parser.LambdaExpr:
		id.IsFunction = true
		id.Arity = len(v.Params)
	case *parser.Literal, *parser.ListExpr:
		id.NotCallable = true
	}
}

// --- Expressions ---

func (e *emitter) VisitLiteralExpr(expr *parser.Literal) interface{} {
	var operand bytecode.Operand
	switch v := expr.Value.(type) {
	case float64:
		operand = bytecode.Number(v)
	case string:
		operand = bytecode.String(v)
	case bool:
		if v {
			operand = bytecode.Int(1)
		} else {
			operand = bytecode.Int(0)
		}
	case nil:
		operand = bytecode.Null()
	default:
		e.c.errorf(expr.Line, "unsupported literal %v", v)
		operand = bytecode.Null()
	}
	e.emit(bytecode.OpLoadValue, expr.Line, operand)
	return nil
}

func (e *emitter) VisitVariableExpr(expr *parser.Variable) interface{} {
	addr, _, ok := e.c.table.Resolve(expr.Name, expr.Line)
	if !ok {
		// Keeps the stack shape; nothing is emitted once a diagnostic exists.
		e.emit(bytecode.OpLoadValue, expr.Line, bytecode.Null())
		return nil
	}
	e.emit(bytecode.OpLoadBind, expr.Line, bytecode.Int(addr.Depth), bytecode.Int(addr.Slot))
	return nil
}

func (e *emitter) VisitBinaryExpr(expr *parser.Binary) interface{} {
	expr.Left.Accept(e)
	expr.Right.Accept(e)
	op, ok := binaryOps[expr.Operator]
	if !ok {
		e.c.errorf(expr.Line, "unknown operator '%s'", expr.Operator)
		return nil
	}
	e.emit(op, expr.Line)
	return nil
}

func (e *emitter) VisitUnaryExpr(expr *parser.UnaryExpr) interface{} {
	expr.Operand.Accept(e)
	op, ok := unaryOps[expr.Operator]
	if !ok {
		e.c.errorf(expr.Line, "unknown unary operator '%s'", expr.Operator)
		return nil
	}
	e.emit(op, expr.Line)
	return nil
}

func (e *emitter) VisitCallExpr(expr *parser.CallExpr) interface{} {
	e.checkCall(expr)
	for _, arg := range expr.Args {
		arg.Accept(e)
	}
	expr.Callee.Accept(e)
	e.emit(bytecode.OpApply, expr.Line, bytecode.Int(len(expr.Args)))
	return nil
}

// checkCall flags calls that cannot succeed. Only bindings that keep
// their initial value (const and function declarations) are judged.
func (e *emitter) checkCall(expr *parser.CallExpr) {
	argc := len(expr.Args)
	switch callee := expr.Callee.(type) {
	case *parser.Literal, *parser.ListExpr:
		e.c.errorf(expr.Line, "calling a value that is not a function")
	case *parser.LambdaExpr:
		if len(callee.Params) != argc {
			e.c.errorf(expr.Line, "wrong argument count: lambda expects %d, got %d", len(callee.Params), argc)
		}
	case *parser.Variable:
		id := e.c.table.Lookup(callee.Name)
		if id == nil || (id.Kind != scope.Const && id.Kind != scope.Function) {
			return
		}
		if id.NotCallable {
			e.c.errorf(expr.Line, "'%s' is not a function", callee.Name)
		} else if id.Arity != scope.UnknownArity && id.Arity != argc {
			e.c.errorf(expr.Line, "wrong argument count: '%s' expects %d, got %d", callee.Name, id.Arity, argc)
		}
	}
}

func (e *emitter) VisitBuiltinExpr(expr *parser.BuiltinExpr) interface{} {
	switch expr.Name {
	case "print":
		expr.Args[0].Accept(e)
		e.emit(bytecode.OpPrint, expr.Line)
		// print has no value of its own
		e.emit(bytecode.OpLoadValue, expr.Line, bytecode.Null())
		return nil
	case "input":
		if len(expr.Args) == 1 {
			expr.Args[0].Accept(e)
			e.emit(bytecode.OpPrint, expr.Line)
		}
		e.emit(bytecode.OpInput, expr.Line)
		return nil
	case "prepend":
		expr.Args[0].Accept(e)
		expr.Args[1].Accept(e)
		e.emit(bytecode.OpSwap, expr.Line)
		e.emit(bytecode.OpListPrepend, expr.Line)
		return nil
	case "drop":
		// LRK wants the list on top.
		expr.Args[0].Accept(e)
		expr.Args[1].Accept(e)
		e.emit(bytecode.OpSwap, expr.Line)
		e.emit(bytecode.OpListDrop, expr.Line)
		return nil
	}

	b, ok := builtinOps[expr.Name]
	if !ok {
		e.c.errorf(expr.Line, "unknown builtin '%s'", expr.Name)
		return nil
	}
	for _, arg := range expr.Args {
		arg.Accept(e)
	}
	if b.operand != "" {
		e.emit(b.op, expr.Line, bytecode.Symbol(b.operand))
	} else {
		e.emit(b.op, expr.Line)
	}
	return nil
}

// VisitIfExpr lays out
//
//	cond; BF len(then)+2; then...; BR len(else)+1; else...
//
// so both branches land on the first instruction after the construct.
func (e *emitter) VisitIfExpr(expr *parser.IfExpr) interface{} {
	expr.Cond.Accept(e)
	thenCode := e.arm("then", expr.ThenBranch, expr.Line)
	elseCode := e.arm("else", expr.ElseBranch, expr.Line)

	e.emit(bytecode.OpBranchFalse, expr.Line, bytecode.Int(len(thenCode)+2))
	e.fn.Append(thenCode)
	e.emit(bytecode.OpBranch, expr.Line, bytecode.Int(len(elseCode)+1))
	e.fn.Append(elseCode)
	return nil
}

// arm compiles one branch into a scratch buffer. A missing branch
// yields null.
func (e *emitter) arm(label string, body parser.Expr, line int) []bytecode.Instruction {
	e.c.table.EnterInlineScope(label)
	defer e.c.table.ExitScope()

	scratch := &emitter{c: e.c, fn: bytecode.NewFunction(e.fn.ID, e.fn.Arity, e.fn.Parent)}
	if body == nil {
		scratch.emit(bytecode.OpLoadValue, line, bytecode.Null())
	} else {
		body.Accept(scratch)
	}
	return scratch.fn.Instructions
}

func (e *emitter) VisitLetInExpr(expr *parser.LetInExpr) interface{} {
	s := e.c.table.EnterImmediateScope("let")
	fn := bytecode.NewFunction(bytecode.FunctionID(s.ID), 0, e.fn.ID)
	child := &emitter{c: e.c, fn: fn}
	for _, decl := range expr.Decls {
		decl.Accept(child)
	}
	expr.Body.Accept(child)
	child.emit(bytecode.OpReturn, expr.Body.Pos())
	e.c.table.ExitScope()
	e.c.code.Add(fn)

	e.emit(bytecode.OpLoadFunc, expr.Line, bytecode.Symbol(fn.ID))
	e.emit(bytecode.OpApply, expr.Line, bytecode.Int(0))
	return nil
}

func (e *emitter) VisitListExpr(expr *parser.ListExpr) interface{} {
	e.emit(bytecode.OpLoadValue, expr.Line, bytecode.List())
	for i := len(expr.Elements) - 1; i >= 0; i-- {
		expr.Elements[i].Accept(e)
		e.emit(bytecode.OpListPrepend, expr.Line)
	}
	return nil
}

func (e *emitter) VisitIndexExpr(expr *parser.IndexExpr) interface{} {
	expr.Target.Accept(e)
	expr.Index.Accept(e)
	e.emit(bytecode.OpListIndex, expr.Line)
	return nil
}

func (e *emitter) VisitLambdaExpr(expr *parser.LambdaExpr) interface{} {
	e.function("lambda", expr.Params, expr.Body, expr.Line)
	return nil
}

// function compiles a function body into its own block and leaves a
// closure over the current frame on the stack.
func (e *emitter) function(label string, params []string, body parser.Expr, line int) {
	s := e.c.table.EnterScope(label)
	e.c.table.SetArity(len(params))
	for _, p := range params {
		e.c.table.Declare(p, scope.Param, line)
	}

	fn := bytecode.NewFunction(bytecode.FunctionID(s.ID), len(params), e.fn.ID)
	child := &emitter{c: e.c, fn: fn}
	body.Accept(child)
	child.emit(bytecode.OpReturn, body.Pos())
	e.c.table.ExitScope()
	e.c.code.Add(fn)

	e.emit(bytecode.OpLoadFunc, line, bytecode.Symbol(fn.ID))
}

var (
	_ parser.ExprVisitor = (*emitter)(nil)
	_ parser.StmtVisitor = (*emitter)(nil)
)
