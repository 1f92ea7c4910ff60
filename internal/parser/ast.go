package parser

type Expr interface {
	Accept(visitor ExprVisitor) interface{}
	Pos() int
}

// Binary expression: a + b
type Binary struct {
	Left     Expr
	Operator string
	Right    Expr
	Line     int
}

func (b *Binary) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitBinaryExpr(b)
}

func (b *Binary) Pos() int { return b.Line }

// Literal expression: number (float64), string, bool or nil
type Literal struct {
	Value interface{}
	Line  int
}

func (l *Literal) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitLiteralExpr(l)
}

func (l *Literal) Pos() int { return l.Line }

// Variable expression: x
type Variable struct {
	Name string
	Line int
}

func (v *Variable) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitVariableExpr(v)
}

func (v *Variable) Pos() int { return v.Line }

// Call expression: callee(args...)
type CallExpr struct {
	Callee Expr
	Args   []Expr
	Line   int
}

func (c *CallExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitCallExpr(c)
}

func (c *CallExpr) Pos() int { return c.Line }

// Builtin expression: print(x), len(l), ...
type BuiltinExpr struct {
	Name string
	Args []Expr
	Line int
}

func (b *BuiltinExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitBuiltinExpr(b)
}

func (b *BuiltinExpr) Pos() int { return b.Line }

// If expression: if cond then a else b. Else may be nil.
type IfExpr struct {
	Cond       Expr
	ThenBranch Expr
	ElseBranch Expr
	Line       int
}

func (i *IfExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitIfExpr(i)
}

func (i *IfExpr) Pos() int { return i.Line }

// Let-in expression: let { decls } in body
type LetInExpr struct {
	Decls []Stmt
	Body  Expr
	Line  int
}

func (l *LetInExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitLetInExpr(l)
}

func (l *LetInExpr) Pos() int { return l.Line }

// List expression: [1, 2, 3]
type ListExpr struct {
	Elements []Expr
	Line     int
}

func (l *ListExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitListExpr(l)
}

func (l *ListExpr) Pos() int { return l.Line }

// Index expression: l[i]
type IndexExpr struct {
	Target Expr
	Index  Expr
	Line   int
}

func (i *IndexExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitIndexExpr(i)
}

func (i *IndexExpr) Pos() int { return i.Line }

// Unary expression: -x, !x
type UnaryExpr struct {
	Operator string
	Operand  Expr
	Line     int
}

func (u *UnaryExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitUnaryExpr(u)
}

func (u *UnaryExpr) Pos() int { return u.Line }

// Lambda expression: (a, b) => body
type LambdaExpr struct {
	Params []string
	Body   Expr
	Line   int
}

func (l *LambdaExpr) Accept(visitor ExprVisitor) interface{} {
	return visitor.VisitLambdaExpr(l)
}

func (l *LambdaExpr) Pos() int { return l.Line }

type ExprVisitor interface {
	VisitBinaryExpr(expr *Binary) interface{}
	VisitLiteralExpr(expr *Literal) interface{}
	VisitVariableExpr(expr *Variable) interface{}
	VisitCallExpr(expr *CallExpr) interface{}
	VisitBuiltinExpr(expr *BuiltinExpr) interface{}
	VisitIfExpr(expr *IfExpr) interface{}
	VisitLetInExpr(expr *LetInExpr) interface{}
	VisitListExpr(expr *ListExpr) interface{}
	VisitIndexExpr(expr *IndexExpr) interface{}
	VisitUnaryExpr(expr *UnaryExpr) interface{}
	VisitLambdaExpr(expr *LambdaExpr) interface{}
}
