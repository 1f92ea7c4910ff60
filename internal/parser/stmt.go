// internal/parser/stmt.go
package parser

// Stmt represents a statement.
type Stmt interface {
	Accept(visitor StmtVisitor) interface{}
	Pos() int
}

// DeclKind is the keyword a variable was declared with.
type DeclKind string

const (
	DeclLet   DeclKind = "let"
	DeclConst DeclKind = "const"
	DeclVar   DeclKind = "var"
)

// LetStmt represents let/const/var x = expr. Expr is nil for a bare
// declaration, which binds null.
type LetStmt struct {
	Kind DeclKind
	Name string
	Expr Expr
	Line int
}

func (l *LetStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitLetStmt(l)
}

func (l *LetStmt) Pos() int { return l.Line }

// FunctionStmt represents fun name(params) => body.
type FunctionStmt struct {
	Name   string
	Params []string
	Body   Expr
	Line   int
}

func (f *FunctionStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitFunctionStmt(f)
}

func (f *FunctionStmt) Pos() int { return f.Line }

// AssignmentStmt represents x = expr on an existing binding.
type AssignmentStmt struct {
	Name  string
	Value Expr
	Line  int
}

func (a *AssignmentStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitAssignmentStmt(a)
}

func (a *AssignmentStmt) Pos() int { return a.Line }

// ExpressionStmt wraps a raw expression as a statement.
type ExpressionStmt struct {
	Expr Expr
	Line int
}

func (e *ExpressionStmt) Accept(visitor StmtVisitor) interface{} {
	return visitor.VisitExpressionStmt(e)
}

func (e *ExpressionStmt) Pos() int { return e.Line }

// StmtVisitor handles all statement types.
type StmtVisitor interface {
	VisitLetStmt(stmt *LetStmt) interface{}
	VisitFunctionStmt(stmt *FunctionStmt) interface{}
	VisitAssignmentStmt(stmt *AssignmentStmt) interface{}
	VisitExpressionStmt(stmt *ExpressionStmt) interface{}
}

// Program is a parsed source file.
type Program struct {
	File   string
	Source string
	Stmts  []Stmt
}
