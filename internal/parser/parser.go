// internal/parser/parser.go
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"bies/internal/errors"
	"bies/internal/lexer"
)

// Binary operator precedence; every level is left-associative.
var precedence = map[lexer.TokenType]int{
	lexer.TokenOr:          1, // ||
	lexer.TokenAnd:         2, // &&
	lexer.TokenDoubleEqual: 3, // ==
	lexer.TokenNotEqual:    3, // !=
	lexer.TokenLT:          4, // <
	lexer.TokenGT:          4, // >
	lexer.TokenLE:          4, // <=
	lexer.TokenGE:          4, // >=
	lexer.TokenPlus:        5, // +
	lexer.TokenMinus:       5, // -
	lexer.TokenStar:        6, // *
	lexer.TokenSlash:       6, // /
	lexer.TokenStarStar:    7, // **
}

type Parser struct {
	tokens      []lexer.Token
	current     int
	Errors      []*errors.BiesError
	file        string
	sourceLines []string // Source lines for error reporting
}

func NewParser(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

func NewParserWithSource(tokens []lexer.Token, source string, file string) *Parser {
	return &Parser{
		tokens:      tokens,
		file:        file,
		sourceLines: strings.Split(source, "\n"),
	}
}

// ParseSource scans and parses a whole program. Every lexical and
// syntax error is returned together as *errors.Diagnostics.
func ParseSource(source, file string) (*Program, error) {
	diags := errors.NewDiagnostics(source)
	scanner := lexer.NewScannerWithFile(source, file)
	tokens := scanner.ScanTokens()
	for _, err := range scanner.Errors() {
		diags.Add(err)
	}
	if diags.Len() > 0 {
		return nil, diags
	}

	p := NewParserWithSource(tokens, source, file)
	prog := p.Parse()
	prog.Source = source
	for _, err := range p.Errors {
		diags.Add(err)
	}
	if err := diags.Err(); err != nil {
		return nil, err
	}
	return prog, nil
}

// Parse reads statements until EOF. A syntax error abandons the current
// statement, is recorded in p.Errors, and parsing resumes at the next
// statement.
func (p *Parser) Parse() *Program {
	prog := &Program{File: p.file}
	for !p.isAtEnd() {
		if stmt := p.safeStatement(); stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
	}
	return prog
}

func (p *Parser) safeStatement() (stmt Stmt) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(*errors.BiesError)
			if !ok {
				panic(r)
			}
			p.Errors = append(p.Errors, err)
			p.synchronize()
			stmt = nil
		}
	}()
	return p.statement()
}

// synchronize skips to the start of the next statement.
func (p *Parser) synchronize() {
	if !p.isAtEnd() {
		p.advance()
	}
	for !p.isAtEnd() {
		if p.previous().Type == lexer.TokenSemicolon {
			return
		}
		switch p.peek().Type {
		case lexer.TokenFun, lexer.TokenLet, lexer.TokenConst, lexer.TokenVar:
			return
		}
		p.advance()
	}
}

func (p *Parser) statement() Stmt {
	var stmt Stmt
	switch {
	case p.match(lexer.TokenFun):
		stmt = p.function()
	case p.check(lexer.TokenLet) && p.checkNext(lexer.TokenLBrace):
		line := p.peek().Line
		stmt = &ExpressionStmt{Expr: p.expression(), Line: line}
	case p.match(lexer.TokenLet):
		stmt = p.declaration(DeclLet)
	case p.match(lexer.TokenConst):
		stmt = p.declaration(DeclConst)
	case p.match(lexer.TokenVar):
		stmt = p.declaration(DeclVar)
	case p.check(lexer.TokenIdent) && p.checkNext(lexer.TokenEqual):
		nameTok := p.advance()
		p.advance()
		p.checkNotReserved(nameTok)
		value := p.expression()
		stmt = &AssignmentStmt{Name: nameTok.Lexeme, Value: value, Line: nameTok.Line}
	default:
		line := p.peek().Line
		stmt = &ExpressionStmt{Expr: p.expression(), Line: line}
	}
	p.match(lexer.TokenSemicolon)
	return stmt
}

func (p *Parser) declaration(kind DeclKind) Stmt {
	nameTok := p.consume(lexer.TokenIdent, "Expect variable name")
	p.checkNotReserved(nameTok)
	if !p.match(lexer.TokenEqual) {
		if kind == DeclConst {
			p.errorAt(nameTok, fmt.Sprintf("const '%s' needs an initializer", nameTok.Lexeme))
		}
		return &LetStmt{Kind: kind, Name: nameTok.Lexeme, Line: nameTok.Line}
	}
	expr := p.expression()
	return &LetStmt{Kind: kind, Name: nameTok.Lexeme, Expr: expr, Line: nameTok.Line}
}

// function parses the rest of: fun name(a, b) => body
func (p *Parser) function() Stmt {
	nameTok := p.consume(lexer.TokenIdent, "Expect function name")
	p.checkNotReserved(nameTok)
	p.consume(lexer.TokenLParen, "Expect '(' after function name")
	params := p.parameters()
	p.consume(lexer.TokenArrow, "Expect '=>' before function body")
	body := p.expression()
	return &FunctionStmt{Name: nameTok.Lexeme, Params: params, Body: body, Line: nameTok.Line}
}

// parameters parses a parameter list after '(' up to and including ')'.
func (p *Parser) parameters() []string {
	var params []string
	seen := make(map[string]bool)
	if !p.check(lexer.TokenRParen) {
		for {
			tok := p.consume(lexer.TokenIdent, "Expect parameter name")
			p.checkNotReserved(tok)
			if seen[tok.Lexeme] {
				p.errorAt(tok, fmt.Sprintf("duplicate parameter '%s'", tok.Lexeme))
			}
			seen[tok.Lexeme] = true
			params = append(params, tok.Lexeme)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "Expect ')' after parameters")
	return params
}

func (p *Parser) expression() Expr {
	return p.parseBinary(1)
}

func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.unary()
	for {
		tok := p.peek()
		prec, ok := precedence[tok.Type]
		if !ok || prec < minPrec {
			return left
		}
		p.advance()
		right := p.parseBinary(prec + 1)
		left = &Binary{Left: left, Operator: tok.Lexeme, Right: right, Line: tok.Line}
	}
}

func (p *Parser) unary() Expr {
	if p.match(lexer.TokenNot) || p.match(lexer.TokenMinus) {
		tok := p.previous()
		operand := p.unary()
		return &UnaryExpr{Operator: tok.Lexeme, Operand: operand, Line: tok.Line}
	}
	return p.postfix()
}

func (p *Parser) postfix() Expr {
	expr := p.primary()
	for {
		switch {
		case p.match(lexer.TokenLParen):
			line := p.previous().Line
			expr = &CallExpr{Callee: expr, Args: p.arguments(), Line: line}
		case p.match(lexer.TokenLBracket):
			line := p.previous().Line
			index := p.expression()
			p.consume(lexer.TokenRBracket, "Expect ']' after index")
			expr = &IndexExpr{Target: expr, Index: index, Line: line}
		default:
			return expr
		}
	}
}

// arguments parses call arguments after '(' up to and including ')'.
func (p *Parser) arguments() []Expr {
	var args []Expr
	if !p.check(lexer.TokenRParen) {
		for {
			args = append(args, p.expression())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRParen, "Expect ')' after arguments")
	return args
}

func (p *Parser) primary() Expr {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenNumber:
		p.advance()
		f, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.errorAt(tok, fmt.Sprintf("invalid number '%s'", tok.Lexeme))
		}
		return &Literal{Value: f, Line: tok.Line}
	case lexer.TokenString:
		p.advance()
		return &Literal{Value: tok.Lexeme, Line: tok.Line}
	case lexer.TokenTrue:
		p.advance()
		return &Literal{Value: true, Line: tok.Line}
	case lexer.TokenFalse:
		p.advance()
		return &Literal{Value: false, Line: tok.Line}
	case lexer.TokenNull:
		p.advance()
		return &Literal{Value: nil, Line: tok.Line}
	case lexer.TokenIdent:
		p.advance()
		if spec, ok := LookupBuiltin(tok.Lexeme); ok {
			return p.builtin(tok, spec)
		}
		return &Variable{Name: tok.Lexeme, Line: tok.Line}
	case lexer.TokenLParen:
		if p.isLambda() {
			p.advance()
			params := p.parameters()
			p.consume(lexer.TokenArrow, "Expect '=>' after lambda parameters")
			body := p.expression()
			return &LambdaExpr{Params: params, Body: body, Line: tok.Line}
		}
		p.advance()
		expr := p.expression()
		p.consume(lexer.TokenRParen, "Expect ')' after expression")
		return expr
	case lexer.TokenLBrace:
		p.advance()
		expr := p.expression()
		p.consume(lexer.TokenRBrace, "Expect '}' after expression")
		return expr
	case lexer.TokenLBracket:
		p.advance()
		return p.listLiteral(tok)
	case lexer.TokenIf:
		p.advance()
		return p.ifExpr(tok)
	case lexer.TokenLet:
		p.advance()
		return p.letIn(tok)
	}
	p.errorAt(tok, "Expect expression")
	return nil
}

func (p *Parser) builtin(tok lexer.Token, spec BuiltinSpec) Expr {
	p.consume(lexer.TokenLParen, fmt.Sprintf("Expect '(' after builtin '%s'", spec.Name))
	args := p.arguments()
	if len(args) < spec.MinArgs || len(args) > spec.MaxArgs {
		want := strconv.Itoa(spec.MinArgs)
		if spec.MaxArgs != spec.MinArgs {
			want = fmt.Sprintf("%d to %d", spec.MinArgs, spec.MaxArgs)
		}
		p.errorAt(tok, fmt.Sprintf("'%s' takes %s argument(s), got %d", spec.Name, want, len(args)))
	}
	return &BuiltinExpr{Name: spec.Name, Args: args, Line: tok.Line}
}

func (p *Parser) listLiteral(open lexer.Token) Expr {
	var elems []Expr
	if !p.check(lexer.TokenRBracket) {
		for {
			elems = append(elems, p.expression())
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRBracket, "Expect ']' after list elements")
	return &ListExpr{Elements: elems, Line: open.Line}
}

// ifExpr parses: if cond then a [else b]
func (p *Parser) ifExpr(tok lexer.Token) Expr {
	cond := p.expression()
	p.consume(lexer.TokenThen, "Expect 'then' after condition")
	thenBranch := p.expression()
	var elseBranch Expr
	if p.match(lexer.TokenElse) {
		elseBranch = p.expression()
	}
	return &IfExpr{Cond: cond, ThenBranch: thenBranch, ElseBranch: elseBranch, Line: tok.Line}
}

// letIn parses: let { decls } in body
func (p *Parser) letIn(tok lexer.Token) Expr {
	p.consume(lexer.TokenLBrace, "Expect '{' after let")
	var decls []Stmt
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		// Inside the block a bare name = expr declares a new binding.
		if p.check(lexer.TokenIdent) && p.checkNext(lexer.TokenEqual) {
			nameTok := p.advance()
			p.advance()
			p.checkNotReserved(nameTok)
			decls = append(decls, &LetStmt{Kind: DeclLet, Name: nameTok.Lexeme, Expr: p.expression(), Line: nameTok.Line})
			p.match(lexer.TokenSemicolon)
			continue
		}
		decls = append(decls, p.statement())
	}
	p.consume(lexer.TokenRBrace, "Expect '}' after let declarations")
	p.consume(lexer.TokenIn, "Expect 'in' after let block")
	body := p.expression()
	return &LetInExpr{Decls: decls, Body: body, Line: tok.Line}
}

// isLambda looks past a parenthesised identifier list for '=>'.
func (p *Parser) isLambda() bool {
	i := p.current + 1
	if i < len(p.tokens) && p.tokens[i].Type == lexer.TokenRParen {
		return i+1 < len(p.tokens) && p.tokens[i+1].Type == lexer.TokenArrow
	}
	for i < len(p.tokens) {
		if p.tokens[i].Type != lexer.TokenIdent {
			return false
		}
		i++
		if i >= len(p.tokens) {
			return false
		}
		switch p.tokens[i].Type {
		case lexer.TokenComma:
			i++
		case lexer.TokenRParen:
			return i+1 < len(p.tokens) && p.tokens[i+1].Type == lexer.TokenArrow
		default:
			return false
		}
	}
	return false
}

func (p *Parser) checkNotReserved(tok lexer.Token) {
	if _, ok := LookupBuiltin(tok.Lexeme); ok {
		p.errorAt(tok, fmt.Sprintf("'%s' is a builtin and cannot be rebound", tok.Lexeme))
	}
}

// --- Utility methods ---

func (p *Parser) errorAt(tok lexer.Token, msg string) {
	err := errors.NewSyntaxError(msg, p.file, tok.Line, tok.Column)
	if p.sourceLines != nil && tok.Line > 0 && tok.Line <= len(p.sourceLines) {
		err = err.WithSource(strings.TrimRight(p.sourceLines[tok.Line-1], "\r"))
	}
	panic(err)
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	currentToken := p.peek()
	got := currentToken.Lexeme
	if currentToken.Type == lexer.TokenEOF {
		got = "end of file"
	}
	p.errorAt(currentToken, fmt.Sprintf("%s (got '%s')", msg, got))
	return currentToken
}

func (p *Parser) check(t lexer.TokenType) bool {
	if p.isAtEnd() {
		return t == lexer.TokenEOF
	}
	return p.peek().Type == t
}

func (p *Parser) checkNext(t lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == t
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.tokens[p.current-1]
}

func (p *Parser) previous() lexer.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}
