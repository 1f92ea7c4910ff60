package lexer

import (
	"fmt"
	"strings"
	"unicode"

	"bies/internal/errors"
)

type TokenType string

const (
	// Keywords
	TokenFun   TokenType = "FUN"
	TokenLet   TokenType = "LET"
	TokenVar   TokenType = "VAR"
	TokenConst TokenType = "CONST"
	TokenIn    TokenType = "IN"
	TokenIf    TokenType = "IF"
	TokenThen  TokenType = "THEN"
	TokenElse  TokenType = "ELSE"

	// Literals
	TokenTrue   TokenType = "TRUE"
	TokenFalse  TokenType = "FALSE"
	TokenNull   TokenType = "NULL"
	TokenIdent  TokenType = "IDENT"
	TokenString TokenType = "STRING"
	TokenNumber TokenType = "NUMBER"

	// Symbols
	TokenLParen      TokenType = "("
	TokenRParen      TokenType = ")"
	TokenLBrace      TokenType = "{"
	TokenRBrace      TokenType = "}"
	TokenLBracket    TokenType = "["
	TokenRBracket    TokenType = "]"
	TokenComma       TokenType = ","
	TokenSemicolon   TokenType = ";"
	TokenPlus        TokenType = "+"
	TokenMinus       TokenType = "-"
	TokenStar        TokenType = "*"
	TokenStarStar    TokenType = "**"
	TokenSlash       TokenType = "/"
	TokenEqual       TokenType = "="
	TokenArrow       TokenType = "=>"
	TokenDoubleEqual TokenType = "=="
	TokenNotEqual    TokenType = "!="
	TokenLT          TokenType = "<"
	TokenGT          TokenType = ">"
	TokenLE          TokenType = "<="
	TokenGE          TokenType = ">="
	TokenAnd         TokenType = "&&"
	TokenOr          TokenType = "||"
	TokenNot         TokenType = "!"

	TokenEOF TokenType = "EOF"
)

var keywords = map[string]TokenType{
	"fun":   TokenFun,
	"let":   TokenLet,
	"var":   TokenVar,
	"const": TokenConst,
	"in":    TokenIn,
	"if":    TokenIf,
	"then":  TokenThen,
	"else":  TokenElse,
	"true":  TokenTrue,
	"false": TokenFalse,
	"null":  TokenNull,
}

type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
	Column int
	File   string
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q %d:%d", t.Type, t.Lexeme, t.Line, t.Column)
}

type Scanner struct {
	source    string
	file      string
	tokens    []Token
	start     int
	current   int
	line      int
	lineStart int
	errors    []*errors.BiesError
}

func NewScanner(source string) *Scanner {
	return &Scanner{source: source, line: 1}
}

func NewScannerWithFile(source, file string) *Scanner {
	return &Scanner{source: source, file: file, line: 1}
}

// Errors returns the lexical errors found by ScanTokens.
func (s *Scanner) Errors() []*errors.BiesError {
	return s.errors
}

func (s *Scanner) HadError() bool {
	return len(s.errors) > 0
}

func (s *Scanner) ScanTokens() []Token {
	if len(s.source) >= 2 && s.source[0] == '#' && s.source[1] == '!' {
		s.skipShebang()
	}

	for !s.isAtEnd() {
		s.sanitize()
		s.start = s.current
		if s.isAtEnd() {
			break
		}
		s.scanToken()
	}
	s.tokens = append(s.tokens, Token{Type: TokenEOF, Lexeme: "", Line: s.line, Column: s.column(), File: s.file})
	return s.tokens
}

func (s *Scanner) scanToken() {
	c := s.advance()
	switch c {
	case '(':
		s.addToken(TokenLParen)
	case ')':
		s.addToken(TokenRParen)
	case '{':
		s.addToken(TokenLBrace)
	case '}':
		s.addToken(TokenRBrace)
	case '[':
		s.addToken(TokenLBracket)
	case ']':
		s.addToken(TokenRBracket)
	case ',':
		s.addToken(TokenComma)
	case ';':
		s.addToken(TokenSemicolon)
	case '+':
		s.addToken(TokenPlus)
	case '-':
		s.addToken(TokenMinus)
	case '*':
		if s.match('*') {
			s.addToken(TokenStarStar)
		} else {
			s.addToken(TokenStar)
		}
	case '/':
		switch {
		case s.match('/'):
			for s.peek() != '\n' && !s.isAtEnd() {
				s.advance()
			}
		case s.match('*'):
			s.blockComment()
		default:
			s.addToken(TokenSlash)
		}
	case '=':
		switch {
		case s.match('='):
			s.addToken(TokenDoubleEqual)
		case s.match('>'):
			s.addToken(TokenArrow)
		default:
			s.addToken(TokenEqual)
		}
	case '!':
		if s.match('=') {
			s.addToken(TokenNotEqual)
		} else {
			s.addToken(TokenNot)
		}
	case '<':
		if s.match('=') {
			s.addToken(TokenLE)
		} else {
			s.addToken(TokenLT)
		}
	case '>':
		if s.match('=') {
			s.addToken(TokenGE)
		} else {
			s.addToken(TokenGT)
		}
	case '&':
		if s.match('&') {
			s.addToken(TokenAnd)
		} else {
			s.errorf("unexpected '&' (did you mean '&&'?)")
		}
	case '|':
		if s.match('|') {
			s.addToken(TokenOr)
		} else {
			s.errorf("unexpected '|' (did you mean '||'?)")
		}
	case '"':
		s.string()
	default:
		switch {
		case isDigit(c):
			s.number()
		case isAlpha(c):
			s.identifier()
		default:
			s.errorf("unexpected character %q", c)
		}
	}
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) identifier() {
	for isAlphaNumeric(s.peek()) {
		s.advance()
	}
	text := s.source[s.start:s.current]
	if t, ok := keywords[text]; ok {
		s.addToken(t)
		return
	}
	s.addToken(TokenIdent)
}

// number accepts integers, decimals and exponents: 12, 1.5, 3e-4.
func (s *Scanner) number() {
	for isDigit(s.peek()) {
		s.advance()
	}
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	if s.peek() == 'e' || s.peek() == 'E' {
		save := s.current
		s.advance()
		if s.peek() == '+' || s.peek() == '-' {
			s.advance()
		}
		if !isDigit(s.peek()) {
			s.current = save
		} else {
			for isDigit(s.peek()) {
				s.advance()
			}
		}
	}
	s.addToken(TokenNumber)
}

func (s *Scanner) string() {
	line, col := s.line, s.start-s.lineStart+1
	var sb strings.Builder
	for s.peek() != '"' && !s.isAtEnd() {
		c := s.advance()
		switch c {
		case '\n':
			s.newline()
			sb.WriteByte(c)
		case '\\':
			if s.isAtEnd() {
				continue
			}
			switch e := s.advance(); e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"', '\\':
				sb.WriteByte(e)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
	}
	if s.isAtEnd() {
		s.errors = append(s.errors, errors.NewSyntaxError("unterminated string", s.file, line, col))
		return
	}
	s.advance()
	s.tokens = append(s.tokens, Token{Type: TokenString, Lexeme: sb.String(), Line: line, Column: col, File: s.file})
}

func (s *Scanner) blockComment() {
	for !s.isAtEnd() {
		if s.peek() == '*' && s.peekNext() == '/' {
			s.current += 2
			return
		}
		if s.advance() == '\n' {
			s.newline()
		}
	}
}

func (s *Scanner) addToken(t TokenType) {
	text := s.source[s.start:s.current]
	s.tokens = append(s.tokens, Token{Type: t, Lexeme: text, Line: s.line, Column: s.start - s.lineStart + 1, File: s.file})
}

func (s *Scanner) errorf(format string, args ...interface{}) {
	err := errors.NewSyntaxError(fmt.Sprintf(format, args...), s.file, s.line, s.start-s.lineStart+1)
	s.errors = append(s.errors, err)
}

func (s *Scanner) advance() byte {
	s.current++
	return s.source[s.current-1]
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return '\000'
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return '\000'
	}
	return s.source[s.current+1]
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) newline() {
	s.line++
	s.lineStart = s.current
}

func (s *Scanner) column() int {
	return s.current - s.lineStart + 1
}

func (s *Scanner) sanitize() {
	for !s.isAtEnd() && unicode.IsSpace(rune(s.peek())) {
		s.advance()
		if s.source[s.current-1] == '\n' {
			s.newline()
		}
	}
}

func isAlpha(c byte) bool {
	return unicode.IsLetter(rune(c)) || c == '_'
}

func isAlphaNumeric(c byte) bool {
	return isAlpha(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// skipShebang skips a #! line at the start of a script.
func (s *Scanner) skipShebang() {
	for !s.isAtEnd() && s.peek() != '\n' {
		s.advance()
	}
}
