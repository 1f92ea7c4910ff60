package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func types(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, t := range tokens {
		out[i] = t.Type
	}
	return out
}

func TestScanTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{"declaration", "let x = 5", []TokenType{TokenLet, TokenIdent, TokenEqual, TokenNumber, TokenEOF}},
		{"lambda", "(a, b) => a ** b", []TokenType{
			TokenLParen, TokenIdent, TokenComma, TokenIdent, TokenRParen, TokenArrow,
			TokenIdent, TokenStarStar, TokenIdent, TokenEOF}},
		{"operators", "== != <= >= < > && || ! * /", []TokenType{
			TokenDoubleEqual, TokenNotEqual, TokenLE, TokenGE, TokenLT, TokenGT,
			TokenAnd, TokenOr, TokenNot, TokenStar, TokenSlash, TokenEOF}},
		{"conditional", "if c then {1} else {2}", []TokenType{
			TokenIf, TokenIdent, TokenThen, TokenLBrace, TokenNumber, TokenRBrace,
			TokenElse, TokenLBrace, TokenNumber, TokenRBrace, TokenEOF}},
		{"comments", "// line\n1 /* block\n comment */ 2", []TokenType{TokenNumber, TokenNumber, TokenEOF}},
		{"literals", "true false null []", []TokenType{TokenTrue, TokenFalse, TokenNull, TokenLBracket, TokenRBracket, TokenEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScanner(tt.input)
			require.Equal(t, tt.want, types(s.ScanTokens()))
			require.False(t, s.HadError())
		})
	}
}

func TestNumbersAndStrings(t *testing.T) {
	s := NewScanner(`12 1.5 3e-4 2e "a\n\"b\""`)
	tokens := s.ScanTokens()
	require.Equal(t, "12", tokens[0].Lexeme)
	require.Equal(t, "1.5", tokens[1].Lexeme)
	require.Equal(t, "3e-4", tokens[2].Lexeme)
	require.Equal(t, "2", tokens[3].Lexeme)
	require.Equal(t, TokenIdent, tokens[4].Type)
	require.Equal(t, "a\n\"b\"", tokens[5].Lexeme)
}

func TestLineAndColumn(t *testing.T) {
	tokens := NewScanner("let x = 1\n  print(x)").ScanTokens()
	print := tokens[4]
	require.Equal(t, "print", print.Lexeme)
	require.Equal(t, 2, print.Line)
	require.Equal(t, 3, print.Column)
}

func TestLexicalErrors(t *testing.T) {
	s := NewScanner("let s = \"open\nlet y = 1 & 2 @")
	s.ScanTokens()
	require.True(t, s.HadError())
	require.Contains(t, s.Errors()[0].Error(), "unterminated string")
}
