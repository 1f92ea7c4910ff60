package repl

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"bies/internal/errors"
	"bies/internal/parser"
)

func TestBindingsPersist(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(&out, strings.NewReader(""))

	require.NoError(t, s.Eval("let x = 41"))
	require.NoError(t, s.Eval("fun inc(v) => v + 1"))
	require.NoError(t, s.Eval("print(inc(x))"))
	require.NoError(t, s.Eval("var n = 1\nn = n + inc(n)\nprint(n)"))
	require.Equal(t, "42\n3\n", out.String())
}

func TestFailedInputLeavesSession(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(&out, strings.NewReader(""))
	require.NoError(t, s.Eval("let a = 1"))

	err := s.Eval("let b = 2\nprint(missing)")
	require.True(t, errors.Is(err, errors.ReferenceError), "got %v", err)

	// b was rolled back with the rest of the failed input.
	require.NoError(t, s.Eval("let b = a + 1\nprint(b)"))

	err = s.Eval("print([1][9])")
	require.True(t, errors.Is(err, errors.RuntimeError))

	require.NoError(t, s.Eval("print(a + b)"))
	require.Equal(t, "2\n3\n", out.String())
}

func TestInputAcrossEvaluations(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(&out, strings.NewReader("one\ntwo\n"))
	require.NoError(t, s.Eval("print(input())"))
	require.NoError(t, s.Eval("print(input())"))
	require.Equal(t, "one\ntwo\n", out.String())
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.bies")
	require.NoError(t, os.WriteFile(path, []byte("fun double(n) => n * 2\n"), 0o644))

	var out bytes.Buffer
	s := NewSession(&out, strings.NewReader(""))

	require.False(t, s.Command(":load "+path))
	require.NoError(t, s.Eval("print(double(4))"))
	require.Contains(t, out.String(), "8\n")

	out.Reset()
	require.False(t, s.Command(":bytecode"))
	require.Contains(t, out.String(), "$FUN $1 args:1 parent:$0")
	require.Contains(t, out.String(), "INI $0")

	out.Reset()
	require.False(t, s.Command(":load "+filepath.Join(dir, "nope.bies")))
	require.Contains(t, out.String(), "cannot read")

	out.Reset()
	require.False(t, s.Command(":reset"))
	require.Error(t, s.Eval("print(double(1))"))
	require.Empty(t, s.Bytecode())

	require.False(t, s.Command(":what"))
	require.Contains(t, out.String(), "unknown command")
	require.True(t, s.Command(":quit"))
}

func TestIncomplete(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"fun f(a) =>", true},
		{"let x = [1,", true},
		{"print(if 1 then", true},
		{"let x = 1 +", true},
		{"print(1", true},
		{"print(1))", false},
		{"let = 3", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := parser.ParseSource(tt.src, file)
			require.Error(t, err)
			require.Equal(t, tt.want, Incomplete(tt.src, err))
		})
	}
}
