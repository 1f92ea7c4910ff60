package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormat(t *testing.T) {
	err := NewSyntaxError("unexpected ')'", "main.bies", 2, 7).WithSource("print(1))")
	assert.Equal(t, "SyntaxError: unexpected ')'\n  at main.bies:2:7\n\n  2 | print(1))\n      "+"      ^", err.Error())

	rt := NewRuntimeError("boom", 3).WithStack([]StackFrame{
		{Function: "$1", PC: 4, Line: 3},
		{Function: "$0", PC: 9},
	})
	assert.Equal(t, "RuntimeError: boom\n  at line 3\n\nCall Stack:\n  at $1 pc=4 (line 3)\n  at $0 pc=9", rt.Error())
}

func TestDiagnostics(t *testing.T) {
	var empty Diagnostics
	require.NoError(t, empty.Err())

	d := NewDiagnostics("let a = 1\nprint(b)\r\nprint(c)")
	d.Addf(ReferenceError, "x.bies", 2, "undefined identifier '%s'", "b")
	d.Addf(ReferenceError, "x.bies", 3, "undefined identifier '%s'", "c")
	require.Equal(t, 2, d.Len())
	assert.Equal(t, "print(b)", d.Items()[0].Source)

	err := d.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined identifier 'b'")
	assert.Contains(t, err.Error(), "\n\n2 errors")
	assert.True(t, Is(err, ReferenceError))
	assert.False(t, Is(err, TypeError))
}

func TestIs(t *testing.T) {
	assert.True(t, Is(NewTypeError("x", 1), TypeError))
	assert.True(t, Is(NewLoadError("x", "a.basm", 1), LoadError))
	assert.False(t, Is(NewLoadError("x", "a.basm", 1), RuntimeError))
	assert.False(t, Is(nil, RuntimeError))
}
