package scope

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"bies/internal/errors"
)

func newTable() (*Table, *errors.Diagnostics) {
	d := errors.NewDiagnostics("")
	return NewTable("test.bies", d), d
}

func TestDeclareAssignsSequentialSlots(t *testing.T) {
	tbl, d := newTable()
	for i, name := range []string{"a", "b", "c"} {
		id, addr, ok := tbl.Declare(name, Let, i+1)
		require.True(t, ok)
		require.Equal(t, i, id.Slot)
		require.Equal(t, Address{Depth: 0, Slot: i}, addr)
	}
	require.Zero(t, d.Len())
}

func TestDuplicateOnlyInSameScope(t *testing.T) {
	tbl, d := newTable()
	tbl.Declare("x", Let, 1)
	_, _, ok := tbl.Declare("x", Var, 2)
	require.False(t, ok)
	require.Equal(t, 1, d.Len())
	require.Contains(t, d.Error(), "duplicate identifier 'x'")

	tbl.EnterScope("f")
	_, addr, ok := tbl.Declare("x", Param, 3)
	require.True(t, ok, "shadowing an outer scope is allowed")
	require.Equal(t, Address{0, 0}, addr)
	require.Equal(t, 1, d.Len())
}

func TestResolveCountsDistance(t *testing.T) {
	tbl, d := newTable()
	tbl.Declare("g", Let, 1)
	tbl.Declare("h", Let, 1)
	tbl.EnterScope("outer")
	tbl.Declare("a", Param, 2)
	tbl.EnterScope("inner")
	tbl.Declare("b", Param, 3)

	tests := []struct {
		name string
		want Address
	}{
		{"b", Address{0, 0}},
		{"a", Address{1, 0}},
		{"h", Address{2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, _, ok := tbl.Resolve(tt.name, 4)
			require.True(t, ok)
			require.Equal(t, tt.want, addr)
		})
	}

	_, _, ok := tbl.Resolve("nope", 9)
	require.False(t, ok)
	require.Equal(t, 1, d.Len())
	require.Equal(t, 9, d.Items()[0].Location.Line)
	require.Equal(t, errors.ReferenceError, d.Items()[0].Type)
}

func TestInlineScopesShareFrame(t *testing.T) {
	tbl, _ := newTable()
	tbl.Declare("x", Let, 1)
	tbl.EnterScope("f")
	tbl.Declare("p", Param, 2)
	tbl.EnterInlineScope("then")
	addr, _, ok := tbl.Resolve("p", 3)
	require.True(t, ok)
	require.Equal(t, Address{0, 0}, addr)
	addr, _, _ = tbl.Resolve("x", 3)
	require.Equal(t, Address{1, 0}, addr)

	_, addr, ok = tbl.Declare("q", Let, 3)
	require.True(t, ok)
	require.Equal(t, 1, addr.Slot, "declarations land in the frame-owning scope")
}

func TestInitializingBindingIsSkipped(t *testing.T) {
	tbl, d := newTable()
	tbl.Declare("x", Let, 1)
	tbl.EnterImmediateScope("let")
	inner, _, ok := tbl.Declare("x", Let, 2)
	require.True(t, ok)
	inner.Initializing = true

	addr, id, ok := tbl.Resolve("x", 2)
	require.True(t, ok)
	require.Equal(t, Address{1, 0}, addr, "immediate scopes resolve past the binding")
	require.NotSame(t, inner, id)

	tbl.EnterScope("lambda")
	addr, id, ok = tbl.Resolve("x", 2)
	require.True(t, ok)
	require.Equal(t, Address{1, 0}, addr, "function bodies see the binding being initialized")
	require.Same(t, inner, id)
	tbl.ExitScope()
	tbl.ExitScope()

	y, _, _ := tbl.Declare("y", Let, 3)
	y.Initializing = true
	_, _, ok = tbl.Resolve("y", 3)
	require.False(t, ok)
	require.Equal(t, 1, d.Len())
}

func TestReassignConst(t *testing.T) {
	tbl, d := newTable()
	tbl.Declare("k", Const, 1)
	tbl.Declare("v", Var, 2)

	_, _, ok := tbl.Reassign("v", 3)
	require.True(t, ok)
	_, _, ok = tbl.Reassign("k", 4)
	require.False(t, ok)
	require.Equal(t, 1, d.Len())
	require.Contains(t, d.Error(), "cannot reassign const 'k'")
}

func TestExitRootPanics(t *testing.T) {
	tbl, _ := newTable()
	tbl.EnterScope("f")
	tbl.ExitScope()
	require.Panics(t, func() { tbl.ExitScope() })
}

func TestRollback(t *testing.T) {
	tbl, _ := newTable()
	tbl.Declare("keep", Let, 1)
	m := tbl.Mark()
	tbl.Declare("drop", Let, 2)
	tbl.EnterScope("lambda")
	tbl.Rollback(m)

	require.Same(t, tbl.Root(), tbl.Current())
	require.Nil(t, tbl.Lookup("drop"))
	require.NotNil(t, tbl.Lookup("keep"))
	s := tbl.EnterScope("again")
	require.Equal(t, 1, s.ID)
	_, addr, _ := tbl.Declare("y", Let, 3)
	require.Equal(t, 0, addr.Slot)
}

func TestDump(t *testing.T) {
	tbl, _ := newTable()
	tbl.Declare("f", Function, 1)
	tbl.EnterScope("f")
	tbl.SetArity(1)
	tbl.Declare("n", Param, 1)
	var buf bytes.Buffer
	tbl.Dump(&buf)
	require.Contains(t, buf.String(), "scope 1 f args:1")
	require.Contains(t, buf.String(), "function")
}
