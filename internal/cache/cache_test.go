package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bies/internal/bytecode"
	"bies/internal/compiler"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func compile(t *testing.T, src string) *bytecode.Code {
	t.Helper()
	code, err := compiler.CompileSource(src, "cached.bies")
	require.NoError(t, err)
	return code
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	src := "fun hello() => \"Hello World!\"\nprint(hello())"

	_, ok, err := c.Get(ctx, src)
	require.NoError(t, err)
	require.False(t, ok)

	code := compile(t, src)
	id, err := c.Put(ctx, "hello.bies", src, code)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	got, ok, err := c.Get(ctx, src)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bytecode.Format(code), bytecode.Format(got))

	_, ok, err = c.Get(ctx, src+"\n")
	require.NoError(t, err)
	require.False(t, ok, "different source, different key")
}

func TestPutReplaces(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	src := "print(1)"

	first, err := c.Put(ctx, "a.bies", src, compile(t, src))
	require.NoError(t, err)
	second, err := c.Put(ctx, "b.bies", src, compile(t, src))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, second, entries[0].ID)
	require.Equal(t, "b.bies", entries[0].File)
	require.Equal(t, 1, entries[0].Functions)
	require.Equal(t, 3, entries[0].Instructions)
}

func TestStatsAndClear(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	c.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	for _, src := range []string{"print(1)", "print(2)\nprint(3)"} {
		_, err := c.Put(ctx, "x.bies", src, compile(t, src))
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, ok, err := c.Get(ctx, "print(1)")
		require.NoError(t, err)
		require.True(t, ok)
	}

	s, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, "sqlite", s.Driver)
	require.EqualValues(t, 2, s.Entries)
	require.EqualValues(t, 3, s.Hits)
	require.EqualValues(t, 3+5, s.Instructions)
	require.Contains(t, s.String(), "last write: 2 hours ago")

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	s, err = c.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, s.Entries)
	require.Contains(t, s.String(), "last write: never")
}

func TestDamagedEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)
	src := "print(1)"
	_, err := c.Put(ctx, "x.bies", src, compile(t, src))
	require.NoError(t, err)

	_, err = c.db.Exec("UPDATE bies_cache SET bytecode = 'garbage'")
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, src)
	require.NoError(t, err)
	require.False(t, ok)

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDialects(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	tests := []struct {
		driver string
		name   string
		want   string
	}{
		{"sqlite3", "sqlite", q},
		{"", "sqlite", q},
		{"mysql", "mysql", q},
		{"postgresql", "postgres", "SELECT a FROM t WHERE b = $1 AND c = $2"},
		{"mssql", "sqlserver", "SELECT a FROM t WHERE b = @p1 AND c = @p2"},
	}
	for _, tt := range tests {
		d, err := lookupDialect(tt.driver)
		require.NoError(t, err)
		require.Equal(t, tt.name, d.name)
		require.Equal(t, tt.want, d.bind(q))
	}

	_, err := lookupDialect("mongodb")
	require.EqualError(t, err, "unsupported cache driver: mongodb")
}

func TestKey(t *testing.T) {
	require.Len(t, Key("print(1)"), 64)
	require.Equal(t, Key("print(1)"), Key("print(1)"))
	require.NotEqual(t, Key("print(1)"), Key("print(2)"))
}
