package parser

// BuiltinSpec describes a reserved builtin and how many arguments it takes.
type BuiltinSpec struct {
	Name    string
	MinArgs int
	MaxArgs int
}

var builtins = map[string]BuiltinSpec{}

func init() {
	for _, b := range []BuiltinSpec{
		{"print", 1, 1},
		{"input", 0, 1},
		{"len", 1, 1},
		{"num", 1, 1},
		{"int", 1, 1},
		{"str", 1, 1},
		{"list", 1, 1},
		{"isnum", 1, 1},
		{"isstr", 1, 1},
		{"islist", 1, 1},
		{"tostr", 1, 1},
		{"tolist", 1, 1},
		{"emptystr", 1, 1},
		{"emptylist", 1, 1},
		{"cat", 2, 2},
		{"droplast", 1, 1},
		{"dropfirst", 1, 1},
		{"prepend", 2, 2},
		{"drop", 2, 2},
		{"sign", 1, 1},
		{"xor", 2, 2},
	} {
		builtins[b.Name] = b
	}
}

// LookupBuiltin reports whether name is a reserved builtin.
func LookupBuiltin(name string) (BuiltinSpec, bool) {
	b, ok := builtins[name]
	return b, ok
}
