// internal/compiler/compiler.go
package compiler

import (
	"bies/internal/bytecode"
	"bies/internal/errors"
	"bies/internal/parser"
	"bies/internal/scope"
)

// RootID is the id of the program block and the entry point.
var RootID = bytecode.FunctionID(0)

// Compiler carries all state of a compilation: the scope table, the
// diagnostics of the current run and the functions emitted so far.
// Separate Compilers share nothing.
type Compiler struct {
	file  string
	table *scope.Table
	diags *errors.Diagnostics
	code  *bytecode.Code
}

func New(file string) *Compiler {
	diags := errors.NewDiagnostics("")
	return &Compiler{
		file:  file,
		table: scope.NewTable(file, diags),
		diags: diags,
	}
}

// Table exposes the scope tree, mostly for dumps and tests.
func (c *Compiler) Table() *scope.Table {
	return c.table
}

// Compile emits bytecode for prog. When any diagnostic is recorded the
// returned error is an *errors.Diagnostics and no code is produced.
//
// A Compiler may be reused: top-level bindings of earlier successful
// runs stay visible, and function ids keep counting up. A failed run is
// rolled back.
func (c *Compiler) Compile(prog *parser.Program) (*bytecode.Code, error) {
	c.diags = errors.NewDiagnostics(prog.Source)
	c.table.SetDiagnostics(c.diags)
	c.code = bytecode.NewCode()
	mark := c.table.Mark()

	main := &emitter{c: c, fn: bytecode.NewFunction(RootID, 0, RootID)}
	last := 1
	for _, stmt := range prog.Stmts {
		stmt.Accept(main)
		last = stmt.Pos()
	}
	main.emit(bytecode.OpHalt, last)

	if err := c.diags.Err(); err != nil {
		c.table.Rollback(mark)
		return nil, err
	}
	c.code.Add(main.fn)
	c.code.Entry = RootID
	return c.code, nil
}

// CompileSource parses and compiles one source file with a fresh Compiler.
func CompileSource(source, file string) (*bytecode.Code, error) {
	prog, err := parser.ParseSource(source, file)
	if err != nil {
		return nil, err
	}
	return New(file).Compile(prog)
}

func (c *Compiler) errorf(line int, format string, args ...interface{}) {
	c.diags.Addf(errors.CompileError, c.file, line, format, args...)
}
