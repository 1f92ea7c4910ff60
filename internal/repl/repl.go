// internal/repl/repl.go
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	pkgerrors "github.com/pkg/errors"

	"bies/internal/bytecode"
	"bies/internal/compiler"
	"bies/internal/parser"
	"bies/internal/vm"
)

const (
	file        = "<repl>"
	promptMain  = "bies> "
	promptCont  = "...   "
	historyFile = ".bies_history"
	banner      = "bies REPL | :help for commands, :quit to leave"
	helpText    = `Commands:
  :help            show this help
  :quit            leave the REPL
  :reset           forget every binding
  :load <file>     evaluate a source file in this session
  :bytecode        show the bytecode of the session so far
  :scopes          show the scope tree
`
)

// Session keeps one compiler and one outermost frame across inputs, so
// bindings made by one input are visible to the next.
type Session struct {
	compiler *compiler.Compiler
	globals  *vm.Frame
	code     *bytecode.Code
	out      io.Writer
	in       *bufio.Reader
}

func NewSession(out io.Writer, in io.Reader) *Session {
	// Shared by every Runner of the session.
	s := &Session{out: out, in: bufio.NewReader(in)}
	s.Reset()
	return s
}

func (s *Session) Reset() {
	s.compiler = compiler.New(file)
	s.globals = vm.NewFrame(nil)
	s.code = bytecode.NewCode()
}

// Eval compiles src against the session's bindings and runs it. A
// compile failure leaves the session unchanged.
func (s *Session) Eval(src string) error {
	prog, err := parser.ParseSource(src, file)
	if err != nil {
		return err
	}
	code, err := s.compiler.Compile(prog)
	if err != nil {
		return err
	}
	s.code.Merge(code)

	r, err := vm.NewRunner(s.code, vm.WithOutput(s.out), vm.WithInput(s.in), vm.WithGlobals(s.globals))
	if err != nil {
		return err
	}
	return r.Run()
}

// Bytecode renders every function compiled in this session.
func (s *Session) Bytecode() string {
	if s.code.Len() == 0 {
		return ""
	}
	return bytecode.Format(s.code)
}

// Command handles one ':' line and reports whether the REPL should exit.
func (s *Session) Command(line string) (exit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case ":help":
		fmt.Fprint(s.out, helpText)
	case ":quit", ":exit":
		return true
	case ":reset":
		s.Reset()
		fmt.Fprintln(s.out, "session reset.")
	case ":load":
		if len(fields) != 2 {
			fmt.Fprintln(s.out, "usage: :load <file>")
			return false
		}
		src, err := os.ReadFile(fields[1])
		if err != nil {
			fmt.Fprintln(s.out, pkgerrors.Wrapf(err, "cannot read %s", fields[1]))
			return false
		}
		if err := s.Eval(string(src)); err != nil {
			fmt.Fprintln(s.out, err)
		}
	case ":bytecode":
		fmt.Fprint(s.out, s.Bytecode())
	case ":scopes":
		s.compiler.Table().Dump(s.out)
	default:
		fmt.Fprintln(s.out, "unknown command. Type :help for help.")
	}
	return false
}

// Start runs the interactive loop on the terminal until EOF or :quit.
func Start(out io.Writer) int {
	fmt.Fprintln(out, banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	s := NewSession(out, os.Stdin)
	for {
		src, ok := readInput(ln)
		if !ok {
			fmt.Fprintln(out)
			break
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			if s.Command(src) {
				break
			}
			continue
		}
		if err := s.Eval(src); err != nil {
			fmt.Fprintln(out, err)
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return 0
}

// readInput keeps prompting while the buffer parses as an unfinished
// program.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if pkgerrors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending input.
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, perr := parser.ParseSource(src, file); perr != nil && Incomplete(src, perr) {
			continue
		}
		return src, true
	}
}

var openEndings = []string{"=>", "=", "(", "[", "{", ",", "+", "-", "*", "/", "&&", "||", "then", "else", "in"}

// Incomplete guesses whether a parse failure only means more input is
// coming.
func Incomplete(src string, err error) bool {
	if strings.Contains(err.Error(), "end of file") {
		return true
	}
	trimmed := strings.TrimSpace(src)
	for _, end := range openEndings {
		if strings.HasSuffix(trimmed, end) {
			return true
		}
	}
	return false
}
