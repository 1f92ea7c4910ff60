package vm

import (
	"fmt"
	"io"
	"strings"

	"bies/internal/bytecode"
	"bies/internal/errors"
)

func init() {
	register(bytecode.OpPrint, printLine)
	register(bytecode.OpInput, readLine)
}

func printLine(r *Runner, _ bytecode.Instruction) {
	if _, err := fmt.Fprintln(r.out, ToString(r.pop())); err != nil {
		r.fail(errors.RuntimeError, "write failed: %v", err)
	}
}

// readLine reads one line without its terminator. EOF reads as "".
func readLine(r *Runner, _ bytecode.Instruction) {
	line, err := r.in.ReadString('\n')
	if err != nil && err != io.EOF {
		r.fail(errors.RuntimeError, "read failed: %v", err)
	}
	r.push(strings.TrimRight(line, "\r\n"))
}
