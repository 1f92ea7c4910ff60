package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	funHeader  = "$FUN"
	funFooter  = "$END"
	argsPrefix = "args:"
	parentPref = "parent:"
)

// Write renders code in bytecode text form: one $FUN ... $END section
// per function in emission order, then the INI line naming the entry.
func Write(w io.Writer, code *Code) error {
	bw := bufio.NewWriter(w)
	for _, fn := range code.Functions() {
		fmt.Fprintf(bw, "%s %s %s%d %s%s\n", funHeader, fn.ID, argsPrefix, fn.Arity, parentPref, fn.Parent)
		for _, ins := range fn.Instructions {
			bw.WriteString(ins.String())
			bw.WriteByte('\n')
		}
		fmt.Fprintf(bw, "%s %s\n", funFooter, fn.ID)
	}
	fmt.Fprintf(bw, "%s %s\n", OpInit, code.Entry)
	return bw.Flush()
}

// Format returns the bytecode text of code.
func Format(code *Code) string {
	var sb strings.Builder
	_ = Write(&sb, code)
	return sb.String()
}
