package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bies/internal/errors"
)

// Parse reads bytecode text. file is only used in error locations.
func Parse(r io.Reader, file string) (*Code, error) {
	l := &loader{file: file, code: NewCode()}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		l.line++
		if err := l.parseLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := l.finish(); err != nil {
		return nil, err
	}
	return l.code, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(src, file string) (*Code, error) {
	return Parse(strings.NewReader(src), file)
}

type loader struct {
	file    string
	line    int
	code    *Code
	current *Function
	// LDF targets are checked once every function is known.
	refs []funcRef
}

type funcRef struct {
	id   string
	line int
}

func (l *loader) errorf(format string, args ...interface{}) error {
	return errors.NewLoadError(fmt.Sprintf(format, args...), l.file, l.line)
}

func (l *loader) parseLine(raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, ";") {
		return nil
	}
	fields, err := splitFields(text)
	if err != nil {
		return l.errorf("%v", err)
	}

	switch fields[0] {
	case funHeader:
		return l.beginFunction(fields)
	case funFooter:
		if l.current == nil {
			return l.errorf("%s outside of a function", funFooter)
		}
		if len(fields) != 2 || fields[1] != l.current.ID {
			return l.errorf("%s does not close %s", text, l.current.ID)
		}
		l.code.Add(l.current)
		l.current = nil
		return nil
	case string(OpInit):
		if l.current != nil {
			return l.errorf("INI inside function %s", l.current.ID)
		}
		if len(fields) != 2 || !IsFunctionID(fields[1]) {
			return l.errorf("malformed entry point %q", text)
		}
		l.code.Entry = fields[1]
		return nil
	}

	if l.current == nil {
		return l.errorf("instruction %q outside of a function", fields[0])
	}
	op := Mnemonic(fields[0])
	operands := make([]Operand, 0, len(fields)-1)
	for _, f := range fields[1:] {
		o, err := parseOperand(f)
		if err != nil {
			return l.errorf("%s: %v", op, err)
		}
		operands = append(operands, o)
	}
	if want, known := OperandCount(op); known && want != len(operands) {
		return l.errorf("%s takes %d operand(s), got %d", op, want, len(operands))
	}
	if op == OpLoadFunc && len(operands) == 1 {
		l.refs = append(l.refs, funcRef{id: operands[0].Str, line: l.line})
	}
	l.current.Emit(Instruction{Op: op, Operands: operands, Line: l.line})
	return nil
}

func (l *loader) beginFunction(fields []string) error {
	if l.current != nil {
		return l.errorf("%s opened before %s was closed", funHeader, l.current.ID)
	}
	if len(fields) != 4 || !IsFunctionID(fields[1]) ||
		!strings.HasPrefix(fields[2], argsPrefix) || !strings.HasPrefix(fields[3], parentPref) {
		return l.errorf("malformed function header")
	}
	arity, err := strconv.Atoi(strings.TrimPrefix(fields[2], argsPrefix))
	if err != nil || arity < 0 {
		return l.errorf("bad argument count %q", fields[2])
	}
	if _, dup := l.code.Function(fields[1]); dup {
		return l.errorf("function %s defined twice", fields[1])
	}
	l.current = NewFunction(fields[1], arity, strings.TrimPrefix(fields[3], parentPref))
	return nil
}

func (l *loader) finish() error {
	if l.current != nil {
		return l.errorf("function %s is missing %s", l.current.ID, funFooter)
	}
	if l.code.Entry == "" {
		return l.errorf("no INI entry point")
	}
	if _, ok := l.code.Function(l.code.Entry); !ok {
		return l.errorf("entry point %s names no function", l.code.Entry)
	}
	for _, ref := range l.refs {
		if _, ok := l.code.Function(ref.id); !ok {
			return errors.NewLoadError(fmt.Sprintf("LDF target %s names no function", ref.id), l.file, ref.line)
		}
	}
	return nil
}

// splitFields breaks an instruction line on spaces while keeping quoted
// strings and bracketed lists whole.
func splitFields(s string) ([]string, error) {
	var fields []string
	i := 0
	for i < len(s) {
		if s[i] == ' ' || s[i] == '\t' {
			i++
			continue
		}
		start := i
		switch s[i] {
		case '"':
			end, err := scanQuoted(s, i)
			if err != nil {
				return nil, err
			}
			i = end
		case '[':
			end, err := scanList(s, i)
			if err != nil {
				return nil, err
			}
			i = end
		default:
			for i < len(s) && s[i] != ' ' && s[i] != '\t' {
				i++
			}
		}
		fields = append(fields, s[start:i])
	}
	return fields, nil
}

// scanQuoted returns the index just past the closing quote of the
// string starting at s[i].
func scanQuoted(s string, i int) (int, error) {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j + 1, nil
		}
	}
	return 0, fmt.Errorf("unterminated string")
}

func scanList(s string, i int) (int, error) {
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '"':
			end, err := scanQuoted(s, j)
			if err != nil {
				return 0, err
			}
			j = end - 1
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return j + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated list")
}

func parseOperand(tok string) (Operand, error) {
	switch {
	case strings.HasPrefix(tok, `"`):
		s, err := strconv.Unquote(tok)
		if err != nil {
			return Operand{}, fmt.Errorf("bad string literal %s", tok)
		}
		return String(s), nil
	case strings.HasPrefix(tok, "["):
		return parseList(tok)
	case tok == "null":
		return Null(), nil
	case tok == "+Inf" || tok == "-Inf" || tok == "NaN" || looksNumeric(tok):
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("bad number %s", tok)
		}
		return Number(f), nil
	}
	return Symbol(tok), nil
}

func looksNumeric(tok string) bool {
	c := tok[0]
	if c == '-' || c == '+' || c == '.' {
		return len(tok) > 1
	}
	return c >= '0' && c <= '9'
}

func parseList(tok string) (Operand, error) {
	inner := strings.TrimSpace(tok[1 : len(tok)-1])
	if inner == "" {
		return List(), nil
	}
	var items []Operand
	depth, start := 0, 0
	for j := 0; j <= len(inner); j++ {
		if j < len(inner) {
			switch inner[j] {
			case '"':
				end, err := scanQuoted(inner, j)
				if err != nil {
					return Operand{}, err
				}
				j = end - 1
				continue
			case '[':
				depth++
				continue
			case ']':
				depth--
				continue
			case ',':
				if depth > 0 {
					continue
				}
			default:
				continue
			}
		}
		part := strings.TrimSpace(inner[start:j])
		if part == "" {
			return Operand{}, fmt.Errorf("empty list element in %s", tok)
		}
		item, err := parseOperand(part)
		if err != nil {
			return Operand{}, err
		}
		items = append(items, item)
		start = j + 1
	}
	return List(items...), nil
}
