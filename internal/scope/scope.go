// Package scope resolves identifiers to static (depth, slot) addresses
// at compile time.
package scope

import (
	"fmt"
	"io"
	"strings"

	"bies/internal/errors"
)

// Kind is how an identifier was declared.
type Kind int

const (
	Const Kind = iota
	Let
	Var
	Param
	Function
)

func (k Kind) String() string {
	switch k {
	case Const:
		return "const"
	case Let:
		return "let"
	case Var:
		return "var"
	case Param:
		return "param"
	case Function:
		return "function"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// UnknownArity marks a binding whose call arity cannot be known statically.
const UnknownArity = -1

// Identifier is one declared binding.
type Identifier struct {
	Name       string
	Kind       Kind
	Slot       int
	Line       int
	IsFunction bool
	// Arity is the parameter count when the binding is statically known
	// to hold a function, UnknownArity otherwise.
	Arity int
	// NotCallable is set when the binding is statically known to hold a
	// non-function value.
	NotCallable bool
	// Initializing is set while the binding's own initializer compiles.
	// Reads that run before the store skip it.
	Initializing bool
}

// Forget drops what is statically known about the bound value.
func (id *Identifier) Forget() {
	id.IsFunction = false
	id.Arity = UnknownArity
	id.NotCallable = false
}

// Address is a resolved (env-distance, slot) pair.
type Address struct {
	Depth int
	Slot  int
}

// Scope is one node of the scope tree.
type Scope struct {
	ID       int
	Label    string
	Parent   *Scope
	Children []*Scope
	Arity    int
	// Inline scopes run inside the enclosing frame (branch arms), so they
	// own no slots and add no distance.
	Inline bool
	// Immediate scopes own a frame but run as soon as they are built
	// (let-in blocks), unlike function bodies.
	Immediate bool

	bindings map[string]*Identifier
	order    []*Identifier
}

func newScope(id int, label string, parent *Scope, inline bool) *Scope {
	return &Scope{
		ID:       id,
		Label:    label,
		Parent:   parent,
		Inline:   inline,
		bindings: make(map[string]*Identifier),
	}
}

// Bindings returns the scope's identifiers in declaration order.
func (s *Scope) Bindings() []*Identifier {
	return s.order
}

func (s *Scope) Lookup(name string) (*Identifier, bool) {
	id, ok := s.bindings[name]
	return id, ok
}

// frameOwner is the nearest scope that owns a runtime frame.
func (s *Scope) frameOwner() *Scope {
	for s.Inline && s.Parent != nil {
		s = s.Parent
	}
	return s
}

// Table is the scope tree for one compilation session.
type Table struct {
	root    *Scope
	current *Scope
	nextID  int
	file    string
	diags   *errors.Diagnostics
}

// NewTable creates a table whose root scope has id 0.
func NewTable(file string, diags *errors.Diagnostics) *Table {
	root := newScope(0, "global", nil, false)
	return &Table{root: root, current: root, nextID: 1, file: file, diags: diags}
}

// SetDiagnostics redirects future diagnostics, used when a session
// compiles several programs.
func (t *Table) SetDiagnostics(d *errors.Diagnostics) {
	t.diags = d
}

func (t *Table) Root() *Scope    { return t.root }
func (t *Table) Current() *Scope { return t.current }

// EnterScope pushes a frame-owning child scope and makes it current.
func (t *Table) EnterScope(label string) *Scope {
	return t.enter(label, false)
}

// EnterInlineScope pushes a scope that shares the enclosing frame.
func (t *Table) EnterInlineScope(label string) *Scope {
	return t.enter(label, true)
}

// EnterImmediateScope pushes a frame-owning scope whose body runs right
// away rather than when called later.
func (t *Table) EnterImmediateScope(label string) *Scope {
	s := t.enter(label, false)
	s.Immediate = true
	return s
}

func (t *Table) enter(label string, inline bool) *Scope {
	s := newScope(t.nextID, label, t.current, inline)
	t.nextID++
	t.current.Children = append(t.current.Children, s)
	t.current = s
	return s
}

// ExitScope returns to the parent scope. Exiting the root is an emitter
// bug and panics.
func (t *Table) ExitScope() {
	if t.current.Parent == nil {
		panic("scope: exit from global scope")
	}
	t.current = t.current.Parent
}

// SetArity records the parameter count of the current scope.
func (t *Table) SetArity(n int) {
	t.current.Arity = n
}

// Declare binds name in the current frame-owning scope. A name may be
// declared once per scope; shadowing an outer scope is allowed.
func (t *Table) Declare(name string, kind Kind, line int) (*Identifier, Address, bool) {
	owner := t.current.frameOwner()
	if prev, exists := owner.bindings[name]; exists {
		t.diags.Addf(errors.CompileError, t.file, line,
			"duplicate identifier '%s' (already declared as %s on line %d)", name, prev.Kind, prev.Line)
		return nil, Address{}, false
	}
	id := &Identifier{
		Name:  name,
		Kind:  kind,
		Slot:  len(owner.order),
		Line:  line,
		Arity: UnknownArity,
	}
	owner.bindings[name] = id
	owner.order = append(owner.order, id)
	return id, Address{Depth: 0, Slot: id.Slot}, true
}

// find walks outward from the current scope. A binding whose
// initializer is still compiling is only visible from inside a function
// body, which runs after the store; any other read resolves past it.
func (t *Table) find(name string) (*Identifier, Address, bool) {
	depth := 0
	deferred := false
	for s := t.current; s != nil; s = s.Parent {
		if id, ok := s.bindings[name]; ok && (!id.Initializing || deferred) {
			return id, Address{Depth: depth, Slot: id.Slot}, true
		}
		if !s.Inline {
			depth++
			if !s.Immediate {
				deferred = true
			}
		}
	}
	return nil, Address{}, false
}

// Resolve walks outward from the current scope and returns the address
// of the nearest binding of name.
func (t *Table) Resolve(name string, line int) (Address, *Identifier, bool) {
	id, addr, ok := t.find(name)
	if !ok {
		t.diags.Addf(errors.ReferenceError, t.file, line, "undefined identifier '%s'", name)
		return Address{}, nil, false
	}
	return addr, id, true
}

// Reassign resolves name for a write; const bindings are rejected.
func (t *Table) Reassign(name string, line int) (Address, *Identifier, bool) {
	addr, id, ok := t.Resolve(name, line)
	if !ok {
		return Address{}, nil, false
	}
	if id.Kind == Const {
		t.diags.Addf(errors.CompileError, t.file, line,
			"cannot reassign const '%s' (declared on line %d)", name, id.Line)
		return Address{}, nil, false
	}
	return addr, id, true
}

// Lookup resolves name without recording a diagnostic.
func (t *Table) Lookup(name string) *Identifier {
	id, _, _ := t.find(name)
	return id
}

// Mark captures the root scope so a failed compile can be undone.
type Mark struct {
	bindings int
	children int
	nextID   int
}

func (t *Table) Mark() Mark {
	return Mark{bindings: len(t.root.order), children: len(t.root.Children), nextID: t.nextID}
}

// Rollback removes root bindings and scopes created after m and resets
// the current scope to the root.
func (t *Table) Rollback(m Mark) {
	for _, id := range t.root.order[m.bindings:] {
		delete(t.root.bindings, id.Name)
	}
	t.root.order = t.root.order[:m.bindings]
	t.root.Children = t.root.Children[:m.children]
	t.nextID = m.nextID
	t.current = t.root
}

// Dump writes the scope tree, one binding per line.
func (t *Table) Dump(w io.Writer) {
	dumpScope(w, t.root, 0)
}

func dumpScope(w io.Writer, s *Scope, indent int) {
	pad := strings.Repeat("  ", indent)
	label := s.Label
	if s.Inline {
		label += " (inline)"
	}
	fmt.Fprintf(w, "%sscope %d %s args:%d\n", pad, s.ID, label, s.Arity)
	for _, id := range s.order {
		fmt.Fprintf(w, "%s  %-10s %-8s slot %d line %d\n", pad, id.Name, id.Kind, id.Slot, id.Line)
	}
	for _, c := range s.Children {
		dumpScope(w, c, indent+1)
	}
}
