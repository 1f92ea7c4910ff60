package vm

import "sort"

// Frame is an activation record: numbered slots plus the lexically
// enclosing frame. The parent never changes after creation.
type Frame struct {
	slots  map[int]Value
	parent *Frame
}

func NewFrame(parent *Frame) *Frame {
	return &Frame{slots: make(map[int]Value), parent: parent}
}

func (f *Frame) Parent() *Frame {
	return f.parent
}

// Ancestor follows depth parent links; 0 is f itself.
func (f *Frame) Ancestor(depth int) (*Frame, bool) {
	cur := f
	for i := 0; i < depth; i++ {
		if cur.parent == nil {
			return nil, false
		}
		cur = cur.parent
	}
	return cur, true
}

func (f *Frame) Get(slot int) (Value, bool) {
	v, ok := f.slots[slot]
	return v, ok
}

func (f *Frame) Set(slot int, v Value) {
	f.slots[slot] = v
}

// Slots returns the bound slot numbers in order.
func (f *Frame) Slots() []int {
	out := make([]int, 0, len(f.slots))
	for k := range f.slots {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Depth counts the frames above f.
func (f *Frame) Depth() int {
	n := 0
	for p := f.parent; p != nil; p = p.parent {
		n++
	}
	return n
}

// Closure pairs a function id with the frame that was current when its
// LDF executed.
type Closure struct {
	Function string
	Env      *Frame
}

// Context is the caller state saved by APP and restored by RET.
type Context struct {
	PC       int
	Frame    *Frame
	Function string
}

type ContextStack struct {
	items []Context
}

func (s *ContextStack) Push(c Context) {
	s.items = append(s.items, c)
}

func (s *ContextStack) Pop() (Context, bool) {
	if len(s.items) == 0 {
		return Context{}, false
	}
	c := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return c, true
}

func (s *ContextStack) Len() int {
	return len(s.items)
}

// Items returns a copy, oldest first.
func (s *ContextStack) Items() []Context {
	return append([]Context(nil), s.items...)
}
