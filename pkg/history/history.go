// Package history keeps a bounded, linear undo/redo stack of document
// snapshots.
package history

// DefaultDepth is the number of entries kept when no depth is given.
const DefaultDepth = 50

// Snapshot is a state that can deep-copy itself.
type Snapshot[S any] interface {
	Clone() S
}

// Stack is a linear history with a cursor. Committing after an undo drops
// every entry past the cursor; there is no branching.
type Stack[S Snapshot[S]] struct {
	entries []S
	index   int
	depth   int
}

// New returns an empty history holding at most depth entries.
func New[S Snapshot[S]](depth int) *Stack[S] {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Stack[S]{index: -1, depth: depth}
}

// Reset drops all entries and starts over with s as the only one.
func (h *Stack[S]) Reset(s S) {
	h.entries = append(h.entries[:0], s.Clone())
	h.index = 0
}

// Commit stores a copy of s after the cursor and moves the cursor onto it.
// The oldest entry is evicted once the depth is exceeded.
func (h *Stack[S]) Commit(s S) {
	h.entries = append(h.entries[:h.index+1], s.Clone())
	if over := len(h.entries) - h.depth; over > 0 {
		clear(h.entries[:over])
		h.entries = h.entries[over:]
	}
	h.index = len(h.entries) - 1
}

// Undo steps back and returns a copy of the entry now under the cursor.
// ok is false at the first entry.
func (h *Stack[S]) Undo() (s S, ok bool) {
	if h.index <= 0 {
		return s, false
	}
	h.index--
	return h.entries[h.index].Clone(), true
}

// Redo steps forward. ok is false at the last entry.
func (h *Stack[S]) Redo() (s S, ok bool) {
	if h.index >= len(h.entries)-1 {
		return s, false
	}
	h.index++
	return h.entries[h.index].Clone(), true
}

// Current returns a copy of the entry under the cursor.
func (h *Stack[S]) Current() (s S, ok bool) {
	if h.index < 0 {
		return s, false
	}
	return h.entries[h.index].Clone(), true
}

// Len returns the number of stored entries.
func (h *Stack[S]) Len() int { return len(h.entries) }

// Index returns the cursor position, -1 when empty.
func (h *Stack[S]) Index() int { return h.index }

// CanUndo reports whether Undo would move.
func (h *Stack[S]) CanUndo() bool { return h.index > 0 }

// CanRedo reports whether Redo would move.
func (h *Stack[S]) CanRedo() bool { return h.index < len(h.entries)-1 }
