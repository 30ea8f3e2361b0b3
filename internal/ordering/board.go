package ordering

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownEntry is returned by Board for keys it does not hold.
var ErrUnknownEntry = errors.New("unknown entry")

// Entry is one item held by a Board.
type Entry struct {
	Key         string
	Label       string
	RoutineUUID string
	Priority    int

	seq int
}

// Board is an in-memory Shifter. The CLI loads routines into a Board to
// preview a move before it is written; tests use it to exercise the
// reconciler without a database.
type Board struct {
	entries map[string]*Entry
	next    int
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{entries: make(map[string]*Entry)}
}

// Add loads an entry at a fixed priority without reconciling its siblings.
func (b *Board) Add(routineUUID, key, label string, priority int) {
	b.next++
	b.entries[key] = &Entry{
		Key:         key,
		Label:       label,
		RoutineUUID: routineUUID,
		Priority:    priority,
		seq:         b.next,
	}
}

// MaxPriority implements Shifter.
func (b *Board) MaxPriority(_ context.Context, routineUUID string) (int, error) {
	last := 0
	for _, e := range b.entries {
		if e.RoutineUUID == routineUUID && e.Priority > last {
			last = e.Priority
		}
	}
	return last, nil
}

// ApplyShift implements Shifter.
func (b *Board) ApplyShift(_ context.Context, s Shift) (int64, error) {
	var n int64
	for _, e := range b.entries {
		if e.RoutineUUID == s.RoutineUUID && s.Contains(e.Priority) {
			e.Priority += s.Delta
			n++
		}
	}
	return n, nil
}

// Create reconciles and inserts a new entry.
func (b *Board) Create(ctx context.Context, key, label string, target Placement) (Entry, error) {
	if _, ok := b.entries[key]; ok {
		return Entry{}, fmt.Errorf("entry %q already exists", key)
	}
	plan, err := Reconcile(ctx, b, nil, target)
	if err != nil {
		return Entry{}, err
	}
	b.Add(target.RoutineUUID, key, label, plan.Priority)
	return *b.entries[key], nil
}

// Update moves an existing entry to target, reconciling both routines.
func (b *Board) Update(ctx context.Context, key string, target Placement) (Entry, error) {
	e, ok := b.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownEntry, key)
	}
	old := Slot{RoutineUUID: e.RoutineUUID, Priority: e.Priority}
	plan, err := Reconcile(ctx, b, &old, target)
	if err != nil {
		return Entry{}, err
	}
	e.RoutineUUID = target.RoutineUUID
	e.Priority = plan.Priority
	return *e, nil
}

// Delete removes an entry and closes the gap it leaves.
func (b *Board) Delete(ctx context.Context, key string) error {
	e, ok := b.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, key)
	}
	delete(b.entries, key)
	return CloseGap(ctx, b, Slot{RoutineUUID: e.RoutineUUID, Priority: e.Priority})
}

// Find returns the entry stored under key.
func (b *Board) Find(key string) (Entry, bool) {
	e, ok := b.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Items returns the entries of a routine ordered by priority. Ties, which
// only exist on a corrupted board, fall back to insertion order.
func (b *Board) Items(routineUUID string) []Entry {
	var out []Entry
	for _, e := range b.entries {
		if e.RoutineUUID == routineUUID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Keys returns the keys of a routine in priority order.
func (b *Board) Keys(routineUUID string) []string {
	items := b.Items(routineUUID)
	keys := make([]string, len(items))
	for i, e := range items {
		keys[i] = e.Key
	}
	return keys
}

// Lines renders a routine as "priority. label" lines, one per entry.
func (b *Board) Lines(routineUUID string) []string {
	items := b.Items(routineUUID)
	lines := make([]string, len(items))
	for i, e := range items {
		lines[i] = fmt.Sprintf("%d. %s\n", e.Priority, e.Label)
	}
	return lines
}

// Dense returns an error unless the routine's priorities are exactly 1..N.
func (b *Board) Dense(routineUUID string) error {
	return CheckDense(priorities(b.Items(routineUUID)))
}

// CheckDense returns an error unless sorted is exactly 1..len(sorted).
func CheckDense(sorted []int) error {
	for i, p := range sorted {
		if p != i+1 {
			return fmt.Errorf("priority %d at position %d, want %d", p, i+1, i+1)
		}
	}
	return nil
}

func priorities(items []Entry) []int {
	out := make([]int, len(items))
	for i, e := range items {
		out[i] = e.Priority
	}
	return out
}
