// Package ordering keeps the items of every routine densely ranked.
//
// Each routine's items carry an integer priority and, after every committed
// write, the priorities of a routine are exactly 1..N with no duplicates.
// Inserting, moving, or removing an item therefore shifts a contiguous block
// of its siblings by one. This package decides which blocks move (Plan*) and
// applies those moves through a Shifter, which is implemented by the SQL
// store inside its write transaction and by Board in memory.
//
// The item's own row is never touched here. Callers write it after Reconcile
// (or delete it before CloseGap) in the same transaction.
package ordering

import (
	"context"
	"fmt"
)

// Slot is the persisted position of an item.
type Slot struct {
	RoutineUUID string
	Priority    int
}

// Placement is the desired position of an item. A nil Priority appends the
// item to the end of the routine.
type Placement struct {
	RoutineUUID string
	Priority    *int
}

// At returns a placement at an explicit priority.
func At(routineUUID string, priority int) Placement {
	return Placement{RoutineUUID: routineUUID, Priority: &priority}
}

// End returns a placement that appends to the routine.
func End(routineUUID string) Placement {
	return Placement{RoutineUUID: routineUUID}
}

// Shift adds Delta to the priority of every item in RoutineUUID whose
// priority lies in [Min, Max]. Max == 0 leaves the range open-ended.
// One Shift is one bulk conditional update against the store.
type Shift struct {
	RoutineUUID string
	Min         int
	Max         int
	Delta       int
}

// Contains reports whether priority p falls inside the shifted range.
func (s Shift) Contains(p int) bool {
	return p >= s.Min && (s.Max == 0 || p <= s.Max)
}

func (s Shift) String() string {
	upper := "inf"
	if s.Max != 0 {
		upper = fmt.Sprintf("%d", s.Max)
	}
	return fmt.Sprintf("%s[%d..%s]%+d", s.RoutineUUID, s.Min, upper, s.Delta)
}

// Plan is the outcome of reconciling one write: the shifts to apply, in
// order, and the priority the item itself must be stored with.
type Plan struct {
	Priority int
	Shifts   []Shift
}

// Shifter is the store boundary the reconciler runs against. Implementations
// must execute every call inside the caller's write transaction.
type Shifter interface {
	// MaxPriority returns the highest priority in the routine, or 0 when empty.
	MaxPriority(ctx context.Context, routineUUID string) (int, error)

	// ApplyShift executes s as one bulk update and returns the rows touched.
	ApplyShift(ctx context.Context, s Shift) (int64, error)
}

// PlanCreate places a new item into a routine whose highest priority is last.
//
// Without an explicit priority the item is appended at last+1 and nothing
// moves. With priority P every item at P or later moves back one slot.
// A P past the end is clamped to last+1 so the sequence stays gap-free.
func PlanCreate(target Placement, last int) Plan {
	p, shifts := insertAt(target, last)
	return Plan{Priority: p, Shifts: shifts}
}

// PlanUpdate relocates an item from old to target. maxTarget is the highest
// priority currently in the target routine, counting the item itself when
// the routine does not change.
func PlanUpdate(old Slot, target Placement, maxTarget int) Plan {
	if target.RoutineUUID != old.RoutineUUID {
		// Close the hole in the old routine, then insert as if new.
		shifts := []Shift{{RoutineUUID: old.RoutineUUID, Min: old.Priority + 1, Delta: -1}}
		p, ins := insertAt(target, maxTarget)
		return Plan{Priority: p, Shifts: append(shifts, ins...)}
	}

	// Same routine: the item already holds one of the 1..max slots,
	// so the last reachable slot is max and "append" means max.
	p := maxTarget
	if target.Priority != nil {
		p = clamp(*target.Priority, 1, maxTarget)
	}
	if maxTarget < 1 || p == old.Priority {
		return Plan{Priority: old.Priority}
	}

	if p < old.Priority {
		return Plan{Priority: p, Shifts: []Shift{
			{RoutineUUID: old.RoutineUUID, Min: p, Max: old.Priority - 1, Delta: 1},
		}}
	}
	return Plan{Priority: p, Shifts: []Shift{
		{RoutineUUID: old.RoutineUUID, Min: old.Priority + 1, Max: p, Delta: -1},
	}}
}

// PlanDelete compacts the routine an item was removed from.
func PlanDelete(removed Slot) Plan {
	return Plan{Shifts: []Shift{{RoutineUUID: removed.RoutineUUID, Min: removed.Priority + 1, Delta: -1}}}
}

// Reconcile plans the move of an item into target and applies the shifts.
// old is nil for a new item; otherwise it must be the item's slot as read
// inside the same transaction. The returned Plan.Priority is what the
// caller stores on the item row.
func Reconcile(ctx context.Context, sh Shifter, old *Slot, target Placement) (Plan, error) {
	last, err := sh.MaxPriority(ctx, target.RoutineUUID)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read max priority: %w", err)
	}

	var plan Plan
	if old == nil {
		plan = PlanCreate(target, last)
	} else {
		plan = PlanUpdate(*old, target, last)
	}

	if err := apply(ctx, sh, plan.Shifts); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// CloseGap shifts up every item that sat behind a removed one. Call it after
// the row has been deleted, in the same transaction.
func CloseGap(ctx context.Context, sh Shifter, removed Slot) error {
	return apply(ctx, sh, PlanDelete(removed).Shifts)
}

func apply(ctx context.Context, sh Shifter, shifts []Shift) error {
	for _, s := range shifts {
		if _, err := sh.ApplyShift(ctx, s); err != nil {
			return fmt.Errorf("failed to apply shift %s: %w", s, err)
		}
	}
	return nil
}

func insertAt(target Placement, last int) (int, []Shift) {
	if target.Priority == nil {
		return last + 1, nil
	}
	p := clamp(*target.Priority, 1, last+1)
	return p, []Shift{{RoutineUUID: target.RoutineUUID, Min: p, Delta: 1}}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
