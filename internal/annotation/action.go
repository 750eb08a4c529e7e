package annotation

import "molina/pkg/geometry"

// ActionKind tags the entries of the undo log.
type ActionKind int

const (
	KindAddAtom ActionKind = iota
	KindDeleteAtom
	KindAddBond
	KindDeleteBond
	KindMoveAtom
	KindClear
)

func (k ActionKind) String() string {
	switch k {
	case KindAddAtom:
		return "add_atom"
	case KindDeleteAtom:
		return "delete_atom_and_bonds"
	case KindAddBond:
		return "add_bond"
	case KindDeleteBond:
		return "delete_bond"
	case KindMoveAtom:
		return "move_atom"
	case KindClear:
		return "clear_all"
	default:
		return "unknown"
	}
}

// Action is one reversible edit. The set of implementations is closed; each
// carries only what its inverse needs, addressed by stable id.
type Action interface {
	Kind() ActionKind
	refs() (atomIDs, bondIDs []int)
}

// AddAtomAction records a newly created atom.
type AddAtomAction struct {
	AtomID int
}

// DeleteAtomAction records an atom deletion together with every bond that
// was removed because it touched the atom.
type DeleteAtomAction struct {
	AtomID  int
	BondIDs []int
}

// AddBondAction records a newly created bond.
type AddBondAction struct {
	BondID int
}

// DeleteBondAction records a single bond deletion.
type DeleteBondAction struct {
	BondID int
}

// MoveAtomAction records an atom's position before it was moved.
type MoveAtomAction struct {
	AtomID int
	From   geometry.Point2D
}

// ClearAction records every entity that was live before a clear.
type ClearAction struct {
	AtomIDs []int
	BondIDs []int
}

func (AddAtomAction) Kind() ActionKind    { return KindAddAtom }
func (DeleteAtomAction) Kind() ActionKind { return KindDeleteAtom }
func (AddBondAction) Kind() ActionKind    { return KindAddBond }
func (DeleteBondAction) Kind() ActionKind { return KindDeleteBond }
func (MoveAtomAction) Kind() ActionKind   { return KindMoveAtom }
func (ClearAction) Kind() ActionKind      { return KindClear }

// HasBonds reports whether undoing the deletion must also restore bonds.
func (a DeleteAtomAction) HasBonds() bool {
	return len(a.BondIDs) > 0
}

func (a AddAtomAction) refs() ([]int, []int)    { return []int{a.AtomID}, nil }
func (a DeleteAtomAction) refs() ([]int, []int) { return []int{a.AtomID}, a.BondIDs }
func (a AddBondAction) refs() ([]int, []int)    { return nil, []int{a.BondID} }
func (a DeleteBondAction) refs() ([]int, []int) { return nil, []int{a.BondID} }
func (a MoveAtomAction) refs() ([]int, []int)   { return []int{a.AtomID}, nil }
func (a ClearAction) refs() ([]int, []int)      { return a.AtomIDs, a.BondIDs }
