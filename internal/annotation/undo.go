package annotation

import (
	"fmt"
	"log"
)

// Undo reverts the most recent recorded action. It returns false when the
// log is empty. After undoing, display indices are exactly as they were
// before the action was applied.
func (s *Store) Undo() (bool, error) {
	action, ok := s.history.Pop()
	if !ok {
		return false, nil
	}
	if err := s.invert(action); err != nil {
		s.compact()
		s.revision++
		return true, fmt.Errorf("undo %s: %w", action.Kind(), err)
	}
	s.sweepDangling()
	s.compact()
	s.revision++
	return true, nil
}

func (s *Store) invert(action Action) error {
	switch a := action.(type) {
	case AddAtomAction:
		row, err := s.atomByID(a.AtomID)
		if err != nil {
			return err
		}
		row.Deleted = true
		s.renumberAtoms()

	case DeleteAtomAction:
		row, err := s.atomByID(a.AtomID)
		if err != nil {
			return err
		}
		row.Deleted = false
		s.renumberAtoms()
		if a.HasBonds() {
			if err := s.restoreBonds(a.BondIDs); err != nil {
				return err
			}
			s.renumberBonds()
		}

	case AddBondAction:
		row, err := s.bondByID(a.BondID)
		if err != nil {
			return err
		}
		row.deleted = true
		s.renumberBonds()

	case DeleteBondAction:
		if err := s.restoreBonds([]int{a.BondID}); err != nil {
			return err
		}
		s.renumberBonds()

	case MoveAtomAction:
		row, err := s.atomByID(a.AtomID)
		if err != nil {
			return err
		}
		row.Pos = a.From

	case ClearAction:
		for _, id := range a.AtomIDs {
			row, err := s.atomByID(id)
			if err != nil {
				return err
			}
			row.Deleted = false
		}
		s.renumberAtoms()
		if err := s.restoreBonds(a.BondIDs); err != nil {
			return err
		}
		s.renumberBonds()

	default:
		return fmt.Errorf("unhandled action %T", action)
	}
	return nil
}

func (s *Store) restoreBonds(ids []int) error {
	for _, id := range ids {
		row, err := s.bondByID(id)
		if err != nil {
			return err
		}
		row.deleted = false
	}
	return nil
}

func (s *Store) atomByID(id int) (*atomRow, error) {
	row, ok := s.atomsByID[id]
	if !ok {
		return nil, s.stale("atom id %d", id)
	}
	return row, nil
}

func (s *Store) bondByID(id int) (*bondRow, error) {
	row, ok := s.bondsByID[id]
	if !ok {
		return nil, s.stale("bond id %d", id)
	}
	return row, nil
}

// sweepDangling soft-deletes live bonds whose endpoints are not live. LIFO
// undo never produces one; finding any indicates a bookkeeping bug.
func (s *Store) sweepDangling() {
	swept := 0
	for _, b := range s.liveBonds {
		start, end := s.atomsByID[b.startID], s.atomsByID[b.endID]
		if start == nil || end == nil || start.Deleted || end.Deleted {
			b.deleted = true
			swept++
		}
	}
	if swept > 0 {
		log.Printf("annotation: removed %d bonds with deleted endpoints", swept)
		s.renumberBonds()
	}
}
