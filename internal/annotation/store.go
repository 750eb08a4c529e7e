package annotation

import (
	"fmt"

	"github.com/samber/lo"

	"molina/internal/history"
	"molina/internal/hittest"
	"molina/pkg/geometry"
)

// Options configures a Store.
type Options struct {
	HistoryLimit int  // Undo depth; non-positive selects history.DefaultCapacity
	Strict       bool // Panic on stale references instead of returning errors
}

// DefaultOptions returns the options used by the editor.
func DefaultOptions() Options {
	return Options{HistoryLimit: history.DefaultCapacity}
}

type atomRow struct {
	Atom
}

// bondRow references its endpoints by stable atom id. Display indices are
// derived from the atom rows whenever a view is taken.
type bondRow struct {
	id         int
	index      int
	typ        BondType
	startID    int
	endID      int
	confidence Confidence
	deleted    bool
}

// Store is the atom and bond table for one image. Rows are soft-deleted so
// the undo log can resurrect them by id; the live view is renumbered eagerly
// after every structural change.
//
// A Store is not safe for concurrent use.
type Store struct {
	opts Options

	// All rows in insertion order, including soft-deleted ones.
	atoms []*atomRow
	bonds []*bondRow

	atomsByID map[int]*atomRow
	bondsByID map[int]*bondRow

	// Live rows in display order.
	liveAtoms []*atomRow
	liveBonds []*bondRow

	nextAtomID int
	nextBondID int

	history  *history.Log[Action]
	revision uint64
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	return &Store{
		opts:      opts,
		atomsByID: make(map[int]*atomRow),
		bondsByID: make(map[int]*bondRow),
		history:   history.New[Action](opts.HistoryLimit),
	}
}

// Revision increases on every mutation, including undo and bulk load.
func (s *Store) Revision() uint64 {
	return s.revision
}

// Len returns the number of live atoms.
func (s *Store) Len() int {
	return len(s.liveAtoms)
}

// BondLen returns the number of live bonds.
func (s *Store) BondLen() int {
	return len(s.liveBonds)
}

// CanUndo reports whether Undo would revert anything.
func (s *Store) CanUndo() bool {
	return s.history.Len() > 0
}

// HistoryLen returns the number of undoable actions.
func (s *Store) HistoryLen() int {
	return s.history.Len()
}

// AddAtom appends a live atom at the end of the display order and returns
// its id.
func (s *Store) AddAtom(symbol string, x, y float64) int {
	row := &atomRow{Atom{
		ID:         s.nextAtomID,
		Index:      len(s.liveAtoms),
		Symbol:     symbol,
		Pos:        geometry.NewPoint2D(x, y),
		Confidence: NotComputed(),
	}}
	s.nextAtomID++
	s.atoms = append(s.atoms, row)
	s.atomsByID[row.ID] = row
	s.liveAtoms = append(s.liveAtoms, row)
	s.record(AddAtomAction{AtomID: row.ID})
	return row.ID
}

// AddBond creates a bond between two live atoms given by display index.
func (s *Store) AddBond(t BondType, start, end int) (int, error) {
	a, err := s.liveAtom(start)
	if err != nil {
		return -1, err
	}
	b, err := s.liveAtom(end)
	if err != nil {
		return -1, err
	}
	if start == end {
		return -1, ErrSelfBond
	}
	if !t.Valid() {
		return -1, fmt.Errorf("add bond: invalid bond type %d", int(t))
	}
	row := &bondRow{
		id:         s.nextBondID,
		index:      len(s.liveBonds),
		typ:        t,
		startID:    a.ID,
		endID:      b.ID,
		confidence: NotComputed(),
	}
	s.nextBondID++
	s.bonds = append(s.bonds, row)
	s.bondsByID[row.id] = row
	s.liveBonds = append(s.liveBonds, row)
	s.record(AddBondAction{BondID: row.id})
	return row.id, nil
}

// ConnectLine creates a bond for a line drawn by the user. The line's ends
// are resolved to atoms within threshold; when that does not yield exactly
// two distinct atoms the line is declined and ok is false.
func (s *Store) ConnectLine(t BondType, line geometry.Segment, threshold float64) (id int, ok bool, err error) {
	start, end, found := hittest.FindBondEndpoints(s.positions(), line, threshold)
	if !found {
		return -1, false, nil
	}
	id, err = s.AddBond(t, start, end)
	if err != nil {
		return -1, false, err
	}
	return id, true, nil
}

// DeleteAtom soft-deletes an atom and every bond touching it as one undoable
// step, then renumbers atoms and bonds.
func (s *Store) DeleteAtom(index int) error {
	row, err := s.liveAtom(index)
	if err != nil {
		return err
	}
	row.Deleted = true

	var removed []int
	for _, b := range s.liveBonds {
		if b.startID == row.ID || b.endID == row.ID {
			b.deleted = true
			removed = append(removed, b.id)
		}
	}

	s.renumberAtoms()
	if len(removed) > 0 {
		s.renumberBonds()
	}
	s.record(DeleteAtomAction{AtomID: row.ID, BondIDs: removed})
	return nil
}

// DeleteBond soft-deletes a bond and renumbers the remaining bonds.
func (s *Store) DeleteBond(index int) error {
	row, err := s.liveBond(index)
	if err != nil {
		return err
	}
	row.deleted = true
	s.renumberBonds()
	s.record(DeleteBondAction{BondID: row.id})
	return nil
}

// UpdateAtomPosition moves an atom. Bonds follow automatically since they
// resolve positions through the atom table. Moving to the current position
// records nothing.
func (s *Store) UpdateAtomPosition(index int, x, y float64) error {
	row, err := s.liveAtom(index)
	if err != nil {
		return err
	}
	to := geometry.NewPoint2D(x, y)
	if row.Pos == to {
		return nil
	}
	from := row.Pos
	row.Pos = to
	s.record(MoveAtomAction{AtomID: row.ID, From: from})
	return nil
}

// ClearAll deletes every live atom and bond in one undoable step. Clearing
// an empty store is a no-op and records nothing.
func (s *Store) ClearAll() {
	if len(s.liveAtoms) == 0 && len(s.liveBonds) == 0 {
		return
	}
	action := ClearAction{
		AtomIDs: lo.Map(s.liveAtoms, func(r *atomRow, _ int) int { return r.ID }),
		BondIDs: lo.Map(s.liveBonds, func(r *bondRow, _ int) int { return r.id }),
	}
	for _, r := range s.liveAtoms {
		r.Deleted = true
	}
	for _, r := range s.liveBonds {
		r.deleted = true
	}
	s.renumberAtoms()
	s.renumberBonds()
	s.record(action)
}

// LoadBulk replaces the store contents with atoms and bonds whose Start and
// End index into atoms. Ids are reassigned from zero and the undo log is
// cleared; the load itself cannot be undone. Nothing changes if any bond is
// invalid.
func (s *Store) LoadBulk(atoms []Atom, bonds []Bond) error {
	for i, b := range bonds {
		if b.Start < 0 || b.Start >= len(atoms) || b.End < 0 || b.End >= len(atoms) {
			return fmt.Errorf("%w %d: endpoints [%d, %d] out of range for %d atoms",
				ErrInvalidBond, i, b.Start, b.End, len(atoms))
		}
		if b.Start == b.End {
			return fmt.Errorf("%w %d: both endpoints are atom %d", ErrInvalidBond, i, b.Start)
		}
		if !b.Type.Valid() {
			return fmt.Errorf("%w %d: unknown bond type", ErrInvalidBond, i)
		}
	}

	s.atoms = make([]*atomRow, 0, len(atoms))
	s.bonds = make([]*bondRow, 0, len(bonds))
	s.atomsByID = make(map[int]*atomRow, len(atoms))
	s.bondsByID = make(map[int]*bondRow, len(bonds))
	for i, a := range atoms {
		row := &atomRow{Atom{
			ID:         i,
			Index:      i,
			Symbol:     a.Symbol,
			Pos:        a.Pos,
			Confidence: a.Confidence,
		}}
		s.atoms = append(s.atoms, row)
		s.atomsByID[i] = row
	}
	for i, b := range bonds {
		row := &bondRow{
			id:         i,
			index:      i,
			typ:        b.Type,
			startID:    b.Start,
			endID:      b.End,
			confidence: b.Confidence,
		}
		s.bonds = append(s.bonds, row)
		s.bondsByID[i] = row
	}
	s.nextAtomID = len(atoms)
	s.nextBondID = len(bonds)
	s.history.Reset()
	s.renumberAtoms()
	s.renumberBonds()
	s.revision++
	return nil
}

// Atoms returns copies of the live atoms in display order.
func (s *Store) Atoms() []Atom {
	return lo.Map(s.liveAtoms, func(r *atomRow, _ int) Atom { return r.Atom })
}

// Bonds returns copies of the live bonds in display order with endpoints
// expressed as current atom display indices.
func (s *Store) Bonds() []Bond {
	return lo.Map(s.liveBonds, func(r *bondRow, _ int) Bond { return s.bondView(r) })
}

// ExportLive returns the live atoms and bonds in display order.
func (s *Store) ExportLive() ([]Atom, []Bond) {
	return s.Atoms(), s.Bonds()
}

// Atom returns the live atom at a display index.
func (s *Store) Atom(index int) (Atom, error) {
	row, err := s.liveAtom(index)
	if err != nil {
		return Atom{}, err
	}
	return row.Atom, nil
}

// Bond returns the live bond at a display index.
func (s *Store) Bond(index int) (Bond, error) {
	row, err := s.liveBond(index)
	if err != nil {
		return Bond{}, err
	}
	return s.bondView(row), nil
}

// BondSegment returns the line a live bond is drawn along.
func (s *Store) BondSegment(index int) (geometry.Segment, error) {
	row, err := s.liveBond(index)
	if err != nil {
		return geometry.Segment{}, err
	}
	return s.segment(row), nil
}

// Segments returns the lines of all live bonds in display order.
func (s *Store) Segments() []geometry.Segment {
	return lo.Map(s.liveBonds, func(r *bondRow, _ int) geometry.Segment { return s.segment(r) })
}

// AtomNear returns the display index of the first live atom within
// threshold (Manhattan) of p.
func (s *Store) AtomNear(p geometry.Point2D, threshold float64) (int, bool) {
	return hittest.FindNearbyAtom(s.positions(), p, threshold)
}

// Hit describes what a DeleteNear call removed.
type Hit int

const (
	HitNone Hit = iota
	HitAtom
	HitBond
)

// DeleteNear removes the atom near p, or failing that the bond whose central
// part passes near p. Atoms take priority.
func (s *Store) DeleteNear(p geometry.Point2D, atomThreshold, bondTolerance float64) (Hit, error) {
	if i, ok := s.AtomNear(p, atomThreshold); ok {
		return HitAtom, s.DeleteAtom(i)
	}
	if i, ok := hittest.FindBondAt(s.Segments(), p, bondTolerance); ok {
		return HitBond, s.DeleteBond(i)
	}
	return HitNone, nil
}

func (s *Store) record(a Action) {
	// Eviction of the oldest entry is expected and not reported.
	s.history.Push(a)
	s.compact()
	s.revision++
}

func (s *Store) liveAtom(index int) (*atomRow, error) {
	if index < 0 || index >= len(s.liveAtoms) {
		return nil, s.stale("atom index %d (live atoms: %d)", index, len(s.liveAtoms))
	}
	return s.liveAtoms[index], nil
}

func (s *Store) liveBond(index int) (*bondRow, error) {
	if index < 0 || index >= len(s.liveBonds) {
		return nil, s.stale("bond index %d (live bonds: %d)", index, len(s.liveBonds))
	}
	return s.liveBonds[index], nil
}

func (s *Store) positions() []geometry.Point2D {
	return lo.Map(s.liveAtoms, func(r *atomRow, _ int) geometry.Point2D { return r.Pos })
}

func (s *Store) bondView(r *bondRow) Bond {
	return Bond{
		ID:         r.id,
		Index:      r.index,
		Type:       r.typ,
		Start:      s.atomsByID[r.startID].Index,
		End:        s.atomsByID[r.endID].Index,
		Confidence: r.confidence,
		Deleted:    r.deleted,
	}
}

func (s *Store) segment(r *bondRow) geometry.Segment {
	return geometry.Segment{P1: s.atomsByID[r.startID].Pos, P2: s.atomsByID[r.endID].Pos}
}

// renumberAtoms rebuilds the live atom view, closing gaps left by deleted
// rows while keeping insertion order.
func (s *Store) renumberAtoms() {
	s.liveAtoms = s.liveAtoms[:0]
	for _, r := range s.atoms {
		if r.Deleted {
			r.Index = -1
			continue
		}
		r.Index = len(s.liveAtoms)
		s.liveAtoms = append(s.liveAtoms, r)
	}
}

func (s *Store) renumberBonds() {
	s.liveBonds = s.liveBonds[:0]
	for _, r := range s.bonds {
		if r.deleted {
			r.index = -1
			continue
		}
		r.index = len(s.liveBonds)
		s.liveBonds = append(s.liveBonds, r)
	}
}

// compact drops soft-deleted rows that no remaining undo entry can restore.
// Endpoint atoms of retained bonds are kept with them.
func (s *Store) compact() {
	keepAtoms := make(map[int]bool)
	keepBonds := make(map[int]bool)
	s.history.Each(func(a Action) {
		atomIDs, bondIDs := a.refs()
		for _, id := range atomIDs {
			keepAtoms[id] = true
		}
		for _, id := range bondIDs {
			keepBonds[id] = true
		}
	})

	bonds := s.bonds[:0]
	for _, r := range s.bonds {
		if r.deleted && !keepBonds[r.id] {
			delete(s.bondsByID, r.id)
			continue
		}
		keepAtoms[r.startID] = true
		keepAtoms[r.endID] = true
		bonds = append(bonds, r)
	}
	s.bonds = bonds

	atoms := s.atoms[:0]
	for _, r := range s.atoms {
		if r.Deleted && !keepAtoms[r.ID] {
			delete(s.atomsByID, r.ID)
			continue
		}
		atoms = append(atoms, r)
	}
	s.atoms = atoms
}

// retained reports how many rows, live or deleted, the store holds.
func (s *Store) retained() (atoms, bonds int) {
	return len(s.atoms), len(s.bonds)
}
