// Package ordering keeps the serial numbers of sibling records dense.
//
// Records sharing a parent (the modules of a course, the topics of a module) are
// numbered 1..N with no gaps and no duplicates. Insert, Move and Delete compute the
// siblings that must be renumbered and apply the shift together with the triggering
// write in a single transaction.
package ordering

import (
	"context"
	"fmt"
	"sort"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

const serialField = "serial_number"

// Sibling is the ordering view of a record within its sibling scope.
type Sibling struct {
	ID           string
	SerialNumber int
}

// Store gives access to the serial numbers of one kind of ordered record.
// Every call runs on the transaction executor it is given.
type Store interface {
	// LockScope blocks any other reindexing of parentID's siblings until the transaction ends.
	LockScope(ctx context.Context, parentID string, exec core.DBExecutor) error
	// ListSiblings returns parentID's siblings by ascending serial number, oldest first on ties.
	ListSiblings(ctx context.Context, parentID string, exec core.DBExecutor) ([]Sibling, error)
	// ShiftSerialNumbers adds delta to the serial number of every listed record.
	ShiftSerialNumbers(ctx context.Context, ids []string, delta int, exec core.DBExecutor) error
}

type (
	// CreateFunc creates the new record at serialNumber.
	CreateFunc func(ctx context.Context, exec core.DBExecutor, serialNumber int) error
	// UpdateFunc saves the record at its (possibly unchanged) serialNumber.
	UpdateFunc func(ctx context.Context, exec core.DBExecutor, serialNumber int) error
	// DeleteFunc deletes the record.
	DeleteFunc func(ctx context.Context, exec core.DBExecutor) error
)

// Reindexer maintains a dense 1..N serial ordering among the siblings of a parent.
type Reindexer struct {
	collection  string
	errNotFound error
	tx          core.Transactor
	store       Store
}

// New returns a Reindexer for the collection errNotFound refers to.
// errNotFound is returned whenever an item is missing from its sibling scope.
func New(errNotFound *core.NotFoundError, tx core.Transactor, store Store) *Reindexer {
	vala.BeginValidation().Validate(
		vala.IsNotNil(errNotFound, "errNotFound"),
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(store, "store"),
	).CheckAndPanic()

	return &Reindexer{
		collection:  errNotFound.Resource,
		errNotFound: errNotFound,
		tx:          tx,
		store:       store,
	}
}

// Insert makes room at position and creates the new record there.
// A zero position appends the record after the last sibling.
// It returns the serial number the record was created at.
func (r *Reindexer) Insert(ctx context.Context, parentID string, position int, create CreateFunc) (int, error) {
	if position < 0 {
		return 0, positionError(1)
	}

	var serial, shifted int
	err := r.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		siblings, err := r.load(ctx, parentID, exec)
		if err != nil {
			return err
		}

		last := len(siblings) + 1
		serial = position
		if serial == 0 {
			serial = last
		} else if serial > last {
			return positionError(last)
		}

		ids := selectIDs(siblings, "", func(sn int) bool { return sn >= serial })
		if err = r.shift(ctx, ids, 1, exec); err != nil {
			return err
		}
		shifted = len(ids)

		return errors.Wrapf(create(ctx, exec, serial), "creating %s", r.collection)
	})
	r.observe(opInsert, shifted, err)
	if err != nil {
		return 0, err
	}
	return serial, nil
}

// Move moves the record itemID to newSerial, shifting the siblings in between by one.
// A zero newSerial keeps the current position.
// It returns the serial number the record was saved at.
func (r *Reindexer) Move(ctx context.Context, parentID, itemID string, newSerial int, update UpdateFunc) (int, error) {
	if newSerial < 0 {
		return 0, positionError(1)
	}

	var serial, shifted int
	err := r.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		siblings, err := r.load(ctx, parentID, exec)
		if err != nil {
			return err
		}
		oldSerial, ok := findSerial(siblings, itemID)
		if !ok {
			return r.errNotFound
		}

		serial = newSerial
		if serial == 0 {
			serial = oldSerial
		} else if serial > len(siblings) {
			return positionError(len(siblings))
		}

		var ids []string
		switch {
		case serial > oldSerial: // moving down: close the gap left behind
			ids = selectIDs(siblings, itemID, func(sn int) bool { return sn > oldSerial && sn <= serial })
			err = r.shift(ctx, ids, -1, exec)
		case serial < oldSerial: // moving up: open a slot at serial
			ids = selectIDs(siblings, itemID, func(sn int) bool { return sn >= serial && sn < oldSerial })
			err = r.shift(ctx, ids, 1, exec)
		}
		if err != nil {
			return err
		}
		shifted = len(ids)

		return errors.Wrapf(update(ctx, exec, serial), "updating %s", r.collection)
	})
	r.observe(opMove, shifted, err)
	if err != nil {
		return 0, err
	}
	return serial, nil
}

// Delete deletes the record itemID and closes the gap it leaves.
func (r *Reindexer) Delete(ctx context.Context, parentID, itemID string, del DeleteFunc) error {
	var shifted int
	err := r.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		siblings, err := r.load(ctx, parentID, exec)
		if err != nil {
			return err
		}
		deleted, ok := findSerial(siblings, itemID)
		if !ok {
			return r.errNotFound
		}

		if err = del(ctx, exec); err != nil {
			return errors.Wrapf(err, "deleting %s", r.collection)
		}

		ids := selectIDs(siblings, itemID, func(sn int) bool { return sn > deleted })
		shifted = len(ids)
		return r.shift(ctx, ids, -1, exec)
	})
	r.observe(opDelete, shifted, err)
	return err
}

// Compact renumbers parentID's siblings 1..N, keeping their relative order.
// It repairs scopes whose numbering has gaps or duplicates and returns the number of renumbered records.
func (r *Reindexer) Compact(ctx context.Context, parentID string) (int, error) {
	var shifted int
	err := r.tx.RunInTx(ctx, func(ctx context.Context, exec core.DBExecutor) error {
		siblings, err := r.load(ctx, parentID, exec)
		if err != nil {
			return err
		}

		// one batch per distinct delta
		batches := make(map[int][]string)
		for i, s := range siblings {
			if delta := (i + 1) - s.SerialNumber; delta != 0 {
				batches[delta] = append(batches[delta], s.ID)
			}
		}
		deltas := make([]int, 0, len(batches))
		for delta := range batches {
			deltas = append(deltas, delta)
		}
		sort.Ints(deltas)

		for _, delta := range deltas {
			if err = r.shift(ctx, batches[delta], delta, exec); err != nil {
				return err
			}
			shifted += len(batches[delta])
		}
		return nil
	})
	r.observe(opCompact, shifted, err)
	if err != nil {
		return 0, err
	}
	return shifted, nil
}

func (r *Reindexer) load(ctx context.Context, parentID string, exec core.DBExecutor) ([]Sibling, error) {
	if err := r.store.LockScope(ctx, parentID, exec); err != nil {
		return nil, errors.Wrapf(err, "locking %s siblings", r.collection)
	}
	siblings, err := r.store.ListSiblings(ctx, parentID, exec)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s siblings", r.collection)
	}
	return siblings, nil
}

func (r *Reindexer) shift(ctx context.Context, ids []string, delta int, exec core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	return errors.Wrapf(r.store.ShiftSerialNumbers(ctx, ids, delta, exec), "shifting %s serial numbers", r.collection)
}

// selectIDs returns the IDs of the siblings, except `exclude`, whose serial number matches.
func selectIDs(siblings []Sibling, exclude string, match func(serial int) bool) []string {
	var ids []string
	for _, s := range siblings {
		if s.ID != exclude && match(s.SerialNumber) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func findSerial(siblings []Sibling, id string) (int, bool) {
	for _, s := range siblings {
		if s.ID == id {
			return s.SerialNumber, true
		}
	}
	return 0, false
}

func positionError(max int) error {
	return core.NewFieldError(serialField, fmt.Sprintf("serial number must be between 1 and %d", max))
}
