package dummydb

import (
	"context"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/ordering"
)

// siblingStore orders one kind of record. DB.RunInTx already serializes
// transactions, so LockScope only has to check the parent.
type siblingStore struct {
	db             *DB
	parentNotFound error
	parentExists   func(t *tables, id string) bool
	list           func(t *tables, parentID string) []ordering.Sibling // in display order
	shift          func(t *tables, id string, delta int)

	failShift error
}

var _ ordering.Store = (*siblingStore)(nil) // interface compliance check

func (s *siblingStore) LockScope(_ context.Context, parentID string, _ core.DBExecutor) error {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	if !s.parentExists(s.db.t, parentID) {
		return s.parentNotFound
	}
	return nil
}

func (s *siblingStore) ListSiblings(_ context.Context, parentID string, _ core.DBExecutor) ([]ordering.Sibling, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	return s.list(s.db.t, parentID), nil
}

func (s *siblingStore) ShiftSerialNumbers(ctx context.Context, ids []string, delta int, _ core.DBExecutor) error {
	if s.failShift != nil {
		return s.failShift
	}

	defer s.db.lockWrite(ctx)()

	for _, id := range ids {
		s.shift(s.db.t, id, delta)
	}
	return nil
}
