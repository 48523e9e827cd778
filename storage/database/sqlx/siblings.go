package sqlxrepos

import (
	"context"
	"hash/fnv"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/ordering"
)

// siblingStore orders the rows of `table` sharing the same `parentColumn`.
type siblingStore struct {
	table          string
	parentColumn   string
	parentTable    string
	parentNotFound error
}

var _ ordering.Store = (*siblingStore)(nil) // interface compliance check

// scopeLockKey derives the advisory lock key guarding the siblings of parentID.
func scopeLockKey(table, parentID string) int64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(table))
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.Write([]byte(parentID))
	return int64(hasher.Sum64())
}

func (s *siblingStore) ext(exec core.DBExecutor) (sqlx.ExtContext, error) {
	ext, ok := exec.(sqlx.ExtContext)
	if !ok {
		return nil, errors.Errorf("sqlxrepos: unsupported executor %T", exec)
	}
	return ext, nil
}

// LockScope takes a transaction scoped advisory lock on the sibling scope,
// then key-share locks the parent row so it cannot be deleted before the transaction ends.
func (s *siblingStore) LockScope(ctx context.Context, parentID string, exec core.DBExecutor) error {
	if !isUUID(parentID) {
		return s.parentNotFound
	}
	ext, err := s.ext(exec)
	if err != nil {
		return err
	}

	if _, err = ext.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", scopeLockKey(s.table, parentID)); err != nil {
		return errors.Wrapf(err, "locking %s scope", s.table)
	}
	var found int
	q := "SELECT 1 FROM " + s.parentTable + " WHERE id = $1 FOR KEY SHARE"
	if err = sqlx.GetContext(ctx, ext, &found, q, parentID); err != nil {
		return trapNoRowsErr(err, s.parentNotFound, "locking "+s.parentTable)
	}
	return nil
}

func (s *siblingStore) ListSiblings(ctx context.Context, parentID string, exec core.DBExecutor) ([]ordering.Sibling, error) {
	ext, err := s.ext(exec)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID           string `db:"id"`
		SerialNumber int    `db:"serial_number"`
	}
	q := "SELECT id, serial_number FROM " + s.table + " WHERE " + s.parentColumn + " = $1 ORDER BY serial_number, created_at, id"
	if err = sqlx.SelectContext(ctx, ext, &rows, q, parentID); err != nil {
		return nil, errors.Wrapf(err, "listing %s siblings", s.table)
	}

	siblings := make([]ordering.Sibling, 0, len(rows))
	for _, r := range rows {
		siblings = append(siblings, ordering.Sibling{ID: r.ID, SerialNumber: r.SerialNumber})
	}
	return siblings, nil
}

// ShiftSerialNumbers relies on the deferred (parent, serial_number) unique constraint:
// rows may collide until the transaction commits.
func (s *siblingStore) ShiftSerialNumbers(ctx context.Context, ids []string, delta int, exec core.DBExecutor) error {
	if len(ids) == 0 || delta == 0 {
		return nil
	}
	ext, err := s.ext(exec)
	if err != nil {
		return err
	}

	q := "UPDATE " + s.table + " SET serial_number = serial_number + $1 WHERE id = ANY($2)"
	if _, err = ext.ExecContext(ctx, q, delta, pq.Array(ids)); err != nil {
		return errors.Wrapf(err, "shifting %s serial numbers", s.table)
	}
	return nil
}
