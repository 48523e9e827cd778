package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// repository holds what every sqlx repository needs.
// Service calls may pass the executor of a running transaction (*sqlx.Tx); the pool is used otherwise.
type repository struct {
	db *sqlx.DB
}

func (repo repository) getExec(svcExec []core.DBExecutor) (sqlx.ExtContext, error) {
	if len(svcExec) == 0 || svcExec[0] == nil {
		return repo.db, nil
	}
	if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
		return ext, nil
	}
	return nil, errors.Errorf("sqlxrepos: unsupported executor %T", svcExec[0])
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// isUUID tells whether id can be looked up at all; malformed ids are reported as not found.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func orderBy(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	for _, arg := range args {
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)+1), 1)
		w.args = append(w.args, arg)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func deleteByID(ctx context.Context, ext sqlx.ExtContext, table, id string, notFound error) error {
	if !isUUID(id) {
		return notFound
	}
	res, err := ext.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", table)
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrapf(err, "deleting %s", table)
	} else if n == 0 {
		return notFound
	}
	return nil
}
