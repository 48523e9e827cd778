package dummydb

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/discount"
	"github.com/trezcool/academia/core/job"
	"github.com/trezcool/academia/core/user"
)

type (
	// DB is an in-memory database for tests and local runs.
	// Transactions are serialized; a failed transaction restores the tables as they were when it began.
	// Writes made outside a transaction wait for the running one to end, so a rollback never undoes them.
	DB struct {
		txMu sync.Mutex
		mu   sync.RWMutex
		t    *tables
	}

	tables struct {
		users    map[string]user.User
		courses  map[string]course.Course
		modules  map[string]course.Module
		topics   map[string]course.Topic
		contents map[string]course.Content
		jobs     map[string]job.Job
		tokens   map[string]discount.Token
	}
)

type txKey struct{}

func newTables() *tables {
	return &tables{
		users:    make(map[string]user.User),
		courses:  make(map[string]course.Course),
		modules:  make(map[string]course.Module),
		topics:   make(map[string]course.Topic),
		contents: make(map[string]course.Content),
		jobs:     make(map[string]job.Job),
		tokens:   make(map[string]discount.Token),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		v.Roles = append([]string(nil), v.Roles...)
		c.users[k] = v
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.modules {
		c.modules[k] = v
	}
	for k, v := range t.topics {
		c.topics[k] = v
	}
	for k, v := range t.contents {
		c.contents[k] = v
	}
	for k, v := range t.jobs {
		c.jobs[k] = v
	}
	for k, v := range t.tokens {
		c.tokens[k] = v
	}
	return c
}

func Open() (*DB, error) {
	return &DB{t: newTables()}, nil
}

// Reset empties every table.
func (db *DB) Reset() {
	defer db.lockWrite(context.Background())()
	db.t = newTables()
}

// lockWrite locks the tables for writing and returns the unlock function.
// Outside a transaction, it also holds off transactions until the write is done.
func (db *DB) lockWrite(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		db.mu.Lock()
		return db.mu.Unlock
	}
	db.txMu.Lock()
	db.mu.Lock()
	return func() {
		db.mu.Unlock()
		db.txMu.Unlock()
	}
}

var _ core.Transactor = (*DB)(nil) // interface compliance check

// RunInTx runs fn with a nil executor: dummy repositories ignore it.
// Validation and not-found errors are returned as is; anything else is reported as a core.TxError.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	rollback := func() {
		db.mu.Lock()
		db.t = snapshot
		db.mu.Unlock()
	}

	if err := fn(context.WithValue(ctx, txKey{}, true), nil); err != nil {
		rollback()
		if core.IsClientError(err) {
			return err
		}
		return core.NewTxError("running transaction", err)
	}

	// deferred unique constraints are checked at commit
	if err := db.checkSerialNumbers(); err != nil {
		rollback()
		return core.NewTxError("committing transaction", err)
	}
	return nil
}

func (db *DB) checkSerialNumbers() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	seen := make(map[string]bool)
	for _, m := range db.t.modules {
		key := fmt.Sprintf("module:%s:%d", m.CourseID, m.SerialNumber)
		if seen[key] {
			return errors.Errorf("constraint module_course_serial_key violated (%s)", key)
		}
		seen[key] = true
	}
	for _, t := range db.t.topics {
		key := fmt.Sprintf("topic:%s:%d", t.ModuleID, t.SerialNumber)
		if seen[key] {
			return errors.Errorf("constraint topic_module_serial_key violated (%s)", key)
		}
		seen[key] = true
	}
	return nil
}
