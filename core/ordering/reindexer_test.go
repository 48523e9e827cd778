package ordering

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

var (
	errItemNotFound = core.NewNotFoundError("item")
	errShiftFailed  = errors.New("shift failed")
)

// memStore keeps items of a single table by ID, rolled back wholesale when a transaction fails.
type memStore struct {
	mu        sync.Mutex
	parents   map[string]string // {id: parentID}
	serials   map[string]int    // {id: serialNumber}
	nextID    int
	failShift bool
	locked    []string
}

func newMemStore() *memStore {
	return &memStore{parents: make(map[string]string), serials: make(map[string]int)}
}

func (s *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context, exec core.DBExecutor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parents := make(map[string]string, len(s.parents))
	for k, v := range s.parents {
		parents[k] = v
	}
	serials := make(map[string]int, len(s.serials))
	for k, v := range s.serials {
		serials[k] = v
	}

	if err := fn(ctx, nil); err != nil {
		s.parents, s.serials = parents, serials
		if core.IsClientError(err) {
			return err
		}
		return core.NewTxError("test", err)
	}
	return nil
}

func (s *memStore) LockScope(_ context.Context, parentID string, _ core.DBExecutor) error {
	s.locked = append(s.locked, parentID)
	return nil
}

func (s *memStore) ListSiblings(_ context.Context, parentID string, _ core.DBExecutor) ([]Sibling, error) {
	var siblings []Sibling
	for id, pid := range s.parents {
		if pid == parentID {
			siblings = append(siblings, Sibling{ID: id, SerialNumber: s.serials[id]})
		}
	}
	sort.Slice(siblings, func(i, j int) bool { return siblings[i].SerialNumber < siblings[j].SerialNumber })
	return siblings, nil
}

func (s *memStore) ShiftSerialNumbers(_ context.Context, ids []string, delta int, _ core.DBExecutor) error {
	if s.failShift {
		return errShiftFailed
	}
	for _, id := range ids {
		s.serials[id] += delta
	}
	return nil
}

// create returns a CreateFunc adding a new item under parentID; the item's ID is written to id.
func (s *memStore) create(parentID string, id *string) CreateFunc {
	return func(_ context.Context, _ core.DBExecutor, serial int) error {
		s.nextID++
		*id = fmt.Sprintf("i%d", s.nextID)
		s.parents[*id] = parentID
		s.serials[*id] = serial
		return nil
	}
}

func (s *memStore) update(id string) UpdateFunc {
	return func(_ context.Context, _ core.DBExecutor, serial int) error {
		s.serials[id] = serial
		return nil
	}
}

func (s *memStore) delete(id string) DeleteFunc {
	return func(_ context.Context, _ core.DBExecutor) error {
		delete(s.parents, id)
		delete(s.serials, id)
		return nil
	}
}

// order returns the item IDs of parentID by serial number, failing if the numbering is not 1..N.
func (s *memStore) order(t *testing.T, parentID string) []string {
	t.Helper()
	siblings, _ := s.ListSiblings(context.Background(), parentID, nil)
	ids := make([]string, len(siblings))
	for i, sib := range siblings {
		require.Equal(t, i+1, sib.SerialNumber, "serial numbers of %q are not contiguous: %v", parentID, siblings)
		ids[i] = sib.ID
	}
	return ids
}

// seed appends n items under parentID and returns their IDs in order.
func seed(t *testing.T, r *Reindexer, s *memStore, parentID string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		_, err := r.Insert(context.Background(), parentID, 0, s.create(parentID, &ids[i]))
		require.NoError(t, err)
	}
	return ids
}

func newTestReindexer() (*Reindexer, *memStore) {
	s := newMemStore()
	return New(errItemNotFound, s, s), s
}

func TestNew(t *testing.T) {
	s := newMemStore()
	assert.Panics(t, func() { New(nil, s, s) })
	assert.Panics(t, func() { New(errItemNotFound, nil, s) })
	assert.Panics(t, func() { New(errItemNotFound, s, nil) })
	assert.NotPanics(t, func() { New(errItemNotFound, s, s) })
}

func TestReindexer_Insert(t *testing.T) {
	ctx := context.Background()
	r, s := newTestReindexer()
	ids := seed(t, r, s, "c1", 3) // [a b c]
	a, b, c := ids[0], ids[1], ids[2]
	other := seed(t, r, s, "c2", 2)

	var d string
	serial, err := r.Insert(ctx, "c1", 2, s.create("c1", &d))
	require.NoError(t, err)
	assert.Equal(t, 2, serial)
	assert.Equal(t, []string{a, d, b, c}, s.order(t, "c1"))
	assert.Equal(t, other, s.order(t, "c2"), "other scopes must be left untouched")

	var e string
	serial, err = r.Insert(ctx, "c1", 1, s.create("c1", &e))
	require.NoError(t, err)
	assert.Equal(t, 1, serial)
	assert.Equal(t, []string{e, a, d, b, c}, s.order(t, "c1"))

	var f string
	serial, err = r.Insert(ctx, "c1", 6, s.create("c1", &f)) // N+1
	require.NoError(t, err)
	assert.Equal(t, 6, serial)
	assert.Equal(t, []string{e, a, d, b, c, f}, s.order(t, "c1"))

	var g string
	serial, err = r.Insert(ctx, "empty", 0, s.create("empty", &g))
	require.NoError(t, err)
	assert.Equal(t, 1, serial)

	assert.Contains(t, s.locked, "c1")
}

func TestReindexer_Insert_invalidPosition(t *testing.T) {
	ctx := context.Background()
	r, s := newTestReindexer()
	ids := seed(t, r, s, "c1", 3)

	for _, pos := range []int{-1, 5, 42} {
		t.Run(fmt.Sprint(pos), func(t *testing.T) {
			var id string
			_, err := r.Insert(ctx, "c1", pos, s.create("c1", &id))
			require.Error(t, err)
			assert.True(t, core.IsValidationError(err))
			verr := errors.Cause(err).(*core.ValidationError)
			assert.Equal(t, "serial_number", verr.Fields[0].Field)
			assert.Empty(t, id)
			assert.Equal(t, ids, s.order(t, "c1"))
		})
	}
}

func TestReindexer_Move(t *testing.T) {
	ctx := context.Background()

	t.Run("down", func(t *testing.T) {
		r, s := newTestReindexer()
		ids := seed(t, r, s, "c1", 4) // [a b c d]
		a, b, c, d := ids[0], ids[1], ids[2], ids[3]

		serial, err := r.Move(ctx, "c1", b, 4, s.update(b))
		require.NoError(t, err)
		assert.Equal(t, 4, serial)
		assert.Equal(t, []string{a, c, d, b}, s.order(t, "c1"))
	})

	t.Run("up", func(t *testing.T) {
		r, s := newTestReindexer()
		ids := seed(t, r, s, "c1", 4)
		a, b, c, d := ids[0], ids[1], ids[2], ids[3]

		serial, err := r.Move(ctx, "c1", d, 1, s.update(d))
		require.NoError(t, err)
		assert.Equal(t, 1, serial)
		assert.Equal(t, []string{d, a, b, c}, s.order(t, "c1"))
	})

	t.Run("same position", func(t *testing.T) {
		r, s := newTestReindexer()
		ids := seed(t, r, s, "c1", 3)

		for _, pos := range []int{2, 0} {
			updated := false
			update := func(ctx context.Context, exec core.DBExecutor, serial int) error {
				updated = true
				return s.update(ids[1])(ctx, exec, serial)
			}
			serial, err := r.Move(ctx, "c1", ids[1], pos, update)
			require.NoError(t, err)
			assert.Equal(t, 2, serial)
			assert.True(t, updated)
			assert.Equal(t, ids, s.order(t, "c1"))
		}
	})

	t.Run("not found", func(t *testing.T) {
		r, s := newTestReindexer()
		ids := seed(t, r, s, "c1", 2)
		other := seed(t, r, s, "c2", 1)

		_, err := r.Move(ctx, "c1", "nope", 1, s.update("nope"))
		assert.Equal(t, errItemNotFound, errors.Cause(err))

		// items are scoped to their parent
		_, err = r.Move(ctx, "c1", other[0], 1, s.update(other[0]))
		assert.True(t, core.IsNotFound(err))
		assert.Equal(t, ids, s.order(t, "c1"))
	})

	t.Run("invalid position", func(t *testing.T) {
		r, s := newTestReindexer()
		ids := seed(t, r, s, "c1", 3)

		for _, pos := range []int{-2, 4} {
			_, err := r.Move(ctx, "c1", ids[0], pos, s.update(ids[0]))
			assert.True(t, core.IsValidationError(err), "position %d", pos)
		}
		assert.Equal(t, ids, s.order(t, "c1"))
	})
}

func TestReindexer_Delete(t *testing.T) {
	ctx := context.Background()
	r, s := newTestReindexer()
	ids := seed(t, r, s, "c1", 4) // [a b c d]
	a, b, c, d := ids[0], ids[1], ids[2], ids[3]

	require.NoError(t, r.Delete(ctx, "c1", b, s.delete(b)))
	assert.Equal(t, []string{a, c, d}, s.order(t, "c1"))

	require.NoError(t, r.Delete(ctx, "c1", d, s.delete(d)))
	assert.Equal(t, []string{a, c}, s.order(t, "c1"))

	err := r.Delete(ctx, "c1", b, s.delete(b))
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, []string{a, c}, s.order(t, "c1"))
}

func TestReindexer_InsertDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, s := newTestReindexer()
	ids := seed(t, r, s, "c1", 5)

	for pos := 1; pos <= 6; pos++ {
		var id string
		_, err := r.Insert(ctx, "c1", pos, s.create("c1", &id))
		require.NoError(t, err)
		require.NoError(t, r.Delete(ctx, "c1", id, s.delete(id)))
		assert.Equal(t, ids, s.order(t, "c1"), "position %d", pos)
	}
}

func TestReindexer_Atomicity(t *testing.T) {
	ctx := context.Background()
	r, s := newTestReindexer()
	ids := seed(t, r, s, "c1", 3)
	s.failShift = true

	var id string
	_, err := r.Insert(ctx, "c1", 1, s.create("c1", &id))
	require.Error(t, err)
	assert.False(t, core.IsClientError(err))
	assert.ErrorIs(t, err, errShiftFailed)
	assert.Empty(t, id)

	_, err = r.Move(ctx, "c1", ids[2], 1, s.update(ids[2]))
	assert.ErrorIs(t, err, errShiftFailed)

	err = r.Delete(ctx, "c1", ids[0], s.delete(ids[0]))
	assert.ErrorIs(t, err, errShiftFailed)

	s.failShift = false
	assert.Equal(t, ids, s.order(t, "c1"))
}

func TestReindexer_CallbackFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	r, s := newTestReindexer()
	ids := seed(t, r, s, "c1", 3)
	errBoom := errors.New("boom")

	_, err := r.Insert(ctx, "c1", 1, func(context.Context, core.DBExecutor, int) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)

	_, err = r.Move(ctx, "c1", ids[0], 3, func(context.Context, core.DBExecutor, int) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)

	assert.Equal(t, ids, s.order(t, "c1"))
}

func TestReindexer_Compact(t *testing.T) {
	ctx := context.Background()
	r, s := newTestReindexer()
	for id, serial := range map[string]int{"a": 3, "b": 7, "c": 8, "d": 20} {
		s.parents[id] = "c1"
		s.serials[id] = serial
	}
	s.parents["x"] = "c2"
	s.serials["x"] = 5

	changed, err := r.Compact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, changed)
	assert.Equal(t, []string{"a", "b", "c", "d"}, s.order(t, "c1"))
	assert.Equal(t, 5, s.serials["x"])

	changed, err = r.Compact(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestReindexer_RandomSequence(t *testing.T) {
	ctx := context.Background()
	r, s := newTestReindexer()
	rnd := rand.New(rand.NewSource(42))

	var model []string // expected order
	for i := 0; i < 500; i++ {
		n := len(model)
		switch op := rnd.Intn(3); {
		case op == 0 || n == 0:
			pos := rnd.Intn(n+2) // 0 appends
			var id string
			serial, err := r.Insert(ctx, "p", pos, s.create("p", &id))
			require.NoError(t, err)
			model = append(model, "")
			copy(model[serial:], model[serial-1:])
			model[serial-1] = id
		case op == 1:
			from, to := rnd.Intn(n), rnd.Intn(n)+1
			id := model[from]
			_, err := r.Move(ctx, "p", id, to, s.update(id))
			require.NoError(t, err)
			model = append(model[:from], model[from+1:]...)
			model = append(model[:to-1], append([]string{id}, model[to-1:]...)...)
		default:
			at := rnd.Intn(n)
			id := model[at]
			require.NoError(t, r.Delete(ctx, "p", id, s.delete(id)))
			model = append(model[:at], model[at+1:]...)
		}
		require.Equal(t, nilIfEmpty(model), nilIfEmpty(s.order(t, "p")), "step %d", i)
	}
}

func nilIfEmpty(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	return ids
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "invalid", resultLabel(core.NewFieldError("f", "bad")))
	assert.Equal(t, "not_found", resultLabel(errors.Wrap(errItemNotFound, "ctx")))
	assert.Equal(t, "error", resultLabel(core.NewTxError("op", errShiftFailed)))
}
