package sqlxrepos_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/academia/core/discount"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
	testutil "github.com/trezcool/academia/tests"
)

func TestDiscountRepository_IncrementUsage(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewDiscountRepository(db)

	now := time.Now().UTC()
	tk, err := repo.CreateToken(ctx, discount.Token{Code: "LIMITED", Percent: 10, MaxUses: 3, IsActive: true, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	var used int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			ok, err := repo.IncrementUsage(gctx, tk.ID)
			if ok {
				atomic.AddInt32(&used, 1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 3, used)

	tk, err = repo.GetTokenByCode(ctx, "LIMITED")
	require.NoError(t, err)
	assert.Equal(t, 3, tk.UsedCount)

	_, err = repo.GetTokenByCode(ctx, "LOL")
	assert.Equal(t, discount.ErrNotFound, err)
	_, err = repo.GetCoursePrice(ctx, "lol")
	assert.Equal(t, discount.ErrCourseNotFound, err)
}
