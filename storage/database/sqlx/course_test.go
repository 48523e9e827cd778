package sqlxrepos_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	cdnsvc "github.com/trezcool/academia/services/cdn"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
	testutil "github.com/trezcool/academia/tests"
)

func newCourseService(t *testing.T) (*course.Service, course.Repository) {
	t.Helper()
	db := testutil.PrepareDB(t)
	signer, err := cdnsvc.NewHMACSigner(core.NewTestConfig().CDN)
	require.NoError(t, err)

	repo := sqlxrepos.NewCourseRepository(db)
	return course.NewService(database.NewTransactor(db), repo, signer), repo
}

func serials(t *testing.T, repo course.Repository, courseID string) []int {
	t.Helper()
	mods, err := repo.QueryModules(context.Background(), courseID)
	require.NoError(t, err)
	res := make([]int, len(mods))
	for i, m := range mods {
		res[i] = m.SerialNumber
	}
	return res
}

func TestCourseRepository_reindexing(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCourseService(t)

	c := testutil.CreateCourse(t, repo, "Go Basics", 1999, true)
	mods := testutil.CreateModules(t, svc, c.ID, "A", "B", "C")

	// shifting through occupied serial numbers relies on the deferred unique constraint
	_, err := svc.CreateModule(ctx, c.ID, course.NewModule{Title: "X", SerialNumber: 1})
	require.NoError(t, err)
	_, err = svc.UpdateModule(ctx, mods[0].ID, course.UpdateModule{SerialNumber: 4})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteModule(ctx, mods[1].ID))

	got, err := repo.QueryModules(ctx, c.ID)
	require.NoError(t, err)
	titles := make([]string, len(got))
	for i, m := range got {
		assert.Equal(t, i+1, m.SerialNumber)
		titles[i] = m.Title
	}
	assert.Equal(t, []string{"X", "C", "A"}, titles)

	t.Run("unknown or malformed course", func(t *testing.T) {
		_, err := svc.CreateModule(ctx, uuid.New().String(), course.NewModule{Title: "Nope"})
		assert.Equal(t, course.ErrCourseNotFound, errors.Cause(err))
		_, err = svc.CreateModule(ctx, "lol", course.NewModule{Title: "Nope"})
		assert.Equal(t, course.ErrCourseNotFound, errors.Cause(err))
	})

	t.Run("duplicate serial numbers are rejected", func(t *testing.T) {
		_, err := repo.CreateModule(ctx, course.Module{CourseID: c.ID, SerialNumber: 1, Title: "Dup", CreatedAt: time.Now(), UpdatedAt: time.Now()})
		assert.Error(t, err)
		assert.Equal(t, []int{1, 2, 3}, serials(t, repo, c.ID))
	})
}

func TestCourseRepository_concurrentInserts(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCourseService(t)
	c := testutil.CreateCourse(t, repo, "Go Basics", 1999, true)

	const n = 20
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			// half of them insert at the head, the others append
			pos := 0
			if i%2 == 0 {
				pos = 1
			}
			_, err := svc.CreateModule(gctx, c.ID, course.NewModule{Title: fmt.Sprintf("m%d", i), SerialNumber: pos})
			return err
		})
	}
	require.NoError(t, g.Wait())

	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, serials(t, repo, c.ID))
}

func TestCourseRepository_Compact(t *testing.T) {
	ctx := context.Background()
	svc, repo := newCourseService(t)
	c := testutil.CreateCourse(t, repo, "Go Basics", 1999, true)

	now := time.Now().UTC()
	for i, sn := range []int{2, 5, 9} {
		_, err := repo.CreateModule(ctx, course.Module{CourseID: c.ID, SerialNumber: sn, Title: fmt.Sprintf("m%d", i), CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
	}

	changed, err := svc.CompactModules(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, changed)
	assert.Equal(t, []int{1, 2, 3}, serials(t, repo, c.ID))

	changed, err = svc.CompactModules(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, changed)
}
