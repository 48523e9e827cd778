package boiledrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/user"
	boiledrepos "github.com/trezcool/academia/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
	testutil "github.com/trezcool/academia/tests"
)

func TestDashboardCounter(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	counter := boiledrepos.NewDashboardCounter(db)
	courseRepo := sqlxrepos.NewCourseRepository(db)

	testutil.CreateCourse(t, courseRepo, "Go Basics", 1999, true)
	testutil.CreateCourse(t, courseRepo, "Rust Basics", 1999, false)
	usrRepo := boiledrepos.NewUserRepository(db)
	testutil.CreateUser(t, usrRepo, "User", "user01", "user@test.cd", "LolC@t123", []string{user.RoleCustomer}, true)

	n, err := counter.CountCourses(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = counter.CountCourses(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = counter.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = counter.CountActiveJobs(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
