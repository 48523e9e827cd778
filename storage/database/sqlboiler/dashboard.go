package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/dashboard"
)

type dashboardCounter struct {
	exec core.DBExecutor
}

var _ dashboard.Counter = (*dashboardCounter)(nil) // interface compliance check

func NewDashboardCounter(exec core.DBExecutor) *dashboardCounter {
	return &dashboardCounter{exec: exec}
}

func (c dashboardCounter) count(ctx context.Context, q string, args ...interface{}) (int, error) {
	var res struct {
		Count int `boil:"count"`
	}
	if err := queries.Raw(q, args...).Bind(ctx, c.exec, &res); err != nil {
		return 0, errors.Wrap(err, "counting")
	}
	return res.Count, nil
}

func (c dashboardCounter) CountCourses(ctx context.Context, publishedOnly bool) (int, error) {
	if publishedOnly {
		return c.count(ctx, `SELECT COUNT(*) AS "count" FROM course WHERE is_published`)
	}
	return c.count(ctx, `SELECT COUNT(*) AS "count" FROM course`)
}

func (c dashboardCounter) CountModules(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) AS "count" FROM module`)
}

func (c dashboardCounter) CountTopics(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) AS "count" FROM topic`)
}

func (c dashboardCounter) CountContents(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) AS "count" FROM content`)
}

func (c dashboardCounter) CountActiveJobs(ctx context.Context, now time.Time) (int, error) {
	return c.count(ctx,
		`SELECT COUNT(*) AS "count" FROM job WHERE is_active AND (expires_at IS NULL OR expires_at > $1)`,
		now.UTC())
}

func (c dashboardCounter) CountActiveDiscountTokens(ctx context.Context, now time.Time) (int, error) {
	return c.count(ctx,
		`SELECT COUNT(*) AS "count" FROM discount_token
		WHERE is_active AND (expires_at IS NULL OR expires_at > $1) AND (max_uses = 0 OR used_count < max_uses)`,
		now.UTC())
}

func (c dashboardCounter) CountUsers(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) AS "count" FROM "user"`)
}
