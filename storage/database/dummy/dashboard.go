package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/academia/core/dashboard"
)

type dashboardCounter struct {
	db *DB
}

var _ dashboard.Counter = (*dashboardCounter)(nil) // interface compliance check

func NewDashboardCounter(db *DB) *dashboardCounter {
	return &dashboardCounter{db: db}
}

func (c *dashboardCounter) CountCourses(_ context.Context, publishedOnly bool) (int, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	if !publishedOnly {
		return len(c.db.t.courses), nil
	}
	n := 0
	for _, crs := range c.db.t.courses {
		if crs.IsPublished {
			n++
		}
	}
	return n, nil
}

func (c *dashboardCounter) CountModules(context.Context) (int, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	return len(c.db.t.modules), nil
}

func (c *dashboardCounter) CountTopics(context.Context) (int, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	return len(c.db.t.topics), nil
}

func (c *dashboardCounter) CountContents(context.Context) (int, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	return len(c.db.t.contents), nil
}

func (c *dashboardCounter) CountActiveJobs(_ context.Context, now time.Time) (int, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	n := 0
	for _, j := range c.db.t.jobs {
		if j.Open(now) {
			n++
		}
	}
	return n, nil
}

func (c *dashboardCounter) CountActiveDiscountTokens(_ context.Context, now time.Time) (int, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()

	n := 0
	for _, t := range c.db.t.tokens {
		if t.IsActive && !t.Expired(now) && !t.Exhausted() {
			n++
		}
	}
	return n, nil
}

func (c *dashboardCounter) CountUsers(context.Context) (int, error) {
	c.db.mu.RLock()
	defer c.db.mu.RUnlock()
	return len(c.db.t.users), nil
}
