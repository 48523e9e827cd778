// Package dashboard aggregates the platform statistics shown on the admin dashboard.
package dashboard

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const statsKey = "stats"

type Stats struct {
	Courses              int       `json:"courses"`
	PublishedCourses     int       `json:"published_courses"`
	Modules              int       `json:"modules"`
	Topics               int       `json:"topics"`
	Contents             int       `json:"contents"`
	ActiveJobs           int       `json:"active_jobs"`
	ActiveDiscountTokens int       `json:"active_discount_tokens"`
	Users                int       `json:"users"`
	GeneratedAt          time.Time `json:"generated_at"` // UTC
}

type (
	// Counter counts rows. Jobs and discount tokens are only counted while active at `now`.
	Counter interface {
		CountCourses(ctx context.Context, publishedOnly bool) (int, error)
		CountModules(ctx context.Context) (int, error)
		CountTopics(ctx context.Context) (int, error)
		CountContents(ctx context.Context) (int, error)
		CountActiveJobs(ctx context.Context, now time.Time) (int, error)
		CountActiveDiscountTokens(ctx context.Context, now time.Time) (int, error)
		CountUsers(ctx context.Context) (int, error)
	}

	Service struct {
		counter Counter
		cache   *ttlcache.Cache[string, Stats]
		nowFunc func() time.Time // mockable
	}
)

func NewService(counter Counter, cacheTTL time.Duration) *Service {
	vala.BeginValidation().Validate(vala.IsNotNil(counter, "counter")).CheckAndPanic()

	return &Service{
		counter: counter,
		cache: ttlcache.New[string, Stats](
			ttlcache.WithTTL[string, Stats](cacheTTL),
			ttlcache.WithDisableTouchOnHit[string, Stats](),
		),
		nowFunc: time.Now,
	}
}

// Stats returns the cached statistics, computing them when the cache is empty or stale.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	if item := svc.cache.Get(statsKey); item != nil && !item.IsExpired() {
		return item.Value(), nil
	}

	stats, err := svc.compute(ctx)
	if err != nil {
		return Stats{}, err
	}
	svc.cache.Set(statsKey, stats, ttlcache.DefaultTTL)
	return stats, nil
}

// Invalidate drops the cached statistics.
func (svc *Service) Invalidate() {
	svc.cache.DeleteAll()
}

func (svc *Service) compute(ctx context.Context) (Stats, error) {
	now := svc.nowFunc().UTC()
	stats := Stats{GeneratedAt: now}

	eg, ctx := errgroup.WithContext(ctx)
	count := func(name string, dst *int, fn func(ctx context.Context) (int, error)) {
		eg.Go(func() error {
			n, err := fn(ctx)
			if err != nil {
				return errors.Wrapf(err, "counting %s", name)
			}
			*dst = n
			return nil
		})
	}

	count("courses", &stats.Courses, func(ctx context.Context) (int, error) {
		return svc.counter.CountCourses(ctx, false)
	})
	count("published courses", &stats.PublishedCourses, func(ctx context.Context) (int, error) {
		return svc.counter.CountCourses(ctx, true)
	})
	count("modules", &stats.Modules, svc.counter.CountModules)
	count("topics", &stats.Topics, svc.counter.CountTopics)
	count("contents", &stats.Contents, svc.counter.CountContents)
	count("active jobs", &stats.ActiveJobs, func(ctx context.Context) (int, error) {
		return svc.counter.CountActiveJobs(ctx, now)
	})
	count("active discount tokens", &stats.ActiveDiscountTokens, func(ctx context.Context) (int, error) {
		return svc.counter.CountActiveDiscountTokens(ctx, now)
	})
	count("users", &stats.Users, svc.counter.CountUsers)

	if err := eg.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
