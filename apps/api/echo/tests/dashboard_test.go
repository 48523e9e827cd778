package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/dashboard"
	testutil "github.com/trezcool/academia/tests"
)

func getStats(t *testing.T, token string) dashboard.Stats {
	t.Helper()
	rec := serve(http.MethodGet, "/v1/admin/dashboard", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stats dashboard.Stats
	unmarshal(t, rec, &stats)
	return stats
}

func Test_dashboardApi(t *testing.T) {
	db.Reset()

	adminToken, managerToken, customerToken := staffAndCustomerTokens(t)

	assert.Equal(t, http.StatusForbidden, serve(http.MethodGet, "/v1/admin/dashboard", managerToken).Code)
	assert.Equal(t, http.StatusForbidden, serve(http.MethodGet, "/v1/admin/dashboard", customerToken).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(http.MethodGet, "/v1/admin/dashboard", "").Code)

	// any successful write through the API drops the cached stats
	rec := serve(http.MethodPost, "/v1/courses", managerToken, marshalObj(t, course.NewCourse{Title: "Go Basics", IsPublished: true}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c course.Course
	unmarshal(t, rec, &c)

	stats := getStats(t, adminToken)
	assert.Equal(t, 1, stats.Courses)
	assert.Equal(t, 1, stats.PublishedCourses)
	assert.Equal(t, 3, stats.Users)
	assert.Equal(t, 0, stats.Modules)

	t.Run("cached", func(t *testing.T) {
		testutil.CreateCourse(t, courseRepo, "Rust Basics", 1000, false)
		cached := getStats(t, adminToken)
		assert.Equal(t, stats, cached)
	})

	t.Run("failed writes keep the cache", func(t *testing.T) {
		rec := serve(http.MethodPost, "/v1/courses", managerToken, marshalObj(t, course.NewCourse{Title: "Go Basics"}))
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.Equal(t, stats, getStats(t, adminToken))
	})

	t.Run("invalidated by writes", func(t *testing.T) {
		rec := serve(http.MethodPost, "/v1/courses/"+c.ID+"/modules", managerToken, marshalObj(t, course.NewModule{Title: "Syntax"}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		fresh := getStats(t, adminToken)
		assert.Equal(t, 2, fresh.Courses)
		assert.Equal(t, 1, fresh.PublishedCourses)
		assert.Equal(t, 1, fresh.Modules)
		assert.False(t, fresh.GeneratedAt.Before(stats.GeneratedAt))
	})
}

func Test_metrics(t *testing.T) {
	serve(http.MethodGet, "/", "")

	rec := serve(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "academia_http_requests_total"), "request counter is exported")
	assert.True(t, strings.Contains(body, `route="/"`), "requests are labelled by route")
}
