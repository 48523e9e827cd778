// Package testutil holds the fixtures shared by the test suites.
package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
)

// TestDatabaseURLEnv names the variable holding the postgres URL used by integration tests.
const TestDatabaseURLEnv = "TEST_DATABASE_URL"

// PrepareDB opens and migrates the integration test database, then empties it.
// The test is skipped when no database is configured.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	url := os.Getenv(TestDatabaseURLEnv)
	if url == "" {
		t.Skipf("%s is not set", TestDatabaseURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.OpenURL(ctx, url)
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	q := `TRUNCATE "user", course, module, topic, content, job, discount_token CASCADE`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB(): %v", err)
	}
}

// NewLogger returns a logger that discards everything.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
}

// NewValidator returns a validator with the application's custom tags and translations registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, NewLogger())
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, title string, price int64, published bool, createdAt ...time.Time) course.Course {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	c, err := repo.CreateCourse(context.Background(), course.Course{
		Title:       title,
		Slug:        core.Slugify(title),
		Price:       price,
		IsPublished: published,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return c
}

// CreateModules appends one module per title to the course, through svc so serial numbers stay contiguous.
func CreateModules(t *testing.T, svc *course.Service, courseID string, titles ...string) []course.Module {
	t.Helper()

	mods := make([]course.Module, 0, len(titles))
	for _, title := range titles {
		mod, err := svc.CreateModule(context.Background(), courseID, course.NewModule{Title: title})
		if err != nil {
			t.Fatalf("CreateModules(): %v", err)
		}
		mods = append(mods, mod)
	}
	return mods
}

// CreateTopics appends one topic per title to the module, through svc so serial numbers stay contiguous.
func CreateTopics(t *testing.T, svc *course.Service, moduleID string, titles ...string) []course.Topic {
	t.Helper()

	topics := make([]course.Topic, 0, len(titles))
	for _, title := range titles {
		topic, err := svc.CreateTopic(context.Background(), moduleID, course.NewTopic{Title: title})
		if err != nil {
			t.Fatalf("CreateTopics(): %v", err)
		}
		topics = append(topics, topic)
	}
	return topics
}
