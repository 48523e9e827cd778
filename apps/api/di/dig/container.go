package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/dashboard"
	"github.com/trezcool/academia/core/discount"
	"github.com/trezcool/academia/core/job"
	"github.com/trezcool/academia/core/user"
	cdnsvc "github.com/trezcool/academia/services/cdn"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
	boiledrepos "github.com/trezcool/academia/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type ServerParams struct {
	dig.In

	Conf         *core.Config
	Logger       core.Logger
	Validate     *validator.Validate
	Translator   ut.Translator
	UserSvc      user.Service
	CourseSvc    *course.Service
	JobSvc       *job.Service
	DiscountSvc  *discount.Service
	DashboardSvc *dashboard.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func(ctx context.Context) (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp(context.Background())
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newTransactor(db *sqlx.DB) core.Transactor {
	return database.NewTransactor(db)
}

func newUserRepository(db *sqlx.DB) user.Repository {
	return boiledrepos.NewUserRepository(db)
}

func newCourseRepository(db *sqlx.DB) course.Repository {
	return sqlxrepos.NewCourseRepository(db)
}

func newJobRepository(db *sqlx.DB) job.Repository {
	return sqlxrepos.NewJobRepository(db)
}

func newDiscountRepository(db *sqlx.DB) discount.Repository {
	return sqlxrepos.NewDiscountRepository(db)
}

func newDashboardService(conf *core.Config, db *sqlx.DB) *dashboard.Service {
	return dashboard.NewService(boiledrepos.NewDashboardCounter(db), conf.Dashboard.CacheTTL)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newURLSigner(conf *core.Config) (core.URLSigner, error) {
	return cdnsvc.NewHMACSigner(conf.CDN)
}

func newValidator() *validator.Validate {
	return validator.New()
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Validate:     p.Validate,
		Translator:   p.Translator,
		UserSvc:      p.UserSvc,
		CourseSvc:    p.CourseSvc,
		JobSvc:       p.JobSvc,
		DiscountSvc:  p.DiscountSvc,
		DashboardSvc: p.DashboardSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newTransactor))
	must(c.Provide(newEmailService))
	must(c.Provide(newURLSigner))
	must(c.Provide(newValidator))
	must(c.Provide(core.NewTranslator))

	// repositories
	must(c.Provide(newUserRepository))
	must(c.Provide(newCourseRepository))
	must(c.Provide(newJobRepository))
	must(c.Provide(newDiscountRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(job.NewService))
	must(c.Provide(discount.NewService))
	must(c.Provide(newDashboardService))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
