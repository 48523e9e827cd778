package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/dashboard"
	"github.com/trezcool/academia/core/discount"
	"github.com/trezcool/academia/core/job"
	"github.com/trezcool/academia/core/user"
)

type (
	Options struct {
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

	Server struct {
		opts     Options
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(opts Options) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Conf, "Conf"),
		vala.IsNotNil(opts.Logger, "Logger"),
		vala.IsNotNil(opts.Validate, "Validate"),
		vala.IsNotNil(opts.Translator, "Translator"),
		vala.IsNotNil(opts.UserSvc, "UserSvc"),
		vala.IsNotNil(opts.CourseSvc, "CourseSvc"),
		vala.IsNotNil(opts.JobSvc, "JobSvc"),
		vala.IsNotNil(opts.DiscountSvc, "DiscountSvc"),
		vala.IsNotNil(opts.DashboardSvc, "DashboardSvc"),
	).CheckAndPanic()

	s := &Server{
		opts:     opts,
		app:      echo.New(),
		auth:     newAuthenticator(opts.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metricsMiddleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)
	optJWT := middleware.JWTWithConfig(s.auth.optionalJWTConfig())

	admin := v1.Group("/admin", jwt, adminMiddleware())

	registerUserAPI(v1, jwt, s.auth, s.opts.UserSvc, s.opts.Validate)
	registerCourseAPI(v1, admin, jwt, optJWT, s.opts.CourseSvc, s.opts.DashboardSvc, s.opts.Validate)
	registerJobAPI(v1, jwt, optJWT, s.opts.JobSvc, s.opts.DashboardSvc, s.opts.Validate)
	registerDiscountAPI(v1, jwt, s.opts.DiscountSvc, s.opts.DashboardSvc, s.opts.Validate)
	registerDashboardAPI(admin, s.opts.DashboardSvc)
}

// Start listens on the configured address. Listener failures are reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.opts.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

// ShutdownSignal receives SIGINT, SIGTERM and internal shutdown requests.
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// UserClaims returns the JWT claims of usr.
func (s *Server) UserClaims(usr user.User, origIat ...int64) *Claims {
	return s.auth.userClaims(usr, origIat...)
}

// GenerateToken signs claims.
func (s *Server) GenerateToken(claims *Claims) (string, error) {
	return s.auth.generateToken(claims)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Academia API!")
}
