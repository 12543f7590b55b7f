package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/access"
	"github.com/trezcool/ibdp/core/auth"
	"github.com/trezcool/ibdp/core/session"
	"github.com/trezcool/ibdp/core/user"
)

type (
	Options struct {
		Conf           *core.Config
		DisableReqLogs bool
		Logger         core.Logger
		// Shutdown is called whenever a core.shutdown error is caught.
		Shutdown func()

		UserSvc    *user.Service
		Verifier   *auth.Verifier
		Issuer     *session.Issuer
		Reader     *session.Reader
		Authorizer *access.Authorizer
		Validate   *validator.Validate
		Translator ut.Translator
		// Registry collects the server metrics; a private registry is used when nil.
		Registry *prometheus.Registry
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts    *Options
		app     *echo.Echo
		metrics *metrics

		errUnauthenticated *echo.HTTPError
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Shutdown == nil {
		opts.Shutdown = func() {}
	}
	s := &server{
		opts:    opts,
		app:     echo.New(),
		metrics: newMetrics(opts.Registry),
		errUnauthenticated: echo.NewHTTPError(http.StatusUnauthorized, echo.Map{
			"error":    "authentication required",
			"redirect": opts.Conf.Server.LoginPath,
		}),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.Shutdown)
	s.app.Debug = conf.Debug
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.GET("/", home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{})))

	v1 := s.app.Group("/v1")
	sess := s.sessionMiddleware()

	registerAuthAPI(v1, sess, s)
	registerNavigationAPI(v1, sess, s)
	registerStudentAPI(v1, sess, s)
	registerAdminAPI(v1, sess, s)
}

func (s *server) Start() error {
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the IB DP Assistant API!")
}
