package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/hypergopher/inkwell"
)

const (
	defaultSessionTTL = 14 * 24 * time.Hour
	defaultLoginBurst = 5
	defaultPageSize   = 10
	defaultUploadSize = "10M"
)

// defaultLoginRate refills one login or register attempt every 12 seconds per client.
var defaultLoginRate = rate.Every(12 * time.Second)

// Options configures the web server.
type Options struct {
	Service  *inkwell.Service  // Service is required
	Accounts *inkwell.Accounts // Accounts is required
	Logger   *slog.Logger
	// SecretKey signs session cookies. It is required.
	SecretKey string
	Debug     bool
	// HostAllowed is consulted for every request when Debug is off. Nil allows every host.
	HostAllowed func(host string) bool
	MediaRoot   string
	StaticRoot  string // StaticRoot is served under /static/ when set
	SessionTTL  time.Duration
	LoginRate   rate.Limit
	LoginBurst  int
	PageSize    int // PageSize is the number of posts per home page
	// MaxUploadSize caps the request body of the post forms, e.g. "10M". Larger bodies get a 413.
	MaxUploadSize string
	// FullTextSearch switches /search/ to the store's full-text index when it has one.
	FullTextSearch bool
	// DisableCSRF turns off CSRF token checks. Only tests should set it.
	DisableCSRF bool
	Now         func() time.Time
}

// Server serves the blog over HTTP.
type Server struct {
	echo        *echo.Echo
	service     *inkwell.Service
	accounts    *inkwell.Accounts
	markdown    *inkwell.Renderer
	logger      *slog.Logger
	secret      []byte
	sessionTTL  time.Duration
	debug       bool
	hostAllowed func(string) bool
	mediaRoot   string
	hasStatic   bool
	fullText    bool
	pageSize    int
	uploadLimit echo.MiddlewareFunc
	limiter     *clientLimiter
	now         func() time.Time
}

// New builds the server and registers every route.
func New(opts Options) (*Server, error) {
	if opts.Service == nil || opts.Accounts == nil {
		return nil, errors.New("web: service and accounts are required")
	}
	if opts.SecretKey == "" {
		return nil, errors.New("web: secret key is required")
	}

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.LoginRate == 0 {
		opts.LoginRate = defaultLoginRate
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = defaultLoginBurst
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.MaxUploadSize == "" {
		opts.MaxUploadSize = defaultUploadSize
	}
	if opts.MediaRoot == "" {
		opts.MediaRoot = "media"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	tmpl, err := newTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		echo:        echo.New(),
		service:     opts.Service,
		accounts:    opts.Accounts,
		markdown:    inkwell.NewRenderer(),
		logger:      opts.Logger,
		secret:      []byte(opts.SecretKey),
		sessionTTL:  opts.SessionTTL,
		debug:       opts.Debug,
		hostAllowed: opts.HostAllowed,
		mediaRoot:   opts.MediaRoot,
		hasStatic:   opts.StaticRoot != "",
		fullText:    opts.FullTextSearch,
		pageSize:    opts.PageSize,
		uploadLimit: middleware.BodyLimit(opts.MaxUploadSize),
		limiter:     newClientLimiter(opts.LoginRate, opts.LoginBurst),
		now:         opts.Now,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Debug = opts.Debug
	e.Renderer = tmpl
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
			}
			s.logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}))
	if !opts.Debug && opts.HostAllowed != nil {
		e.Use(s.checkHost)
	}
	e.Use(s.loadSession)
	if !opts.DisableCSRF {
		e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
			TokenLookup:    "form:" + csrfField,
			CookieName:     "inkwell_csrf",
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSecure:   !opts.Debug,
			CookieSameSite: http.SameSiteLaxMode,
			Skipper: func(c echo.Context) bool {
				return isAssetPath(c.Request().URL.Path)
			},
		}))
	}

	s.routes(opts.StaticRoot)

	return s, nil
}

func (s *Server) routes(staticRoot string) {
	e := s.echo
	getPost := []string{http.MethodGet, http.MethodPost}

	e.GET("/", s.home)
	e.Match(getPost, "/login/", s.login, s.limitAttempts)
	e.Match(getPost, "/register/", s.register, s.limitAttempts)
	e.Match(getPost, "/logout/", s.logout)
	e.Match(getPost, "/add_blog/", s.addBlog, s.uploadLimit)
	e.GET("/profile/", s.profile)
	e.Match(getPost, "/profile/edit/", s.editProfile)
	e.GET("/search/", s.search)
	e.GET("/blog/:slug/", s.detail)
	e.Match(getPost, "/blog_update/:slug/", s.editBlog, s.uploadLimit)
	e.Match(getPost, "/blog_delete/:slug/", s.deleteBlog)

	if staticRoot != "" {
		e.Static("/static", staticRoot)
	}
	e.Static("/media", s.mediaRoot)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting server", slog.String("addr", addr), slog.Bool("debug", s.debug))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// checkHost rejects requests whose Host header is not allowed.
func (s *Server) checkHost(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.hostAllowed(c.Request().Host) {
			s.logger.Warn("disallowed host", slog.String("host", c.Request().Host))
			return echo.NewHTTPError(http.StatusBadRequest, "Bad Request")
		}
		return next(c)
	}
}

func isAssetPath(path string) bool {
	return strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, "/media/")
}
