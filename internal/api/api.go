package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/swim4love/swim4love/internal/api/auth"
	"github.com/swim4love/swim4love/internal/api/handler"
	"github.com/swim4love/swim4love/internal/api/models"
	"github.com/swim4love/swim4love/internal/config"
	"github.com/swim4love/swim4love/internal/engine"
	"github.com/swim4love/swim4love/internal/static"
)

type Server struct {
	cfg          *config.Config
	ginEngine    *gin.Engine
	engine       *engine.Engine
	authProvider *auth.Provider
	handler      *handler.Handler
	httpServer   *http.Server
}

// New creates the HTTP server. jobs may be nil.
func New(ctx context.Context, cfg *config.Config, e *engine.Engine, jobs handler.JobRunner, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	authProvider, err := auth.NewProvider(ctx, cfg, e.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:          cfg,
		ginEngine:    gin.New(),
		engine:       e,
		authProvider: authProvider,
		handler:      handler.New(e, cfg, authProvider, jobs),
	}
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   s.isHTTPS(),
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions("swim4love_session", store))
}

func (s *Server) isHTTPS() bool {
	return strings.HasPrefix(s.cfg.ServerURL, "https://")
}

func (s *Server) setupRoutes() error {
	h := s.handler

	s.ginEngine.Use(requestLogger(), h.Recovery())
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/ws/", "/events/"}),
	))
	s.setupSession()
	s.ginEngine.Use(s.authProvider.LoadUser())

	tmpl, err := static.Templates(nil)
	if err != nil {
		return err
	}
	s.ginEngine.SetHTMLTemplate(tmpl)

	assets, err := static.Assets()
	if err != nil {
		return err
	}
	s.ginEngine.StaticFS("/static", http.FS(assets))

	s.ginEngine.GET("/healthz", h.Health)

	// public data
	swimmer := s.ginEngine.Group("/swimmer")
	swimmer.GET("/all", h.AllSwimmers)
	swimmer.GET("/info/:id", h.SwimmerInfo)
	swimmer.GET("/achievement/:id", h.SwimmerAchievement)

	// lap changes
	laps := swimmer.Group("")
	laps.Use(s.authProvider.RequireVolunteer(auth.Data))
	laps.POST("/add-lap", h.AddLap)
	laps.POST("/sub-lap", h.SubLap)

	// registry management
	registry := swimmer.Group("")
	registry.Use(s.authProvider.RequireAdmin(auth.Data))
	registry.POST("/add", h.AddSwimmer)
	registry.POST("/delete", h.DeleteSwimmer)
	registry.POST("/update-name", h.RenameSwimmer)

	volunteer := s.ginEngine.Group("/volunteer")
	volunteer.Use(s.authProvider.RequireVolunteer(auth.Data))
	volunteer.GET("/me", h.Me)
	volunteer.GET("/swimmers", h.VolunteerSwimmers)
	volunteer.POST("/link-swimmer", h.LinkSwimmer)
	volunteer.POST("/unlink-swimmer", h.UnlinkSwimmer)

	admin := s.ginEngine.Group("/admin")
	admin.Use(s.authProvider.RequireAdmin(auth.Data))
	admin.GET("/volunteers", h.Volunteers)
	admin.POST("/volunteer/add", h.AddVolunteer)
	admin.POST("/volunteer/delete", h.DeleteVolunteer)
	admin.POST("/swimmer/import", h.ImportSwimmers)
	admin.POST("/job/run", h.RunJob)

	// live standings
	s.ginEngine.GET("/ws/leaderboard", h.LeaderboardSocket)
	s.ginEngine.GET("/events/leaderboard", h.LeaderboardEvents)

	// pages
	s.ginEngine.GET("/", h.Home)
	s.ginEngine.GET("/login", h.Login)
	s.ginEngine.POST("/login", h.LoginSubmit)
	s.ginEngine.GET("/logout", h.Logout)
	s.ginEngine.GET("/register", h.DevelopmentOnly(), h.Register)
	s.ginEngine.POST("/register", h.DevelopmentOnly(), h.RegisterSubmit)
	s.ginEngine.GET("/leaderboard", h.LeaderboardPage)
	s.ginEngine.GET("/achievement/:id", h.AchievementPage)
	s.ginEngine.GET("/certificate/:id", h.CertificatePage)
	s.ginEngine.GET("/print-certificate/:id", h.PrintCertificatePage)
	s.ginEngine.GET("/volunteer", s.authProvider.RequireVolunteer(auth.Page), h.VolunteerPage)
	s.ginEngine.GET("/admin", s.authProvider.RequireAdmin(auth.Page), h.AdminPage)

	if oidc := s.authProvider.OIDC(); oidc != nil {
		s.ginEngine.GET("/oauth/login", oidc.Login)
		s.ginEngine.GET("/oauth/callback", oidc.Callback)
	}

	s.ginEngine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.Failure(s.cfg.Locale, engine.ErrNotFound))
	})
	return nil
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	log.Info("Starting API server", "listen", s.cfg.Listen)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
