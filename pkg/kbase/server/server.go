// Package server assembles the HTTP API and runs it under grace.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/admin"
	"github.com/mikepea/kbase/pkg/kbase/auth"
	"github.com/mikepea/kbase/pkg/kbase/chat"
	"github.com/mikepea/kbase/pkg/kbase/config"
	"github.com/mikepea/kbase/pkg/kbase/counters"
	"github.com/mikepea/kbase/pkg/kbase/events"
	"github.com/mikepea/kbase/pkg/kbase/importexport"
	"github.com/mikepea/kbase/pkg/kbase/logging"
	"github.com/mikepea/kbase/pkg/kbase/notify"
	"github.com/mikepea/kbase/pkg/kbase/resources"
	"github.com/mikepea/kbase/pkg/kbase/storage"
	"github.com/mikepea/kbase/pkg/kbase/tags"
	"github.com/mikepea/kbase/pkg/kbase/uploads"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	DB        *gorm.DB
	Hub       *events.Hub
	Notifier  *notify.Notifier
	Uploader  *storage.Uploader
	Completer chat.Completer
	Logger    zerolog.Logger
}

// spaRoutes are the dashboard routes answered with index.html.
var spaRoutes = []string{"/", "/login", "/admin", "/bookmarks"}

// NewRouter registers every route.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	r := gin.New()
	// Tag names may contain "/", sent as %2F; match on the escaped path and
	// hand handlers the decoded value.
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery(), logging.Middleware(d.Logger))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "kbase"})
	}
	r.GET("/health", health)

	if d.Notifier == nil {
		d.Notifier = notify.New(d.Logger, notify.DefaultTimeout)
	}
	var pub events.Publisher = events.Discard
	if d.Hub != nil {
		pub = d.Hub
	}

	api := r.Group("/api")
	{
		api.GET("/health", health)

		auth.NewHandler(d.DB).RegisterRoutes(api.Group("/auth"))

		resources.NewHandler(d.DB, pub).RegisterRoutes(api)

		counterHandler := counters.NewHandler(d.DB, pub, d.Notifier)
		counterHandler.RegisterRoutes(api)
		counterHandler.RegisterRedirect(r)

		tags.NewHandler(d.DB, pub).RegisterRoutes(api)
		importexport.NewHandler(d.DB, pub).RegisterRoutes(api)

		if d.Uploader != nil {
			uploads.NewHandler(d.Uploader, cfg.Storage.MaxBytes).RegisterRoutes(api)
		}

		chat.NewHandler(d.DB, d.Completer, cfg.Chat.MaxHistory, cfg.Chat.CatalogContext).RegisterRoutes(api)

		if d.Hub != nil {
			d.Hub.RegisterRoutes(api)
		}

		adminGroup := api.Group("/admin", auth.AuthMiddleware(), auth.RequireAdmin())
		admin.NewHandler(d.DB).RegisterRoutes(adminGroup)
	}

	if d.Uploader != nil {
		if local, ok := d.Uploader.Bucket().(*storage.LocalBucket); ok && strings.HasPrefix(local.PublicBase, "/") {
			r.Static(local.PublicBase, local.Dir)
		}
	}

	serveFrontend(r, cfg.WebDist, d.Logger)
	return r
}

func serveFrontend(r *gin.Engine, dist string, logger zerolog.Logger) {
	if dist == "" {
		return
	}
	if _, err := os.Stat(filepath.Join(dist, "index.html")); err != nil {
		logger.Info().Str("web_dist", dist).Msg("no frontend build found, API only mode")
		return
	}

	r.Static("/assets", filepath.Join(dist, "assets"))
	r.StaticFile("/favicon.ico", filepath.Join(dist, "favicon.ico"))

	indexHTML := filepath.Join(dist, "index.html")
	for _, route := range spaRoutes {
		r.GET(route, func(c *gin.Context) {
			c.File(indexHTML)
		})
	}
	r.GET("/resources/*path", func(c *gin.Context) {
		c.File(indexHTML)
	})
	logger.Info().Str("web_dist", dist).Msg("serving frontend")
}

// Server runs the router as a grace service.
type Server struct {
	server *http.Server
	logger zerolog.Logger
}

// New builds the HTTP server listening on cfg.Address.
func New(cfg *config.Config, d Deps) *Server {
	return &Server{
		server: &http.Server{
			Addr:              cfg.Address,
			Handler:           NewRouter(cfg, d),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: d.Logger,
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Name implements grace.Grace.
func (s *Server) Name() string {
	return "http"
}

// Run serves until Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Str("address", s.server.Addr).Msg("starting kbase server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
