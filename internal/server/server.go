package server

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"kanban/internal/auth"
	"kanban/internal/storage/sqlite"
)

// Options configures the HTTP server.
type Options struct {
	// StaticDir holds index.html and the static/ assets; empty means API only.
	StaticDir string
	// Tokens signs the access tokens returned by register and login.
	Tokens *auth.Issuer
	// RequireToken rejects protected requests that carry no bearer token
	// instead of trusting the user_id query parameter.
	RequireToken bool
	// AllowedOrigins lists CORS origins; empty or "*" allows any origin.
	AllowedOrigins []string
}

// Server provides HTTP handlers for the kanban board backend.
type Server struct {
	engine       *gin.Engine
	store        *sqlite.Store
	logger       *slog.Logger
	tokens       *auth.Issuer
	requireToken bool
	staticDir    string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *sqlite.Store, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/v1/healthz"))
	router.Use(requestID())
	router.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	srv := &Server{
		engine:       router,
		store:        store,
		logger:       logger,
		tokens:       opts.Tokens,
		requireToken: opts.RequireToken,
		staticDir:    opts.StaticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api/v1")
	{
		api.GET("/healthz", s.handleHealth)
		api.POST("/register", s.handleRegister)
		api.POST("/login", s.handleLogin)

		protected := api.Group("", s.authenticate())
		{
			boards := protected.Group("/boards")
			{
				boards.GET("", s.handleListBoards)
				boards.POST("", s.handleCreateBoard)
				boards.POST(":id/invite", s.handleInviteMember)
				boards.POST(":id/columns", s.handleCreateColumn)
			}

			protected.PUT("/columns/:id", s.handleUpdateColumn)
			protected.DELETE("/columns/:id", s.handleDeleteColumn)

			protected.POST("/tasks", s.handleCreateTask)
			protected.PUT("/tasks/:id", s.handleUpdateTask)
			protected.DELETE("/tasks/:id", s.handleDeleteTask)
			protected.PATCH("/tasks/:id", s.handleMoveTask)
		}
	}

	s.mountStatic()
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", requestIDHeader)
	cfg.ExposeHeaders = []string{requestIDHeader}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// parseQueryID reads a required integer query parameter.
func parseQueryID(c *gin.Context, name string) (int64, bool) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is required"})
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	s.logger.Error("request failed",
		slog.String("path", c.FullPath()),
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.Int("status", status),
		slog.String("error", err.Error()))

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// respondStoreError translates storage errors into HTTP statuses.
func (s *Server) respondStoreError(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sqlite.ErrConflict), errors.Is(err, sqlite.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondSuccess writes the payload as JSON, or only the status when nil.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
