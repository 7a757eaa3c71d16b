package remote

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/kasir/internal/domain"
	"github.com/roach88/kasir/internal/record"
	"github.com/roach88/kasir/internal/store"
)

// shutdownTimeout bounds graceful shutdown in ListenAndServe.
const shutdownTimeout = 5 * time.Second

// Server exposes the REST routes HTTPClient talks to, backed by a store.
// Records written through the server are not queued for sync.
type Server struct {
	store  *store.Store
	key    string
	logger *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerKey requires key as a bearer token on /rest routes.
func WithServerKey(key string) ServerOption {
	return func(s *Server) { s.key = key }
}

// WithServerLogger sets the logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server over st.
func NewServer(st *store.Store, opts ...ServerOption) *Server {
	s := &Server{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the gin engine serving the REST routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/rest")
	if s.key != "" {
		api.Use(s.auth())
	}
	api.Use(knownTable())
	{
		api.GET("/:table", s.list)
		api.GET("/:table/:id", s.get)
		api.POST("/:table", s.insert)
		api.PUT("/:table/:id", s.upsert)
		api.DELETE("/:table/:id", s.remove)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("remote server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

func (s *Server) auth() gin.HandlerFunc {
	want := []byte("Bearer " + s.key)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func knownTable() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !domain.IsCollection(c.Param("table")) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown table"})
			return
		}
		c.Next()
	}
}

func (s *Server) list(c *gin.Context) {
	table := c.Param("table")
	q := store.Query{Collection: table}
	switch table {
	case domain.CollectionProducts:
		q.OrderBy = "name"
		if active := c.Query("active"); active != "" {
			q.Where = append(q.Where, store.Equals{Field: "is_active", Value: strings.EqualFold(active, "true")})
		}
	case domain.CollectionCategories:
		q.OrderBy = "sort_order"
	}

	recs := make([]record.Record, 0)
	for rec, err := range s.store.Query(c.Request.Context(), q) {
		if err != nil {
			s.internalError(c, err)
			return
		}
		recs = append(recs, rec)
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) get(c *gin.Context) {
	rec, ok, err := s.store.Get(c.Request.Context(), c.Param("table"), c.Param("id"))
	if err != nil {
		s.internalError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// insert stores the posted record. An existing id is overwritten, so a
// retried insert leaves a single row.
func (s *Server) insert(c *gin.Context) {
	rec, ok := bindRecord(c)
	if !ok {
		return
	}
	if rec.ID() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record has no id"})
		return
	}
	if err := s.store.Put(c.Request.Context(), c.Param("table"), rec); err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) upsert(c *gin.Context) {
	rec, ok := bindRecord(c)
	if !ok {
		return
	}
	id := c.Param("id")
	switch rec.ID() {
	case "":
		rec["id"] = id
	case id:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "record id does not match path"})
		return
	}
	if err := s.store.Put(c.Request.Context(), c.Param("table"), rec); err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) remove(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("table"), c.Param("id")); err != nil {
		s.internalError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bindRecord(c *gin.Context) (record.Record, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	rec, err := record.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return rec, true
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("remote server request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
