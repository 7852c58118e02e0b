// Package stubserver is a fixture-driven fake of the schema-serving backend,
// used by the engine tests. It mirrors the real server's routes and payload
// envelopes: UI schemas under /api/ui, generic CRUD under /api/{entity},
// {error} on failures, {message} on custom actions.
package stubserver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"

	"metaview/internal/schema"
)

// Fixtures declares the schemas and seed data the stub serves.
type Fixtures struct {
	// Token, when set, is the only accepted bearer token; other requests
	// get 401. Empty disables auth.
	Token string

	// Users maps username -> password for /auth/login; a successful login
	// answers with Token.
	Users map[string]string

	Portal     []schema.Module
	PortalETag string

	Pages      map[string]*schema.PageSchema
	PageErrors map[string]string // entity -> {error} payload served with 400
	Forms      map[string]*schema.FormSchema

	Dashboards     map[string]*schema.DashboardSchema
	DashboardETags map[string]string

	// Records seeds per-entity data; CRUD routes are registered for every
	// key, so entities must be declared here even when empty.
	Records map[string][]map[string]any

	// Actions maps "METHOD path" (path relative to /api) to the {message}
	// the route answers with.
	Actions map[string]string

	// FailEntities lists entities whose list endpoint answers 500.
	FailEntities []string
}

// Server wraps the gin engine and an httptest server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	fx       Fixtures
	records  map[string][]map[string]any
	nextID   int
	requests []string
}

// New builds and starts the stub.
func New(fx Fixtures) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		fx:      fx,
		records: make(map[string][]map[string]any),
		nextID:  1000,
	}
	for entity, recs := range fx.Records {
		s.records[entity] = append([]map[string]any(nil), recs...)
	}

	r := gin.New()
	r.Use(s.record, s.auth)

	api := r.Group("/api")
	api.POST("/auth/login", s.login)
	api.GET("/ui/portal", s.portal)
	api.GET("/ui/page/:entity", s.page)
	api.GET("/ui/form/:entity", s.form)
	api.GET("/ui/dashboard/:name", s.dashboard)

	failing := make(map[string]bool, len(fx.FailEntities))
	for _, e := range fx.FailEntities {
		failing[e] = true
	}
	// Entity routes are registered statically per fixture so they cannot
	// collide with the /ui tree.
	for entity := range fx.Records {
		if failing[entity] {
			api.GET("/"+entity, func(c *gin.Context) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
			})
			continue
		}
		api.GET("/"+entity, s.list(entity))
		api.POST("/"+entity, s.create(entity))
		api.GET("/"+entity+"/:id", s.get(entity))
		api.PUT("/"+entity+"/:id", s.update(entity))
		api.DELETE("/"+entity+"/:id", s.delete(entity))
	}
	for key, message := range fx.Actions {
		var method, path string
		fmt.Sscanf(key, "%s %s", &method, &path)
		api.Handle(method, path, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": message})
		})
	}

	s.Server = httptest.NewServer(r)
	return s
}

// BaseURL returns the /api root clients should be configured with.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// Requests returns the "METHOD /path" log in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// RecordsOf returns a copy of the current records of an entity.
func (s *Server) RecordsOf(entity string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.records[entity]...)
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, c.Request.Method+" "+c.Request.URL.Path)
	s.mu.Unlock()
	c.Next()
}

func (s *Server) login(c *gin.Context) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if pw, ok := s.fx.Users[creds.Username]; !ok || pw != creds.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"username": creds.Username,
		"roles":    []string{"user"},
		"token":    s.fx.Token,
	})
}

func (s *Server) auth(c *gin.Context) {
	if s.fx.Token == "" || c.Request.URL.Path == "/api/auth/login" {
		c.Next()
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+s.fx.Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) portal(c *gin.Context) {
	if s.fx.PortalETag != "" {
		if c.GetHeader("If-None-Match") == s.fx.PortalETag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", s.fx.PortalETag)
	}
	c.JSON(http.StatusOK, s.fx.Portal)
}

func (s *Server) page(c *gin.Context) {
	entity := c.Param("entity")
	if msg, ok := s.fx.PageErrors[entity]; ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	page, ok := s.fx.Pages[entity]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Entity, Page, or Dashboard not found"})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) form(c *gin.Context) {
	form, ok := s.fx.Forms[c.Param("entity")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Form or Entity not found"})
		return
	}
	c.JSON(http.StatusOK, form)
}

func (s *Server) dashboard(c *gin.Context) {
	name := c.Param("name")
	dash, ok := s.fx.Dashboards[name]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dashboard not found"})
		return
	}
	if etag := s.fx.DashboardETags[name]; etag != "" {
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
	}
	c.JSON(http.StatusOK, dash)
}

func (s *Server) list(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		recs := s.records[entity]
		if recs == nil {
			recs = []map[string]any{}
		}
		c.JSON(http.StatusOK, recs)
	}
}

func (s *Server) create(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		s.mu.Lock()
		s.nextID++
		id := s.nextID
		body["id"] = float64(id)
		s.records[entity] = append(s.records[entity], body)
		s.mu.Unlock()
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

func (s *Server) get(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if rec := s.find(entity, c.Param("id")); rec != nil {
			c.JSON(http.StatusOK, rec)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": entity + " not found"})
	}
}

func (s *Server) update(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		rec := s.find(entity, c.Param("id"))
		if rec == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": entity + " not found"})
			return
		}
		for k, v := range body {
			if k == "id" {
				continue
			}
			rec[k] = v
		}
		c.JSON(http.StatusOK, rec)
	}
}

func (s *Server) delete(entity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := c.Param("id")
		recs := s.records[entity]
		for i, rec := range recs {
			if fmt.Sprint(rec["id"]) == id {
				s.records[entity] = append(recs[:i], recs[i+1:]...)
				c.JSON(http.StatusOK, gin.H{"message": entity + " deleted"})
				return
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": entity + " not found"})
	}
}

func (s *Server) find(entity, id string) map[string]any {
	for _, rec := range s.records[entity] {
		if fmt.Sprint(rec["id"]) == id {
			return rec
		}
	}
	return nil
}
