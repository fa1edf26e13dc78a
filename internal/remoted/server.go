// Package remoted is a reference remote authority: a small REST
// daemon holding the shared copy of generations and evolutions that
// sync clients reconcile against. State is kept in memory; it exists
// for integration tests and small self-hosted setups.
package remoted

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/EpykLab/gryt-ci/internal/remote"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

// Server holds the in-memory record state behind the REST API.
type Server struct {
	mu          sync.RWMutex
	generations map[string]*remote.Generation // by remote ID
	evolutions  map[string]*remote.Evolution  // by remote ID
	auth        *Auth
}

// NewServer creates an empty server. auth may be nil for an open
// instance.
func NewServer(auth *Auth) *Server {
	return &Server{
		generations: make(map[string]*remote.Generation),
		evolutions:  make(map[string]*remote.Evolution),
		auth:        auth,
	}
}

// Router builds the gin handler for the API.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	if s.auth != nil {
		api.Use(s.auth.Middleware())
	}

	api.GET("/generations", s.listGenerations)
	api.POST("/generations", s.createGeneration)
	api.GET("/generations/:id", s.getGeneration)
	api.PUT("/generations/:id", s.updateGeneration)
	api.GET("/generations/version/:version", s.getGenerationByVersion)

	api.GET("/evolutions", s.listEvolutions)
	api.POST("/evolutions", s.createEvolution)
	api.PUT("/evolutions/:id", s.updateEvolution)

	return r
}

func (s *Server) listGenerations(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*remote.Generation, 0, len(s.generations))
	for _, g := range s.generations {
		out = append(out, g)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createGeneration(c *gin.Context) {
	var g remote.Generation
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if g.Version == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version is required"})
		return
	}
	if g.Status == "" {
		g.Status = model.GenerationDraft
	}
	if !g.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown generation status: " + string(g.Status)})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A version known to the authority can never be recreated, even
	// after local stores forget it.
	if s.findByVersionLocked(g.Version) != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "version already exists: " + g.Version})
		return
	}

	g.ID = uuid.NewString()
	g.UpdatedAt = time.Now().UTC()
	s.generations[g.ID] = &g
	c.JSON(http.StatusCreated, &g)
}

func (s *Server) getGeneration(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.generations[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) updateGeneration(c *gin.Context) {
	var g remote.Generation
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !g.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown generation status: " + string(g.Status)})
		return
	}

	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.generations[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
		return
	}
	if g.Version != existing.Version {
		c.JSON(http.StatusConflict, gin.H{"error": "version is immutable"})
		return
	}

	g.ID = id
	g.UpdatedAt = time.Now().UTC()
	s.generations[id] = &g
	c.JSON(http.StatusOK, &g)
}

func (s *Server) getGenerationByVersion(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := s.findByVersionLocked(c.Param("version"))
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) findByVersionLocked(version string) *remote.Generation {
	for _, g := range s.generations {
		if g.Version == version {
			return g
		}
	}
	return nil
}

func (s *Server) listEvolutions(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*remote.Evolution, 0, len(s.evolutions))
	for _, e := range s.evolutions {
		out = append(out, e)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createEvolution(c *gin.Context) {
	var e remote.Evolution
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if e.Tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.evolutions {
		if existing.Tag == e.Tag {
			c.JSON(http.StatusConflict, gin.H{"error": "tag already exists: " + e.Tag})
			return
		}
	}

	e.ID = uuid.NewString()
	s.evolutions[e.ID] = &e
	c.JSON(http.StatusCreated, &e)
}

func (s *Server) updateEvolution(c *gin.Context) {
	var e remote.Evolution
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.evolutions[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "evolution not found"})
		return
	}

	e.ID = id
	s.evolutions[id] = &e
	c.JSON(http.StatusOK, &e)
}
