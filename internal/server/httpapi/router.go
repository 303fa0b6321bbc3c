// Package httpapi exposes the reference server's HTTP/JSON surface: auth
// endpoints plus whole-dataset read and optimistic-version write.
package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"

	"github.com/tallybook/tallybook/internal/logging"
	"github.com/tallybook/tallybook/internal/server/storage"
)

// Server bundles the handlers' collaborators.
type Server struct {
	store     storage.Storage
	log       logging.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
	pool      *ants.Pool
}

// NewServer wires handlers onto the given validation pool. The pool is owned
// by the caller.
func NewServer(store storage.Storage, log logging.Logger, jwtSecret []byte, ttl time.Duration, pool *ants.Pool) *Server {
	return &Server{
		store:     store,
		log:       log,
		jwtSecret: jwtSecret,
		tokenTTL:  ttl,
		pool:      pool,
	}
}

// Router builds the gin engine with recovery, request logging and auth
// middleware in place.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin)

	data := v1.Group("/")
	data.Use(s.requireAuth())
	data.GET("/dataset", s.handleGetDataset)
	data.PUT("/dataset", s.handlePutDataset)

	return r
}
