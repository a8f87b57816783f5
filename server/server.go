// Package server exposes the identity core over HTTP: the public auth
// surface, the guarded admin surface, and the response conventions shared
// by both.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/identity/account"
	"github.com/skillsenselab/identity/config"
	"github.com/skillsenselab/identity/logger"
	"github.com/skillsenselab/identity/rbac"
	"github.com/skillsenselab/identity/server/middleware"
	"github.com/skillsenselab/identity/token"
)

// Server is the HTTP server backed by Gin.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	cfg        config.ServerConfig
	log        *logger.Logger
}

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Accounts *account.Service
	Tokens   *token.Service
	Authz    *rbac.Authorizer
	Manager  *rbac.Manager
}

// New creates a Server with the standard middleware stack applied and all
// routes registered.
func New(cfg config.ServerConfig, deps Deps, log *logger.Logger) *Server {
	gin.SetMode(cfg.Mode)

	engine := gin.New()
	s := &Server{
		engine: engine,
		cfg:    cfg,
		log:    log.WithComponent("server"),
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      engine,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}

	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(log))

	registerRoutes(engine, deps)
	return s
}

// Engine returns the underlying Gin engine, used by tests to drive
// requests without a listener.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start binds the port and begins serving. It returns once the listener is
// bound so the caller knows the port is ready; serving continues in a
// goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", logger.ErrorFields("serve", err))
		}
	}()

	s.log.Info("http server started", logger.Fields("addr", s.httpServer.Addr))
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
