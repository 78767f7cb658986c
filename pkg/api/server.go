// Package api is governor's wire protocol: echo/v5 HTTP handlers that bind
// JSON requests, call into pkg/gateway, and translate its results and
// errors back into the status codes spec §6 specifies.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/latticeguard/governor/pkg/database"
	"github.com/latticeguard/governor/pkg/gateway"
	"github.com/latticeguard/governor/pkg/identity"
)

// Server is governor's HTTP API server.
type Server struct {
	echo        *echo.Echo
	httpServer  *http.Server
	gateway     *gateway.Gateway
	identities  *identity.Registry
	dbClient    *database.Client
	sandboxExec gateway.SandboxRunner
}

// NewServer creates a new API server with Echo v5, wiring every route
// up front. The collaborator set is fixed and small, so every dependency
// is required at construction time and the constructor panics on any nil
// argument rather than exposing optional post-construction wiring.
func NewServer(gw *gateway.Gateway, identities *identity.Registry, dbClient *database.Client, sandboxExec gateway.SandboxRunner) *Server {
	if gw == nil {
		panic("api: gateway is required")
	}
	if identities == nil {
		panic("api: identities is required")
	}
	if dbClient == nil {
		panic("api: dbClient is required")
	}
	if sandboxExec == nil {
		panic("api: sandboxExec is required")
	}

	e := echo.New()
	s := &Server{
		echo:        e,
		gateway:     gw,
		identities:  identities,
		dbClient:    dbClient,
		sandboxExec: sandboxExec,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes (spec §6).
func (s *Server) setupRoutes() {
	// Server-wide body size limit, well above any reasonable proposal
	// envelope but a guard against multi-MB payloads.
	s.echo.Use(middleware.BodyLimit(1 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)
	s.echo.POST("/propose", s.proposeHandler)
	s.echo.POST("/approve", s.approveHandler)
	s.echo.POST("/deny", s.denyHandler)
	s.echo.POST("/execute", s.executeHandler)
	s.echo.GET("/escalations", s.escalationsHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
