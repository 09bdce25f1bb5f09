package node

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"net/http"
	"time"
)

// Server is the node's plain-routed HTTP surface (spec §6), grounded on the
// teacher's rpc.Server: a synchronous listener bind so startup failures
// surface immediately, background Serve, and a graceful Shutdown.
type Server struct {
	state  *ServerState
	addr   string
	srv    *http.Server
	ln     net.Listener
	tlsCfg *tls.Config
}

// NewServer creates a Server for state on addr. A nil tlsCfg serves plain
// HTTP; otherwise every connection requires a peer certificate the way
// the teacher's P2P listener does for mTLS (config.TLSConfig).
func NewServer(addr string, state *ServerState, tlsCfg *tls.Config) *Server {
	mux := http.NewServeMux()
	state.Routes(mux)
	return &Server{
		state:  state,
		addr:   addr,
		tlsCfg: tlsCfg,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start binds the listener synchronously, then serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	if s.tlsCfg != nil {
		ln = tls.NewListener(ln, s.tlsCfg)
	}
	s.ln = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[node] server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listener's bound address. Useful when started on ":0".
func (s *Server) Addr() net.Addr {
	if s.ln != nil {
		return s.ln.Addr()
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
