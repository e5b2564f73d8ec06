package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/ssohub/internal/observability/logger"
)

// Server envuelve http.Server con timeouts razonables y shutdown ordenado.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start bloquea hasta que el servidor cierre. http.ErrServerClosed (shutdown
// ordenado) no es un error para el caller.
func (s *Server) Start() error {
	logger.Named("http").Info("escuchando", logger.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drena las conexiones en curso dentro del deadline del contexto.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
