package engine

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/neutron/internal/blobstore"
	"github.com/gosuda/neutron/internal/cryptocore"
	"github.com/gosuda/neutron/internal/presence"
	"github.com/gosuda/neutron/internal/repository"
	"github.com/gosuda/neutron/internal/worker"
)

// Server owns every process-wide collaborator the Connection Engine
// dispatches into: the presence registry, the repository, the blob
// store, the worker pool bookkeeping, and the server's own identity and
// display strings (§2 data flow, §4.2, §4.3).
type Server struct {
	ctx context.Context

	identity *cryptocore.LongTermIdentity
	name     string
	motd     string

	registry *presence.Registry
	repo     *repository.Repository
	blobs    *blobstore.Store
	pool     *worker.Pool

	listener net.Listener
}

// Config bundles the collaborators New needs, so callers (cmd/neutrond)
// assemble them once at startup.
type Config struct {
	Identity   *cryptocore.LongTermIdentity
	ServerName string
	Motd       string
	Registry   *presence.Registry
	Repo       *repository.Repository
	Blobs      *blobstore.Store
	Pool       *worker.Pool
}

// New builds a Server bound to the given collaborators.
func New(ctx context.Context, cfg Config) *Server {
	return &Server{
		ctx:      ctx,
		identity: cfg.Identity,
		name:     cfg.ServerName,
		motd:     cfg.Motd,
		registry: cfg.Registry,
		repo:     cfg.Repo,
		blobs:    cfg.Blobs,
		pool:     cfg.Pool,
	}
}

// Serve accepts connections on addr until ctx is canceled.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("engine: listen %s: %w", addr, err)
	}
	s.listener = ln
	defer ln.Close()

	go func() {
		<-s.ctx.Done()
		ln.Close()
	}()

	log.Info().Str("addr", addr).Msg("neutron server listening")

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return nil
			default:
				return fmt.Errorf("engine: accept: %w", err)
			}
		}
		w := s.pool.Acquire()
		go s.handleConn(nc, w)
	}
}

func (s *Server) handleConn(nc net.Conn, w *worker.Worker) {
	defer s.pool.Release(w)
	conn := newConnection(s, nc)
	log.Debug().Str("remote", nc.RemoteAddr().String()).Int("worker", w.ID()).Msg("connection accepted")
	conn.run()
}
