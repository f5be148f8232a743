// Package server implements the listener loop from spec.md §4.3: bind,
// listen, a short-timeout readiness poll so shutdown is observed
// promptly, accept, wrap, and enqueue one connection handler per task
// onto the worker pool.
//
// Grounded on original_source/src/server.cpp's accept loop (poll with a
// timeout, check an atomic running flag, accept on ready) and the
// teacher's pkg/surge/pool usage pattern in shockwave/pkg/shockwave/server;
// unlike shockwave's server (which hands connections to net/http-style
// Handler callbacks), this one threads raw sockets into pkg/surge/conn.
package server

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/wattlab/surge/internal/logx"
	"github.com/wattlab/surge/pkg/surge"
	"github.com/wattlab/surge/pkg/surge/conn"
	"github.com/wattlab/surge/pkg/surge/pool"
	"github.com/wattlab/surge/pkg/surge/socket"
)

// Dispatcher is satisfied by *router.Router.
type Dispatcher interface {
	Dispatch(req *surge.Request, jsonBody gjson.Result) *surge.Response
}

// Server owns the listening socket and the worker pool that services
// accepted connections.
type Server struct {
	cfg      surge.Config
	router   Dispatcher
	log      *logx.Logger
	listener *socket.Listener
	pool     *pool.Pool
	running  atomic.Bool
}

// New constructs a Server bound to no socket yet; call ListenAndServe to
// bind and run the accept loop.
func New(cfg surge.Config, router Dispatcher, logger *logx.Logger) *Server {
	if logger == nil {
		logger = logx.Default
	}
	return &Server{cfg: cfg, router: router, log: logger}
}

// resolveWorkers applies spec.md §5's "default max(4, 2 * hardware_
// concurrency)" when Config.Workers is not positive.
func resolveWorkers(configured int) int {
	if configured > 0 {
		return configured
	}
	n := 2 * runtime.GOMAXPROCS(0)
	if n < 4 {
		n = 4
	}
	return n
}

// ListenAndServe binds the configured address, then runs the accept
// loop until Stop is called. Bind failures are fatal and returned to the
// caller; everything after bind succeeds is handled internally (spec.md
// §7 "bind failures are fatal").
func (s *Server) ListenAndServe() error {
	ln, err := socket.Listen(s.cfg.Addr(), s.cfg.Backlog)
	if err != nil {
		return err
	}
	s.listener = ln
	s.pool = pool.New(resolveWorkers(s.cfg.Workers), s.log)
	s.running.Store(true)

	s.log.Info("listening", logx.Field{Key: "addr", Value: s.cfg.Addr()})
	s.acceptLoop()
	return nil
}

// acceptLoop implements spec.md §4.3's three-step poll/accept cycle: a
// bounded-timeout Accept stands in for poll(2) + accept(2), and the
// running flag is checked every cycle so Stop takes effect within one
// PollInterval.
func (s *Server) acceptLoop() {
	for s.running.Load() {
		c, err := s.listener.Accept(s.cfg.PollInterval)
		if err != nil {
			if errors.Is(err, socket.ErrTimeout) {
				continue
			}
			if !s.running.Load() {
				return
			}
			s.log.Warn("accept failed", logx.Field{Key: "error", Value: err.Error()})
			continue
		}

		c.Tune()
		handler := conn.New(c, s.router, s.cfg, s.log)
		s.pool.Enqueue(func() {
			handler.Run()
		})
	}
}

// Stop flips the running flag (observed within one poll cycle per
// spec.md §4.3), closes the listening socket, and stops the worker pool.
// Connections already being served are not told about Stop: each one
// keeps serving requests until it closes (client close, a non-keep-alive
// response, MaxRequests, or a failed read or write), and queued ones
// are still run before the workers exit.
func (s *Server) Stop() {
	s.running.Store(false)
	if s.listener != nil {
		s.listener.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
}

// Wait blocks until every worker goroutine has exited, for callers that
// need to join the pool after Stop.
func (s *Server) Wait() {
	if s.pool != nil {
		s.pool.Wait()
	}
}
