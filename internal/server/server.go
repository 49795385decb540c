// Package server implements spec.md §4.G's dispatch loop: a single-
// threaded accept loop that hands each connection to the thread pool,
// whose workers decode the request, call into the shared engine handle,
// and write the reply. Grounded on the teacher's internal/network/server.go
// (accept loop shape, per-connection TCP buffer tuning, structured
// logging via internal/logger) with the protobuf request/response
// handling replaced by internal/protocol's close-terminated text framing.
package server

import (
	"errors"
	"net"

	"kvs/internal/codec"
	"kvs/internal/engine"
	"kvs/internal/logger"
	"kvs/internal/pool"
	"kvs/internal/protocol"
)

// DefaultMaxRequestBytes bounds a single request payload. Connections
// sending more than this are rejected rather than read indefinitely.
const DefaultMaxRequestBytes = 1 << 20 // 1 MiB

// Server couples a TCP listener, a worker pool, and a shared engine
// handle, per spec.md §4.G.
type Server struct {
	addr            string
	engine          *engine.SharedEngine
	pool            *pool.Pool
	maxRequestBytes int64

	listener net.Listener
}

// New constructs a Server. It does not start listening until ListenAndServe
// is called.
func New(addr string, eng *engine.SharedEngine, workers int, maxRequestBytes int64) *Server {
	if maxRequestBytes <= 0 {
		maxRequestBytes = DefaultMaxRequestBytes
	}
	return &Server{
		addr:            addr,
		engine:          eng,
		pool:            pool.New(workers),
		maxRequestBytes: maxRequestBytes,
	}
}

// ListenAndServe binds addr and runs the accept loop until the listener
// is closed (via Close). Any other accept error is logged and the loop
// keeps accepting.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	logger.Info("listening on %s", s.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("accept error: %v", err)
			continue
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetReadBuffer(65536)
			tcpConn.SetWriteBuffer(65536)
		}
		s.pool.Spawn(func() { s.handle(conn) })
	}
}

// Close stops accepting new connections and shuts down the worker pool,
// waiting for in-flight requests to finish.
func (s *Server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.pool.Shutdown()
	return err
}

// handle reads one request, dispatches it through the shared engine, and
// writes one reply, per spec.md §4.F/§4.G. It never lets a per-request
// error take down the server: I/O and decode failures are logged and the
// connection is closed.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	rec, err := protocol.ReadRequest(conn, s.maxRequestBytes)
	if err != nil {
		logger.Error("request error from %s: %v", conn.RemoteAddr(), err)
		return
	}

	switch rec.Op {
	case codec.OpSet:
		if err := s.engine.Set(rec.Key, rec.Value); err != nil {
			logger.Error("set(%q) failed: %v", rec.Key, err)
			return
		}
		protocol.WriteResponse(conn, nil)

	case codec.OpRemove:
		err := s.engine.Remove(rec.Key)
		switch {
		case engine.IsKeyNotFound(err):
			protocol.WriteResponse(conn, []byte(protocol.NotFound))
		case err != nil:
			logger.Error("remove(%q) failed: %v", rec.Key, err)
		default:
			protocol.WriteResponse(conn, nil)
		}

	case codec.OpGet:
		value, ok, err := s.engine.Get(rec.Key)
		if err != nil {
			logger.Error("get(%q) failed: %v", rec.Key, err)
			return
		}
		if !ok {
			protocol.WriteResponse(conn, []byte(protocol.NotFound))
			return
		}
		protocol.WriteResponse(conn, []byte(value))

	default:
		logger.Error("unknown operation %q from %s", rec.Op, conn.RemoteAddr())
	}
}
