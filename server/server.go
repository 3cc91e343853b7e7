// Package server implements the network interface: TCP, each message a
// 4-byte big-endian length prefix followed by a UTF-8 JSON payload.
// Requests carry {query}; responses carry {success, message, data}.
package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/engine"
	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/sql/condition"
)

// DefaultPort is the listener's default TCP port.
const DefaultPort = 5433

// maxMessageBytes bounds a single framed payload; anything larger is a
// protocol violation and drops the connection.
const maxMessageBytes = 16 * 1024 * 1024

// Request is the client's framed JSON payload.
type Request struct {
	Query string `json:"query"`
}

// Response is the server's framed JSON payload. Data is null for
// statements that return no rows.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    []condition.Row `json:"data"`
}

// Config parameterizes a Server.
type Config struct {
	Address string // host:port; empty binds ":5433"
	Logger  *logrus.Logger
}

// Server accepts client sessions and runs each one's statements through
// the engine. Sessions run in parallel; the engine's concurrency
// manager is the only global synchronization point.
type Server struct {
	cfg      Config
	eng      *engine.Engine
	listener net.Listener
	log      *logrus.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New constructs a Server over eng.
func New(cfg Config, eng *engine.Engine) *Server {
	if cfg.Address == "" {
		cfg.Address = ":5433"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Server{cfg: cfg, eng: eng, log: cfg.Logger}
}

// Addr returns the bound listener address, valid after Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and serves until ctx is cancelled or Close is
// called.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return errors.Wrapf(err, "binding %s", s.cfg.Address)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.log.WithField("addr", l.Addr().String()).Info("server: listening")

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.wg.Wait()
				return nil
			}
			return errors.Wrap(err, "accepting connection")
		}
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

// Close stops accepting new connections and returns without waiting for
// in-flight sessions; Start returns only once those sessions finish.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		return l.Close()
	}
	return nil
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sessionID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{
		"session": sessionID,
		"remote":  conn.RemoteAddr().String(),
	})
	log.Info("server: session opened")
	defer log.Info("server: session closed")

	for {
		req, err := ReadMessage[Request](conn)
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Warn("server: dropping session on bad frame")
			}
			return
		}
		res := s.eng.Query(ctx, req.Query)
		resp := Response{Success: res.Success, Message: res.Message, Data: res.Data}
		if err := WriteMessage(conn, resp); err != nil {
			log.WithError(err).Warn("server: write failed")
			return
		}
	}
}

// ReadMessage reads one length-prefixed JSON message from r.
func ReadMessage[T any](r io.Reader) (T, error) {
	var zero T
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return zero, io.EOF
		}
		return zero, errors.Wrap(err, "reading frame header")
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || length > maxMessageBytes {
		return zero, errors.Errorf("invalid frame length %d", length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return zero, errors.Wrap(err, "reading frame payload")
	}
	var msg T
	if err := json.Unmarshal(payload, &msg); err != nil {
		return zero, errors.Wrap(err, "decoding frame payload")
	}
	return msg, nil
}

// WriteMessage writes one length-prefixed JSON message to w.
func WriteMessage(w io.Writer, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding frame payload")
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "writing frame header")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "writing frame payload")
	}
	return nil
}
