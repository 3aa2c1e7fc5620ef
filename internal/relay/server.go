// Package relay implements a small JSON-over-TCP record relay: the concrete
// store a TCP transport endpoint talks to. Each connection carries one
// request/response exchange.
package relay

import (
	"encoding/json"
	"net"

	"voucher-node/internal/logger"
	"voucher-node/internal/transport"
)

// Server accepts relay connections and serves publish/query requests from its
// store.
type Server struct {
	store *Store
	ln    net.Listener
}

// NewServer creates a relay server with an empty store.
func NewServer() *Server {
	return &Server{store: NewStore()}
}

// Store exposes the backing store, mainly for persistence hooks and tests.
func (s *Server) Store() *Store { return s.store }

// Listen binds the listener and starts serving in the background. It returns
// the bound address, which matters when the caller asked for port 0.
func (s *Server) Listen(listenAddr string) (string, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return "", err
	}
	s.ln = ln
	logger.Log.Infof("relay listening on %s", ln.Addr())
	go s.acceptLoop()
	return ln.Addr().String(), nil
}

// Close stops accepting connections.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			// Listener closed; stop quietly.
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	var req transport.WireRequest
	if err := decoder.Decode(&req); err != nil {
		logger.Log.Errorf("failed to decode relay request from %s: %v", conn.RemoteAddr(), err)
		return
	}

	var resp transport.WireResponse
	switch req.Op {
	case transport.OpPublish:
		if req.Record == nil {
			resp = transport.WireResponse{Error: "publish without a record"}
			break
		}
		s.store.Put(*req.Record)
		logger.Log.Debugf("stored record %s kind=%s key=%s", req.Record.ID, req.Record.Kind, req.Record.Key)
		resp = transport.WireResponse{OK: true}
	case transport.OpQuery:
		if req.Selector == nil {
			resp = transport.WireResponse{Error: "query without a selector"}
			break
		}
		resp = transport.WireResponse{OK: true, Records: s.store.Select(*req.Selector)}
	default:
		logger.Log.Errorf("unknown relay op received: %s", req.Op)
		resp = transport.WireResponse{Error: "unknown op " + req.Op}
	}

	if err := json.NewEncoder(conn).Encode(&resp); err != nil {
		logger.Log.Errorf("failed to send relay response to %s: %v", conn.RemoteAddr(), err)
	}
}
