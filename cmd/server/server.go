package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/nickyhof/sqlbatch/bridge"
	"github.com/nickyhof/sqlbatch/config"
)

// Server is a TCP server that exposes a SQLBatch plugin, one JSON request
// per line.
type Server struct {
	listener   net.Listener
	plugin     *bridge.Plugin
	authConfig *config.AuthConfig
	tlsEnabled bool
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewServer creates a server without authentication.
func NewServer(plugin *bridge.Plugin) *Server {
	return &Server{
		plugin: plugin,
		done:   make(chan struct{}),
	}
}

// NewServerWithAuth creates a server that requires AUTH before any action
// when authConfig is enabled.
func NewServerWithAuth(plugin *bridge.Plugin, authConfig *config.AuthConfig) *Server {
	s := NewServer(plugin)
	s.authConfig = authConfig
	return s
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	log.WithField("addr", listener.Addr().String()).Info("server listening")

	go s.acceptLoop()
	return nil
}

// StartTLS begins listening for TLS connections on the specified address.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	listener, err := tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener
	s.tlsEnabled = true

	log.WithField("addr", listener.Addr().String()).Info("TLS server listening")

	go s.acceptLoop()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) TLSEnabled() bool { return s.tlsEnabled }

func (s *Server) authRequired() bool {
	return s.authConfig != nil && s.authConfig.Enabled
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.WithError(err).Warn("accept")
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	logger := log.WithField("client", conn.RemoteAddr().String())
	logger.Debug("client connected")

	reader := bufio.NewReader(conn)
	state := &ConnectionState{}

	for {
		select {
		case <-s.done:
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				logger.WithError(err).Warn("read")
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
			logger.Debug("client disconnected")
			return
		}

		var response Response
		if strings.HasPrefix(strings.ToUpper(line), "AUTH ") {
			response = s.handleAuth(line, state)
		} else {
			response = s.handleLine(line, state, logger)
		}

		data, err := EncodeResponse(response)
		if err != nil {
			logger.WithError(err).Error("encode response")
			continue
		}

		if _, err := conn.Write(data); err != nil {
			logger.WithError(err).Warn("write")
			return
		}
	}
}

func (s *Server) handleLine(line string, state *ConnectionState, logger *log.Entry) Response {
	req, err := DecodeRequest([]byte(line))
	if err != nil {
		return Response{Status: bridge.StatusParseError, Message: "malformed request line"}
	}

	if s.authRequired() && !state.IsAuthenticated() {
		return Response{Action: req.Action, Status: bridge.StatusError, Message: "authentication required"}
	}

	if identity := state.Identity(); identity != nil {
		logger = logger.WithField("identity", identity.String())
	}
	logger.WithField("action", req.Action).Debug("request")

	return s.dispatch(req)
}

// dispatch runs one request on the shared plugin. Connections are not
// serialized here; the session registry guards the database handle, so an
// open on one connection can release a batch waiting on another.
func (s *Server) dispatch(req Request) Response {
	ctx := context.Background()
	text := req.RequestText()

	switch req.Action {
	case ActionOpen:
		return fromResult(req.Action, s.plugin.Open(ctx, text))
	case ActionClose:
		return fromResult(req.Action, s.plugin.Close(ctx, text))
	case ActionExecuteSqlBatch:
		return fromResult(req.Action, s.plugin.ExecuteSqlBatch(ctx, text))
	case ActionBackup:
		return fromResult(req.Action, s.plugin.Backup(ctx, text))
	default:
		return Response{
			Action:  req.Action,
			Status:  bridge.StatusParseError,
			Message: fmt.Sprintf("unknown action %q", req.Action),
		}
	}
}
