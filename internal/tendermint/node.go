package tendermint

import (
	"context"
	"fmt"
	"os"
	"strings"

	abciserver "github.com/tendermint/tendermint/abci/server"
	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/service"
	"go.uber.org/zap"
)

// Config holds configuration for the ABCI server and Tendermint connection.
type Config struct {
	// TendermintHome is the directory for Tendermint data and config
	TendermintHome string

	// SocketAddress is where Tendermint connects, e.g. "unix://oasis.sock"
	// or "tcp://127.0.0.1:26658".
	SocketAddress string

	// Transport is "socket" or "grpc".
	Transport string
}

// ABCIServer serves an ABCI application to a separate Tendermint process.
type ABCIServer struct {
	server service.Service
	socket string
	log    *zap.Logger
}

// NewABCIServer creates the server. It is not started; call Start or Run.
func NewABCIServer(app abci.Application, config *Config, log *zap.Logger) (*ABCIServer, error) {
	if app == nil {
		return nil, fmt.Errorf("ABCI application cannot be nil")
	}
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.SocketAddress == "" {
		return nil, fmt.Errorf("socket address cannot be empty")
	}
	transport := config.Transport
	if transport == "" {
		transport = "socket"
	}

	server, err := abciserver.NewServer(config.SocketAddress, transport, app)
	if err != nil {
		return nil, fmt.Errorf("create ABCI server: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ABCIServer{server: server, socket: config.SocketAddress, log: log.Named("abci-server")}, nil
}

// Start begins listening for Tendermint connections.
func (s *ABCIServer) Start() error {
	if err := s.server.Start(); err != nil {
		return fmt.Errorf("failed to start ABCI server: %w", err)
	}
	s.log.Info("ABCI server listening", zap.String("address", s.socket))
	return nil
}

// Run starts the server and stops it when ctx is done.
func (s *ABCIServer) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// Stop shuts down the server and removes a unix socket file.
func (s *ABCIServer) Stop() error {
	if s.server.IsRunning() {
		if err := s.server.Stop(); err != nil {
			return fmt.Errorf("failed to stop ABCI server: %w", err)
		}
	}

	if path, ok := strings.CutPrefix(s.socket, "unix://"); ok {
		if _, err := os.Stat(path); err == nil {
			os.Remove(path)
		}
	}
	s.log.Info("ABCI server stopped")
	return nil
}

// IsRunning returns true if the ABCI server is currently running.
func (s *ABCIServer) IsRunning() bool {
	return s.server.IsRunning()
}

// SocketPath returns the address the server is listening on.
func (s *ABCIServer) SocketPath() string {
	return s.socket
}
