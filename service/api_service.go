package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/vocdoni/electiond/api"
	"github.com/vocdoni/electiond/log"
)

// shutdownTimeout bounds the wait for in-flight requests on Stop.
const shutdownTimeout = 30 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	conf   *api.APIConfig
	host   string
	port   int
	mu     sync.Mutex
	cancel context.CancelFunc
	server *http.Server
	addr   net.Addr
}

// NewAPI creates a new APIService instance. Port 0 lets the OS choose.
func NewAPI(conf *api.APIConfig, host string, port int) *APIService {
	return &APIService{
		conf: conf,
		host: host,
		port: port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start. The server is stopped
// when ctx is canceled or Stop is called.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	a, err := api.New(as.conf)
	if err != nil {
		return fmt.Errorf("failed to create API: %w", err)
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(as.host, strconv.Itoa(as.port)))
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	server := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, cancel := context.WithCancel(ctx)
	as.cancel = cancel
	as.server = server
	as.addr = ln.Addr()

	log.Infow("starting API server", "address", ln.Addr().String())
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdown(server)
	}()
	return nil
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warnw("API server shutdown", "error", err.Error())
	}
}

// Stop halts the API server, waiting for in-flight requests.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel == nil {
		return
	}
	as.cancel()
	shutdown(as.server)
	as.cancel = nil
	as.server = nil
	as.addr = nil
}

// Addr returns the address the server listens on, or nil if it is not
// running.
func (as *APIService) Addr() net.Addr {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.addr
}
