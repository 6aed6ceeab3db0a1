package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bonfire-networks/bonfire-notify/auth"
	"github.com/bonfire-networks/bonfire-notify/component"
	"github.com/bonfire-networks/bonfire-notify/errors"
)

// ServerConfig holds the streaming server's settings.
type ServerConfig struct {
	Host string
	Port int

	// Path is the websocket endpoint. The SSE fallback mounts at Path/sse
	// and a liveness probe at Path/health.
	Path string

	ReadBufferSize  int
	WriteBufferSize int

	WriteTimeout time.Duration
	PongTimeout  time.Duration
	PingInterval time.Duration

	// MaxMessageSize bounds client text frames. Subscribe requests are
	// small; anything larger is a misbehaving client.
	MaxMessageSize int64

	Connection ConnectionConfig
}

func (c *ServerConfig) applyDefaults() {
	if c.Path == "" {
		c.Path = "/api/v1/streaming"
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 4096
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = 4096
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = (c.PongTimeout * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
}

// clientState tracks one upgraded websocket connection for shutdown.
type clientState struct {
	conn    *websocket.Conn
	cancel  context.CancelFunc
	writeMu sync.Mutex
}

// Server accepts streaming connections, authenticates them, and runs one
// connection actor per client. It implements component.LifecycleComponent.
type Server struct {
	config    ServerConfig
	authority auth.Authority
	resolver  *Resolver
	bus       Bus
	logger    *slog.Logger
	metrics   *Metrics

	upgrader websocket.Upgrader
	server   *http.Server
	sse      *SSEHandler

	clients   map[string]*clientState
	clientsMu sync.RWMutex

	state      atomic.Int32 // stores component.State
	startTime  time.Time
	errorCount atomic.Int64
	lastError  atomic.Value // stores string
}

// NewServer creates the streaming server.
func NewServer(config ServerConfig, authority auth.Authority, resolver *Resolver, bus Bus, logger *slog.Logger, metrics *Metrics) (*Server, error) {
	if authority == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("authority is required"), "Server", "NewServer", "validate config")
	}
	if resolver == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("resolver is required"), "Server", "NewServer", "validate config")
	}
	if bus == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("bus is required"), "Server", "NewServer", "validate config")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, errors.WrapInvalid(fmt.Errorf("invalid port %d", config.Port), "Server", "NewServer", "validate config")
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.applyDefaults()

	s := &Server{
		config:    config,
		authority: authority,
		resolver:  resolver,
		bus:       bus,
		logger:    logger,
		metrics:   metrics,
		clients:   make(map[string]*clientState),
	}
	s.sse = NewSSEHandler(authority, resolver, bus, logger, metrics, config.Connection.HeartbeatInterval)
	s.state.Store(int32(component.StateCreated))

	return s, nil
}

// State returns the server's lifecycle state.
func (s *Server) State() component.State {
	return component.State(s.state.Load())
}

// Initialize prepares the server for Start.
func (s *Server) Initialize() error {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  s.config.ReadBufferSize,
		WriteBufferSize: s.config.WriteBufferSize,
		// Bearer auth happens before the upgrade; browser clients connect
		// cross-origin through the instance frontend.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleStream)
	mux.HandleFunc(s.config.Path+"/sse", s.sse.ServeHTTP)
	mux.HandleFunc(s.config.Path+"/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.state.Store(int32(component.StateInitialized))
	return nil
}

// Start runs the listener until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.server == nil {
		return errors.WrapFatal(fmt.Errorf("not initialized"), "Server", "Start", "check state")
	}
	if !s.state.CompareAndSwap(int32(component.StateInitialized), int32(component.StateStarted)) {
		return errors.WrapInvalid(
			fmt.Errorf("cannot start from state %s", s.State()),
			"Server", "Start", "check state",
		)
	}
	s.startTime = time.Now()

	// The base context for every connection actor; cancelled on shutdown.
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Streaming server listening",
			"addr", s.server.Addr,
			"path", s.config.Path,
		)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.state.Store(int32(component.StateFailed))
		return errors.WrapFatal(err, "Server", "Start", "listen")
	case <-ctx.Done():
		return nil
	}
}

// Stop gracefully shuts the server down within the timeout.
func (s *Server) Stop(timeout time.Duration) error {
	if !s.state.CompareAndSwap(int32(component.StateStarted), int32(component.StateStopped)) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.cancel()
	}
	s.clientsMu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shutdown listener")
	}
	return nil
}

// handleStream authenticates and upgrades one websocket connection, then
// runs its actor until disconnect or shutdown.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	principal, cred, err := auth.Authenticate(r.Context(), r, s.authority)
	if err != nil {
		s.metrics.authFailure()
		s.logger.Debug("Connection rejected", "reason", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Echo the token subprotocol back or the client-side handshake fails.
	var responseHeader http.Header
	if cred.Source == auth.SourceSubprotocol {
		responseHeader = http.Header{"Sec-WebSocket-Protocol": {cred.Token}}
	}

	wsConn, err := s.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		s.recordError(err)
		s.logger.Debug("Upgrade failed", "error", err)
		return
	}

	connCfg := s.config.Connection
	query := r.URL.Query()
	connCfg.InitialStream = query.Get("stream")
	connCfg.InitialTag = query.Get("tag")
	connCfg.InitialList = query.Get("list")

	clientID := uuid.NewString()
	ctx, cancel := context.WithCancel(r.Context())
	client := &clientState{conn: wsConn, cancel: cancel}

	pusher := &wsPusher{client: client, timeout: s.config.WriteTimeout}

	conn, err := NewConnection(principal, s.resolver, s.bus, pusher, connCfg, s.logger, s.metrics)
	if err != nil {
		s.recordError(err)
		cancel()
		_ = wsConn.Close()
		return
	}

	s.clientsMu.Lock()
	s.clients[clientID] = client
	s.clientsMu.Unlock()
	s.metrics.connectionOpened()
	s.logger.Info("Client connected",
		"client", clientID,
		"principal", principal.ID,
		"source", cred.Source.String(),
	)

	go s.readLoop(ctx, cancel, wsConn, conn)
	go s.pingLoop(ctx, wsConn)

	conn.Run(ctx)

	cancel()
	_ = wsConn.Close()
	s.clientsMu.Lock()
	delete(s.clients, clientID)
	s.clientsMu.Unlock()
	s.metrics.connectionClosed()
	s.logger.Info("Client disconnected", "client", clientID)
}

// readLoop pumps client text frames into the actor and keeps the read
// deadline fresh via pongs. Any read error ends the connection.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, wsConn *websocket.Conn, conn *Connection) {
	defer cancel()

	wsConn.SetReadLimit(s.config.MaxMessageSize)
	_ = wsConn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	})

	for {
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !conn.Deliver(ctx, data) {
			return
		}
	}
}

// pingLoop keeps the transport-level keepalive going. Liveness is covered
// here, not by application frames.
func (s *Server) pingLoop(ctx context.Context, wsConn *websocket.Conn) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := wsConn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *Server) recordError(err error) {
	s.errorCount.Add(1)
	s.lastError.Store(err.Error())
}

// wsPusher writes frames under the client's write mutex with a deadline.
type wsPusher struct {
	client  *clientState
	timeout time.Duration
}

func (p *wsPusher) Push(frame []byte) error {
	p.client.writeMu.Lock()
	defer p.client.writeMu.Unlock()

	if err := p.client.conn.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
		return err
	}
	return p.client.conn.WriteMessage(websocket.TextMessage, frame)
}

// Meta returns component metadata.
func (s *Server) Meta() component.Metadata {
	return component.Metadata{
		Name:        "streaming-server",
		Type:        "gateway",
		Description: "Real-time notification streaming over websocket and SSE",
		Version:     "1.0.0",
	}
}

// InputPorts describes the listener and the bus topics consumed.
func (s *Server) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "listener",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: "HTTP listener for websocket upgrades and SSE",
			Config: component.NetworkPort{
				Protocol: "tcp",
				Host:     s.config.Host,
				Port:     s.config.Port,
			},
		},
		{
			Name:        "events",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: "Domain events on per-subscription bus topics",
		},
	}
}

// OutputPorts describes the client-facing wire protocol.
func (s *Server) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "frames",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "Typed wire frames pushed to connected clients",
		},
	}
}

// Health reports listener health.
func (s *Server) Health() component.HealthStatus {
	status := component.HealthStatus{
		Healthy:    s.State() == component.StateStarted,
		LastCheck:  time.Now(),
		ErrorCount: int(s.errorCount.Load()),
	}
	if last, ok := s.lastError.Load().(string); ok {
		status.LastError = last
	}
	if !s.startTime.IsZero() {
		status.Uptime = time.Since(s.startTime)
	}
	return status
}

// DataFlow reports flow metrics. Per-frame rates live in prometheus; this
// surface only reports activity.
func (s *Server) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		LastActivity: time.Now(),
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
