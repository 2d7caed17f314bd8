package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stugahq/stuga-core/internal/diag"
)

// credentialFetchTimeout bounds the refresh-token exchange performed before
// sending credentials to the hub.
const credentialFetchTimeout = 15 * time.Second

// Logger defines the logging interface used by the Client.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DiagnosticFunc classifies a failed first connection. It is invoked at most
// once per process, before the normal reconnect cycle proceeds.
type DiagnosticFunc func(ctx context.Context, wsURL, token string) diag.Report

// Options configures a Client. Zero values fall back to package defaults;
// URL and Token may also be supplied later via Configure.
type Options struct {
	URL      string
	Token    string
	UseOAuth bool

	// ReconnectDelay is the fixed wait before a reconnect attempt.
	ReconnectDelay time.Duration

	// RequestTimeout is the default timeout for Request and registered
	// callbacks.
	RequestTimeout time.Duration

	// MaxMessageSize caps inbound frames in bytes. Zero means unlimited.
	MaxMessageSize int

	// Dialer opens the socket; defaults to DefaultDialer.
	Dialer Dialer

	// Credentials supplies fresh tokens for refresh-token auth. Required
	// when UseOAuth is true.
	Credentials CredentialSource

	// Diagnose classifies the first connection failure; nil disables the
	// probe.
	Diagnose DiagnosticFunc

	// Logger receives structured log output; defaults to a no-op logger.
	Logger Logger
}

// defaultReconnectDelay applies when Options.ReconnectDelay is zero.
const defaultReconnectDelay = 5 * time.Second

// Client manages exactly one logical connection to the hub.
//
// Lifecycle: Configure stores connection parameters, Connect dials and
// starts the read loop, the hub initiates the auth handshake, and on success
// the authenticated handler fires (the registry manager hooks its bulk load
// there). Any close schedules a single fixed-delay reconnect unless
// Disconnect was requested.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
type Client struct {
	dialer         Dialer
	logger         Logger
	creds          CredentialSource
	diagnose       DiagnosticFunc
	reconnectDelay time.Duration
	requestTimeout time.Duration
	maxMessageSize int

	mu             sync.Mutex
	url            string
	token          string
	useOAuth       bool
	conn           Conn
	dialing        bool
	authenticated  bool
	manualClose    bool
	firstAttempt   bool
	diagRan        bool
	reconnectTimer *time.Timer
	lastReport     *diag.Report
	nextID         int64

	pending *pendingTable

	connSubs *Subscribers[bool]
	errSubs  *Subscribers[diag.Report]

	// Handlers wired by the owning module. Set before Connect; not
	// synchronised afterwards.
	onAuthenticated func()
	onResult        func(frame Frame)
	onStateChanged  func(entityID string, newState json.RawMessage)
}

// New creates a Client from opts. It does not connect.
func New(opts Options) *Client {
	c := &Client{
		dialer:         opts.Dialer,
		logger:         opts.Logger,
		creds:          opts.Credentials,
		diagnose:       opts.Diagnose,
		reconnectDelay: opts.ReconnectDelay,
		requestTimeout: opts.RequestTimeout,
		maxMessageSize: opts.MaxMessageSize,
		url:            opts.URL,
		token:          opts.Token,
		useOAuth:       opts.UseOAuth,
		firstAttempt:   true,
		pending:        newPendingTable(),
		connSubs:       NewSubscribers[bool](),
		errSubs:        NewSubscribers[diag.Report](),
	}

	if c.dialer == nil {
		c.dialer = DefaultDialer
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	if c.reconnectDelay <= 0 {
		c.reconnectDelay = defaultReconnectDelay
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}

	return c
}

// SetAuthenticatedHandler registers the callback invoked after a successful
// auth handshake.
func (c *Client) SetAuthenticatedHandler(fn func()) {
	c.onAuthenticated = fn
}

// SetResultHandler registers the callback for result frames that matched no
// pending request (registry bulk-load responses).
func (c *Client) SetResultHandler(fn func(frame Frame)) {
	c.onResult = fn
}

// SetStateChangedHandler registers the callback for state_changed events.
// A nil newState means the entity was removed from the hub.
func (c *Client) SetStateChangedHandler(fn func(entityID string, newState json.RawMessage)) {
	c.onStateChanged = fn
}

// Configure stores connection parameters. It does not connect.
func (c *Client) Configure(url, token string, useOAuth bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = url
	c.token = token
	c.useOAuth = useOAuth
}

// Connect opens the socket and starts the read loop. It is a no-op when a
// connection is already open or a dial is in flight. On failure the
// first-attempt diagnostic probe may run, and a reconnect is scheduled
// either way.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.conn != nil || c.dialing {
		c.mu.Unlock()
		return nil
	}
	if c.url == "" {
		c.mu.Unlock()
		return ErrNotConfigured
	}
	url := c.url
	c.manualClose = false
	c.dialing = true
	c.mu.Unlock()

	conn, err := c.dialer(url, c.maxMessageSize)

	c.mu.Lock()
	c.dialing = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("hub connection failed", "url", url, "error", err)
		c.handleConnectFailure()
		return fmt.Errorf("connecting to hub: %w", err)
	}
	// Disconnect may have been requested while the dial was in flight.
	if c.manualClose {
		c.mu.Unlock()
		if closeErr := conn.Close(); closeErr != nil {
			c.logger.Debug("error closing socket", "error", closeErr)
		}
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("hub socket open", "url", url)

	// The hub speaks first: nothing is sent until auth_required arrives.
	go c.readLoop(conn)
	return nil
}

// Disconnect tears down the connection: clears any pending reconnect timer,
// fails all pending callbacks with a disconnected error, closes the socket,
// and clears the authenticated flag. No reconnect follows.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manualClose = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	wasAuthed := c.authenticated
	c.authenticated = false
	c.mu.Unlock()

	c.pending.Clear()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug("error closing socket", "error", err)
		}
	}

	if wasAuthed {
		c.connSubs.Notify(false)
	}
	c.logger.Info("hub disconnected")
}

// IsConnected reports whether the socket is currently open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// IsAuthenticated reports whether the auth handshake has completed on the
// current connection.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// LastDiagnostic returns the most recent probe report, or nil if none ran.
func (c *Client) LastDiagnostic() *diag.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastReport == nil {
		return nil
	}
	report := *c.lastReport
	return &report
}

// NextMessageID returns a monotonically increasing request id, starting at
// 1, unique for the lifetime of the process.
func (c *Client) NextMessageID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

// OnConnection subscribes to authenticated-state changes. The current state
// is replayed synchronously to the new subscriber before this returns. The
// returned handle removes the subscription via OffConnection.
func (c *Client) OnConnection(fn func(authenticated bool)) string {
	id := c.connSubs.Add(fn)
	fn(c.IsAuthenticated())
	return id
}

// OffConnection removes a connection subscriber.
func (c *Client) OffConnection(id string) {
	c.connSubs.Remove(id)
}

// OnConnectionError subscribes to classified connection-failure reports.
func (c *Client) OnConnectionError(fn func(diag.Report)) string {
	return c.errSubs.Add(fn)
}

// OffConnectionError removes a connection-error subscriber.
func (c *Client) OffConnectionError(id string) {
	c.errSubs.Remove(id)
}

// Send transmits a request frame if the socket is currently open and
// silently drops it otherwise. Callers relying on delivery must register a
// callback; its timeout converts a dropped send into a timeout error.
func (c *Client) Send(id int64, msgType string, fields map[string]any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Debug("send dropped, socket closed", "type", msgType, "id", id)
		return
	}

	data, err := json.Marshal(command(id, msgType, fields))
	if err != nil {
		c.logger.Error("failed to marshal request", "type", msgType, "error", err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		c.logger.Warn("socket write failed", "type", msgType, "error", err)
	}
}

// RegisterCallback stores cb for the given request id with the client's
// default timeout.
func (c *Client) RegisterCallback(id int64, cb ResultCallback) {
	c.pending.Register(id, cb, c.requestTimeout)
}

// RegisterCallbackTimeout stores cb with an explicit timeout.
func (c *Client) RegisterCallbackTimeout(id int64, cb ResultCallback, timeout time.Duration) {
	c.pending.Register(id, cb, timeout)
}

// PendingCount returns the number of in-flight requests.
func (c *Client) PendingCount() int {
	return c.pending.Len()
}

// Request performs one RPC round trip: allocates an id, registers a
// callback, sends the frame, and blocks until exactly one of result,
// timeout, or disconnect flush resolves it, or ctx is done.
func (c *Client) Request(ctx context.Context, msgType string, fields map[string]any) (json.RawMessage, error) {
	type outcome struct {
		success bool
		result  json.RawMessage
		rpcErr  *RPCError
	}

	id := c.NextMessageID()
	ch := make(chan outcome, 1)
	c.RegisterCallback(id, func(success bool, result json.RawMessage, rpcErr *RPCError) {
		ch <- outcome{success: success, result: result, rpcErr: rpcErr}
	})

	c.Send(id, msgType, fields)

	select {
	case out := <-ch:
		if !out.success {
			if out.rpcErr != nil {
				return nil, out.rpcErr
			}
			return nil, &RPCError{Code: "unknown", Message: "request failed"}
		}
		return out.result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("awaiting hub response: %w", ctx.Err())
	}
}

// readLoop consumes frames from one connection until it fails, then runs
// close handling. There is exactly one readLoop per open socket.
func (c *Client) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("discarding malformed frame", "error", err)
			continue
		}

		c.dispatch(frame)
	}
}

// dispatch routes one inbound frame.
func (c *Client) dispatch(frame Frame) {
	switch frame.Type {
	case TypeAuthRequired:
		c.authenticate()

	case TypeAuthOK:
		c.handleAuthOK()

	case TypeAuthInvalid:
		c.handleAuthInvalid()

	case TypeResult:
		matched := c.pending.Resolve(frame.ID, frame.Ok(), frame.Result, frame.Error)
		if !matched && c.onResult != nil {
			c.onResult(frame)
		}

	case TypeEvent:
		if frame.Event != nil && frame.Event.EventType == EventStateChanged {
			if c.onStateChanged != nil {
				c.onStateChanged(frame.Event.Data.EntityID, normaliseNull(frame.Event.Data.NewState))
			}
		}

	default:
		c.logger.Debug("ignoring unknown frame type", "type", frame.Type)
	}
}

// authenticate answers the hub's auth_required challenge. For refresh-token
// auth the three credential outcomes are treated distinctly: valid proceeds,
// network-error aborts this attempt keeping stored credentials, auth-error
// aborts and clears them.
func (c *Client) authenticate() {
	c.mu.Lock()
	token := c.token
	useOAuth := c.useOAuth
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}

	if useOAuth && c.creds != nil {
		ctx, cancel := context.WithTimeout(context.Background(), credentialFetchTimeout)
		creds := c.creds.Fresh(ctx)
		cancel()

		switch creds.Status {
		case CredentialsValid:
			token = creds.Token

		case CredentialsNetworkError:
			// Transient; abort this attempt, the reconnect cycle retries.
			c.logger.Warn("token refresh failed, aborting connection attempt")
			conn.Close() //nolint:errcheck // read loop handles the close
			return

		case CredentialsAuthError, CredentialsNone:
			c.logger.Error("credentials rejected or missing, clearing", "status", creds.Status)
			if creds.Status == CredentialsAuthError {
				if err := c.creds.Clear(); err != nil {
					c.logger.Error("failed to clear credentials", "error", err)
				}
			}
			c.errSubs.Notify(diag.AuthRejectedReport())
			c.Disconnect()
			return
		}
	}

	msg := authRequest{
		ID:          c.NextMessageID(),
		Type:        TypeAuth,
		AccessToken: token,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal auth request", "error", err)
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		c.logger.Warn("auth write failed", "error", err)
	}
}

func (c *Client) handleAuthOK() {
	c.mu.Lock()
	c.authenticated = true
	c.firstAttempt = false
	c.mu.Unlock()

	c.logger.Info("hub authenticated")
	c.connSubs.Notify(true)

	if c.onAuthenticated != nil {
		c.onAuthenticated()
	}
}

// handleAuthInvalid processes a permanent auth failure: credentials are
// cleared, the connection is torn down without a reconnect, and the failure
// is surfaced to error subscribers so the consumer can force
// re-authentication.
func (c *Client) handleAuthInvalid() {
	c.logger.Error("hub rejected credentials")

	if c.creds != nil {
		if err := c.creds.Clear(); err != nil {
			c.logger.Error("failed to clear credentials", "error", err)
		}
	}

	c.errSubs.Notify(diag.AuthRejectedReport())
	c.Disconnect()
}

// handleClose runs when the read loop fails. It marks the client
// unauthenticated, flushes pending callbacks, notifies connection
// subscribers, and schedules a reconnect unless Disconnect was requested.
func (c *Client) handleClose(conn Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// Stale close from a connection already replaced or torn down.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	wasAuthed := c.authenticated
	c.authenticated = false
	manual := c.manualClose
	c.mu.Unlock()

	c.logger.Warn("hub socket closed", "error", err)
	conn.Close() //nolint:errcheck // socket already failing

	c.pending.Clear()

	if wasAuthed {
		c.connSubs.Notify(false)
	}

	if !manual {
		c.scheduleReconnect()
	}
}

// handleConnectFailure runs when the dial itself fails: the one-shot
// first-attempt diagnostic probe fires before the normal reconnect.
func (c *Client) handleConnectFailure() {
	c.mu.Lock()
	runDiag := c.firstAttempt && !c.diagRan && c.diagnose != nil && (c.token != "" || c.creds != nil)
	if runDiag {
		c.diagRan = true
	}
	url := c.url
	token := c.token
	c.mu.Unlock()

	if runDiag {
		report := c.diagnose(context.Background(), url, token)
		c.mu.Lock()
		c.lastReport = &report
		c.mu.Unlock()
		c.logger.Warn("connection diagnostics complete",
			"https_reachable", report.HTTPSReachable,
			"websocket_reachable", report.WebsocketReachable,
			"error_type", report.ErrorType,
		)
		c.errSubs.Notify(report)
	}

	c.scheduleReconnect()
}

// scheduleReconnect arms a single fixed-delay retry. Only one reconnect
// timer may be pending at a time.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.manualClose || c.reconnectTimer != nil {
		return
	}

	c.logger.Info("scheduling reconnect", "delay", c.reconnectDelay)
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()
		if err := c.Connect(); err != nil {
			c.logger.Debug("reconnect attempt failed", "error", err)
		}
	})
}

// normaliseNull maps JSON null to a nil RawMessage so callers can test
// removal with a plain nil check.
func normaliseNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
