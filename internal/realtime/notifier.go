package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/barclip/internal/models"
	"github.com/desertthunder/barclip/internal/shared"
	"github.com/gorilla/websocket"
)

// EventTrimSucceeded is the hub method invoked when a trimmed video is ready.
const EventTrimSucceeded = "TrimSucceeded"

// DefaultHub is the hub path used when none is configured.
const DefaultHub = "videoStatus"

// Defaults match the SignalR client library.
var (
	DefaultReconnectDelays = []time.Duration{0, 2 * time.Second, 10 * time.Second, 30 * time.Second}
	DefaultPingInterval    = 15 * time.Second
	DefaultServerTimeout   = 30 * time.Second
	DefaultHandshake       = 15 * time.Second
)

const eventBuffer = 16

// Hooks observe the connection lifecycle. They run on the subscription's goroutine
// and must not call [Subscription.Close].
type Hooks struct {
	OnClose        func(err error)
	OnReconnecting func(err error)
	OnReconnected  func(connectionID string)
}

// Options configures a [Notifier].
type Options struct {
	BaseURL string
	Hub     string

	// ReconnectDelays lists the wait before each reconnect attempt. Nil means
	// [DefaultReconnectDelays]; an empty slice disables reconnects.
	ReconnectDelays  []time.Duration
	PingInterval     time.Duration
	ServerTimeout    time.Duration
	HandshakeTimeout time.Duration

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     *log.Logger
	Hooks      Hooks
}

// Notifier opens subscriptions to the completion hub.
type Notifier struct {
	opts       Options
	hubURL     string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *log.Logger
}

// NewNotifier creates a [Notifier] for the hub at {BaseURL}/{Hub}.
func NewNotifier(opts Options) *Notifier {
	if opts.Hub == "" {
		opts.Hub = DefaultHub
	}
	if opts.ReconnectDelays == nil {
		opts.ReconnectDelays = DefaultReconnectDelays
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.ServerTimeout <= 0 {
		opts.ServerTimeout = DefaultServerTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshake
	}

	n := &Notifier{
		opts:       opts,
		hubURL:     strings.TrimRight(opts.BaseURL, "/") + "/" + strings.TrimLeft(opts.Hub, "/"),
		httpClient: opts.HTTPClient,
		dialer:     opts.Dialer,
		logger:     opts.Logger,
	}
	if n.httpClient == nil {
		n.httpClient = http.DefaultClient
	}
	if n.dialer == nil {
		n.dialer = websocket.DefaultDialer
	}
	if n.logger == nil {
		n.logger = shared.NewDiscardLogger()
	}
	return n
}

// HubURL returns the hub endpoint subscriptions connect to.
func (n *Notifier) HubURL() string { return n.hubURL }

// Subscribe connects to the hub with token and starts delivering completion events.
//
// ctx bounds the initial connection only; the subscription lives until [Subscription.Close]
// or until reconnecting gives up. A rejected token yields [shared.ErrTokenExpired].
func (n *Notifier) Subscribe(ctx context.Context, token string) (*Subscription, error) {
	conn, neg, pending, err := n.connect(ctx, token)
	if err != nil {
		n.logger.Warn("real-time connection failed", "hub", n.hubURL, "error", err)
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		n:            n,
		token:        token,
		events:       make(chan models.CompletionEvent, eventBuffer),
		done:         make(chan struct{}),
		ctx:          subCtx,
		cancel:       cancel,
		conn:         conn,
		connectionID: neg.connectionID,
	}

	n.logger.Info("real-time connection established", "connection", neg.connectionID)
	go s.run(conn, pending)
	return s, nil
}

// Subscription is a live hub connection delivering [models.CompletionEvent] values.
type Subscription struct {
	n      *Notifier
	token  string
	events chan models.CompletionEvent
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	conn         *websocket.Conn
	connectionID string
	err          error
	closeOnce    sync.Once
}

// Events delivers trim completions in arrival order.
func (s *Subscription) Events() <-chan models.CompletionEvent { return s.events }

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports why the subscription ended; nil after [Subscription.Close].
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ConnectionID returns the id of the current connection.
func (s *Subscription) ConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionID
}

// Close unsubscribes. Events not yet received are dropped.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			conn.Close()
		}
	})

	<-s.done
	for {
		select {
		case <-s.events:
		default:
			return nil
		}
	}
}

func (s *Subscription) run(conn *websocket.Conn, pending [][]byte) {
	defer close(s.done)

	for {
		err := s.serve(conn, pending)
		pending = nil
		if s.ctx.Err() != nil {
			s.finish(nil)
			return
		}

		var ce *closeError
		if errors.As(err, &ce) && !ce.allowReconnect {
			s.finish(err)
			return
		}

		s.n.logger.Warn("real-time connection lost, reconnecting", "connection", s.ConnectionID(), "error", err)
		if hook := s.n.opts.Hooks.OnReconnecting; hook != nil {
			hook(err)
		}

		conn, pending, err = s.reconnect()
		if err != nil {
			if s.ctx.Err() != nil {
				err = nil
			}
			s.finish(err)
			return
		}

		id := s.ConnectionID()
		s.n.logger.Info("real-time connection re-established", "connection", id)
		if hook := s.n.opts.Hooks.OnReconnected; hook != nil {
			hook(id)
		}
	}
}

// reconnect walks the delay schedule with the original token.
func (s *Subscription) reconnect() (*websocket.Conn, [][]byte, error) {
	var lastErr error
	for i, delay := range s.n.opts.ReconnectDelays {
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-s.ctx.Done():
				timer.Stop()
				return nil, nil, s.ctx.Err()
			case <-timer.C:
			}
		}

		conn, neg, pending, err := s.n.connect(s.ctx, s.token)
		if err == nil {
			if !s.setConn(conn, neg.connectionID) {
				conn.Close()
				return nil, nil, context.Canceled
			}
			return conn, pending, nil
		}
		if errors.Is(err, shared.ErrTokenExpired) {
			return nil, nil, err
		}
		if s.ctx.Err() != nil {
			return nil, nil, s.ctx.Err()
		}

		s.n.logger.Debug("reconnect attempt failed", "attempt", i+1, "error", err)
		lastErr = err
	}

	if lastErr == nil {
		return nil, nil, fmt.Errorf("%w: connection lost", shared.ErrChannelConnection)
	}
	return nil, nil, fmt.Errorf("%w: gave up after %d reconnect attempts: %v",
		shared.ErrChannelConnection, len(s.n.opts.ReconnectDelays), lastErr)
}

func (s *Subscription) setConn(conn *websocket.Conn, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conn = conn
	s.connectionID = id
	return true
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	s.err = err
	id := s.connectionID
	s.mu.Unlock()

	if err != nil {
		s.n.logger.Warn("real-time connection closed", "connection", id, "error", err)
	} else {
		s.n.logger.Info("real-time connection closed", "connection", id)
	}
	if hook := s.n.opts.Hooks.OnClose; hook != nil {
		hook(err)
	}
}

// serve reads from conn until it fails, keeping the server side alive with pings.
func (s *Subscription) serve(conn *websocket.Conn, pending [][]byte) error {
	stop := make(chan struct{})
	defer conn.Close()
	defer close(stop)
	go s.ping(conn, stop)

	for _, rec := range pending {
		if err := s.dispatch(rec); err != nil {
			return err
		}
	}

	for {
		conn.SetReadDeadline(time.Now().Add(s.n.opts.ServerTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for _, rec := range splitRecords(data) {
			if err := s.dispatch(rec); err != nil {
				return err
			}
		}
	}
}

func (s *Subscription) ping(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.n.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.n.opts.PingInterval))
			if err := conn.WriteMessage(websocket.TextMessage, pingRecord); err != nil {
				return
			}
		}
	}
}

func (s *Subscription) dispatch(record []byte) error {
	var msg hubMessage
	if err := json.Unmarshal(record, &msg); err != nil {
		s.n.logger.Debug("ignoring malformed hub message", "error", err)
		return nil
	}

	switch msg.Type {
	case messageInvocation:
		s.invoke(msg)
	case messagePing:
	case messageClose:
		return &closeError{message: msg.Error, allowReconnect: msg.AllowReconnect}
	default:
		s.n.logger.Debug("ignoring hub message", "type", msg.Type)
	}
	return nil
}

func (s *Subscription) invoke(msg hubMessage) {
	if !strings.EqualFold(msg.Target, EventTrimSucceeded) {
		s.n.logger.Debug("no handler for hub method", "target", msg.Target)
		return
	}
	if len(msg.Arguments) == 0 {
		s.n.logger.Warn("TrimSucceeded without a result URL")
		return
	}

	var resultURL string
	if err := json.Unmarshal(msg.Arguments[0], &resultURL); err != nil {
		s.n.logger.Warn("TrimSucceeded with a non-string argument", "error", err)
		return
	}

	ev := models.CompletionEvent{ResultURL: resultURL, ReceivedAt: time.Now()}
	select {
	case <-s.ctx.Done():
	case s.events <- ev:
	}
}
