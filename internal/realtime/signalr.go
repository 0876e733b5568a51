package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/barclip/internal/shared"
	"github.com/gorilla/websocket"
)

const recordSeparator byte = 0x1e

// maxRedirects bounds negotiate responses that point at another endpoint.
const maxRedirects = 5

type messageType int

const (
	messageInvocation messageType = iota + 1
	messageStreamItem
	messageCompletion
	messageStreamInvocation
	messageCancelInvocation
	messagePing
	messageClose
)

type hubMessage struct {
	Type           messageType       `json:"type"`
	Target         string            `json:"target,omitempty"`
	Arguments      []json.RawMessage `json:"arguments,omitempty"`
	Error          string            `json:"error,omitempty"`
	AllowReconnect bool              `json:"allowReconnect,omitempty"`
}

type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

type handshakeResponse struct {
	Error string `json:"error,omitempty"`
}

type negotiateResponse struct {
	ConnectionID        string      `json:"connectionId"`
	ConnectionToken     string      `json:"connectionToken"`
	NegotiateVersion    int         `json:"negotiateVersion"`
	URL                 string      `json:"url"`
	AccessToken         string      `json:"accessToken"`
	Error               string      `json:"error"`
	AvailableTransports []transport `json:"availableTransports"`
}

type transport struct {
	Transport       string   `json:"transport"`
	TransferFormats []string `json:"transferFormats"`
}

// negotiation is the outcome of the negotiate exchange.
type negotiation struct {
	hubURL       string
	token        string
	connectionID string
	id           string
}

var pingRecord = []byte("{\"type\":6}\x1e")

// closeError is a close message sent by the hub.
type closeError struct {
	message        string
	allowReconnect bool
}

func (e *closeError) Error() string {
	if e.message == "" {
		return "server closed the connection"
	}
	return "server closed the connection: " + e.message
}

func (e *closeError) Unwrap() error { return shared.ErrChannelConnection }

func encodeRecord(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, recordSeparator), nil
}

// splitRecords breaks a frame into its separator-terminated records.
func splitRecords(data []byte) [][]byte {
	var records [][]byte
	for _, rec := range bytes.Split(data, []byte{recordSeparator}) {
		if len(bytes.TrimSpace(rec)) > 0 {
			records = append(records, rec)
		}
	}
	return records
}

// negotiate asks the hub for a connection token, following redirects.
func (n *Notifier) negotiate(ctx context.Context, hubURL, token string) (*negotiation, error) {
	for range maxRedirects + 1 {
		u, err := url.Parse(hubURL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hub URL %q: %v", shared.ErrChannelConnection, hubURL, err)
		}
		u.Path = strings.TrimRight(u.Path, "/") + "/negotiate"
		q := u.Query()
		q.Set("negotiateVersion", "1")
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrChannelConnection, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: negotiate: %w", shared.ErrChannelConnection, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: negotiate: %v", shared.ErrChannelConnection, err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: negotiate rejected with status 401", shared.ErrTokenExpired)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: negotiate: status %d", shared.ErrChannelConnection, resp.StatusCode)
		}

		var neg negotiateResponse
		if err := json.Unmarshal(body, &neg); err != nil {
			return nil, fmt.Errorf("%w: negotiate: %v", shared.ErrChannelConnection, err)
		}
		if neg.Error != "" {
			return nil, fmt.Errorf("%w: negotiate: %s", shared.ErrChannelConnection, neg.Error)
		}

		if neg.URL != "" {
			hubURL = neg.URL
			if neg.AccessToken != "" {
				token = neg.AccessToken
			}
			continue
		}

		if len(neg.AvailableTransports) > 0 && !slices.ContainsFunc(neg.AvailableTransports, func(t transport) bool {
			return strings.EqualFold(t.Transport, "WebSockets")
		}) {
			return nil, fmt.Errorf("%w: hub does not offer the WebSockets transport", shared.ErrChannelConnection)
		}

		id := neg.ConnectionToken
		if neg.NegotiateVersion == 0 || id == "" {
			id = neg.ConnectionID
		}
		return &negotiation{hubURL: hubURL, token: token, connectionID: neg.ConnectionID, id: id}, nil
	}
	return nil, fmt.Errorf("%w: negotiate redirected more than %d times", shared.ErrChannelConnection, maxRedirects)
}

// websocketURL maps the hub URL onto the ws(s) scheme and appends the connection id and token.
func websocketURL(neg *negotiation) (string, error) {
	u, err := url.Parse(neg.hubURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	if neg.id != "" {
		q.Set("id", neg.id)
	}
	if neg.token != "" {
		q.Set("access_token", neg.token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// connect negotiates, dials and completes the JSON protocol handshake.
//
// Records that arrived in the same frame as the handshake reply are returned for dispatch.
func (n *Notifier) connect(ctx context.Context, token string) (*websocket.Conn, *negotiation, [][]byte, error) {
	neg, err := n.negotiate(ctx, n.hubURL, token)
	if err != nil {
		return nil, nil, nil, err
	}

	target, err := websocketURL(neg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", shared.ErrChannelConnection, err)
	}

	conn, resp, err := n.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, nil, nil, fmt.Errorf("%w: websocket rejected with status 401", shared.ErrTokenExpired)
		}
		return nil, nil, nil, fmt.Errorf("%w: dial: %w", shared.ErrChannelConnection, err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	pending, err := n.handshake(conn)
	if !stop() || err != nil {
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, nil, fmt.Errorf("%w: handshake: %w", shared.ErrChannelConnection, ctxErr)
		}
		return nil, nil, nil, err
	}
	return conn, neg, pending, nil
}

func (n *Notifier) handshake(conn *websocket.Conn) ([][]byte, error) {
	req, err := encodeRecord(handshakeRequest{Protocol: "json", Version: 1})
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(n.opts.HandshakeTimeout)
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		return nil, fmt.Errorf("%w: handshake: %w", shared.ErrChannelConnection, err)
	}

	conn.SetReadDeadline(deadline)
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: handshake: %w", shared.ErrChannelConnection, err)
	}
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	records := splitRecords(data)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty handshake response", shared.ErrChannelConnection)
	}

	var reply handshakeResponse
	if err := json.Unmarshal(records[0], &reply); err != nil {
		return nil, fmt.Errorf("%w: handshake: %v", shared.ErrChannelConnection, err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: handshake: %s", shared.ErrChannelConnection, reply.Error)
	}
	return records[1:], nil
}
