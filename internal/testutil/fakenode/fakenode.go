// Package fakenode provides an in-process Lavalink node for tests.
package fakenode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// Password is the password the node accepts.
const Password = "youshallnotpass"

// Request is a REST request received by the node.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type command struct {
	frame string
	close bool
}

// Node is a fake Lavalink node serving REST routes and a websocket.
type Node struct {
	Server *httptest.Server

	mu        sync.Mutex
	routes    map[string]http.HandlerFunc
	requests  []Request
	wsHeader  http.Header
	reject    bool
	connects  int
	commands  chan command
	connected chan struct{}
	quit      chan struct{}
	closeOnce sync.Once
}

// New starts a node that is closed when the test ends.
func New(t testing.TB) *Node {
	t.Helper()

	n := &Node{
		routes:    make(map[string]http.HandlerFunc),
		commands:  make(chan command, 64),
		connected: make(chan struct{}, 16),
		quit:      make(chan struct{}),
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Close)
	return n
}

// Host returns the host the node listens on.
func (n *Node) Host() string {
	return n.Server.Listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the port the node listens on.
func (n *Node) Port() int {
	return n.Server.Listener.Addr().(*net.TCPAddr).Port
}

// Handle registers a REST handler for method and path, path including /v4.
func (n *Node) Handle(method, path string, h http.HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes[method+" "+path] = h
}

// Respond registers a fixed response for method and path.
func (n *Node) Respond(method, path string, status int, body string) {
	n.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

// Requests returns the REST requests received so far.
func (n *Node) Requests() []Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Request(nil), n.requests...)
}

// RequestsTo returns the REST requests received for method and path.
func (n *Node) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range n.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// RejectWebsocket makes websocket handshakes fail with a 503.
func (n *Node) RejectWebsocket(reject bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reject = reject
}

// Connects returns the number of websocket handshakes attempted.
func (n *Node) Connects() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connects
}

// WebsocketHeader returns the headers of the last accepted websocket handshake.
func (n *Node) WebsocketHeader() http.Header {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.wsHeader
}

// WaitConnected waits until a websocket client connects.
func (n *Node) WaitConnected(timeout time.Duration) bool {
	select {
	case <-n.connected:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Send pushes a text frame to the connected websocket client.
func (n *Node) Send(frame string) {
	n.commands <- command{frame: frame}
}

// SendReady pushes a ready frame with the given session ID.
func (n *Node) SendReady(sessionID string) {
	n.Send(fmt.Sprintf(`{"op": "ready", "resumed": false, "sessionId": %q}`, sessionID))
}

// CloseWebsocket closes the websocket connection from the node side.
func (n *Node) CloseWebsocket() {
	n.commands <- command{close: true}
}

// Close shuts the node down.
func (n *Node) Close() {
	n.closeOnce.Do(func() {
		close(n.quit)
		n.Server.Close()
	})
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v4/websocket" {
		n.serveWebsocket(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	n.mu.Lock()
	n.requests = append(n.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	h, ok := n.routes[r.Method+" "+r.URL.Path]
	n.mu.Unlock()

	if r.Header.Get("Authorization") != Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"timestamp": %d, "status": 404, "error": "Not Found", "message": "Not Found", "path": %q}`,
			time.Now().UnixMilli(), r.URL.Path)
		return
	}
	h(w, r)
}

func (n *Node) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	n.connects++
	reject := n.reject
	n.mu.Unlock()

	if reject || r.Header.Get("Authorization") != Password {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusGoingAway, "node shutting down")

	n.mu.Lock()
	n.wsHeader = r.Header.Clone()
	n.mu.Unlock()

	ctx := conn.CloseRead(context.Background())
	select {
	case n.connected <- struct{}{}:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.quit:
			return
		case cmd := <-n.commands:
			if cmd.close {
				conn.Close(websocket.StatusGoingAway, "closed by node")
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, []byte(cmd.frame)); err != nil {
				return
			}
		}
	}
}
