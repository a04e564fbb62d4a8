package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/claybowl/taygency/internal/agent"
	"github.com/claybowl/taygency/internal/events"
)

// Runner runs one inbound message.
type Runner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Response, error)
}

// Client represents a connected WebSocket client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	hub  *Hub

	mu      sync.Mutex
	traceID string // event filter, "" = all
}

// Hub manages WebSocket clients and bridges them to the event bus.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	bus         *events.Bus
	runner      Runner
	unsubscribe func()
}

// NewHub creates a new WebSocket hub connected to an event bus. runner may
// be nil, in which case send_message is rejected.
func NewHub(bus *events.Bus, runner Runner) *Hub {
	h := &Hub{
		clients: make(map[*Client]struct{}),
		bus:     bus,
		runner:  runner,
	}

	// Bridge every bus event to WS clients.
	h.unsubscribe = bus.Subscribe(func(e events.Event) {
		frame, err := NewEventFrame(string(e.Type), e.TraceID, e)
		if err != nil {
			slog.Error("marshal event frame", "error", err)
			return
		}
		data, err := MarshalFrame(frame)
		if err != nil {
			slog.Error("marshal frame", "error", err)
			return
		}
		h.broadcast(e.TraceID, data)
	})

	return h
}

// broadcast sends data to every client whose filter matches traceID.
func (h *Hub) broadcast(traceID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.accepts(traceID) {
			c.enqueue(data)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	slog.Info("ws client connected", "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.done)
		slog.Info("ws client disconnected", "clients", len(h.clients))
	}
}

// ServeWS handles a WebSocket upgrade and manages the client lifecycle.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin for dev
	})
	if err != nil {
		slog.Error("ws accept", "error", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
		hub:  h,
	}

	h.register(client)

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)
}

func (c *Client) accepts(traceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.traceID == "" || c.traceID == traceID
}

// enqueue drops the message when the client is gone or too slow.
func (c *Client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		// Client too slow, skip
	}
}

// readPump reads frames from the WS connection and dispatches them.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("ws read closed", "status", websocket.CloseStatus(err))
			} else {
				slog.Debug("ws read error", "error", err)
			}
			return
		}

		frame, err := UnmarshalFrame(data)
		if err != nil {
			slog.Error("ws unmarshal frame", "error", err)
			continue
		}

		c.handleFrame(ctx, frame)
	}
}

func (c *Client) handleFrame(ctx context.Context, frame Frame) {
	switch frame.Type {
	case FrameTypeRequest:
		c.handleRequest(ctx, frame)
	default:
		slog.Debug("ws unknown frame type", "type", frame.Type)
	}
}

// handleRequest dispatches a request frame by method.
func (c *Client) handleRequest(ctx context.Context, frame Frame) {
	switch Method(frame.Method) {
	case MethodSendMessage:
		var params SendMessageParams
		if err := json.Unmarshal(frame.Params, &params); err != nil || params.Message == "" {
			c.sendError(frame.ID, "invalid params")
			return
		}
		if c.hub.runner == nil {
			c.sendError(frame.ID, "agent not available")
			return
		}
		// Runs concurrently so the client keeps receiving trace events, and
		// outlives the connection once started.
		runCtx := context.WithoutCancel(ctx)
		go func() {
			resp, err := c.hub.runner.Run(runCtx, agent.Request{
				Channel: params.Channel,
				Message: params.Message,
				Context: params.Context,
			})
			if err != nil {
				c.sendResponse(frame.ID, false, resp, err.Error())
				return
			}
			c.sendResponse(frame.ID, true, resp, "")
		}()

	case MethodSubscribe:
		var params SubscribeParams
		if len(frame.Params) > 0 {
			if err := json.Unmarshal(frame.Params, &params); err != nil {
				c.sendError(frame.ID, "invalid params")
				return
			}
		}
		c.mu.Lock()
		c.traceID = params.TraceID
		c.mu.Unlock()
		c.sendResponse(frame.ID, true, map[string]string{"trace_id": params.TraceID}, "")

	default:
		c.sendError(frame.ID, "unknown method: "+frame.Method)
	}
}

// writePump writes queued messages to the WS connection.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) sendResponse(id string, ok bool, payload any, errMsg string) {
	f, err := NewResponseFrame(id, ok, payload, errMsg)
	if err != nil {
		slog.Error("marshal response frame", "error", err)
		return
	}
	data, err := MarshalFrame(f)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *Client) sendError(id string, errMsg string) {
	c.sendResponse(id, false, nil, errMsg)
}

// Close shuts down the hub and all client connections.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutdown")
		delete(h.clients, c)
		close(c.done)
	}
}
