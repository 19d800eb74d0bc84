package handler

import (
	"encoding/json"
	"errors"
	"sync"
)

var (
	errClientClosed = errors.New("client connection closed")
	errClientSlow   = errors.New("client send buffer is full")
)

// frame - конверт сообщений в обе стороны: {"name": "...", "args": [...]}
type frame struct {
	Name string            `json:"name"`
	Args []json.RawMessage `json:"args"`
}

type outboundFrame struct {
	Name string        `json:"name"`
	Args []interface{} `json:"args"`
}

// wsClient - Emitter одной websocket сессии. Emit не блокируется:
// он вызывается под блокировкой встречи, а запись в сокет делает writePump.
type wsClient struct {
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newWSClient(buffer int) *wsClient {
	return &wsClient{send: make(chan []byte, buffer)}
}

func (c *wsClient) Emit(event string, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	data, err := json.Marshal(outboundFrame{Name: event, Args: args})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errClientSlow
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
