// README: Connection abstraction with a bounded, drop-on-overflow send queue.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"kota/internal/types"
)

// Message is what subscribers receive.
type Message struct {
	Kind    string          `json:"kind"`
	OrderID types.ID        `json:"order_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Sink is the transport half of a connection (a websocket, in practice).
type Sink interface {
	WriteMessage(m Message) error
	Close() error
}

const sendQueueSize = 32

// Conn wraps a Sink with a bounded outbound queue so a stalled subscriber
// never blocks a publisher. Overflow drops the message: delivery is
// best-effort with no replay.
type Conn struct {
	id     types.ID
	userID types.ID
	sink   Sink

	sendq chan Message
	once  sync.Once
	done  chan struct{}
}

func NewConn(userID types.ID, sink Sink) *Conn {
	c := &Conn{
		id:     types.NewID(),
		userID: userID,
		sink:   sink,
		sendq:  make(chan Message, sendQueueSize),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Conn) ID() types.ID     { return c.id }
func (c *Conn) UserID() types.ID { return c.userID }

// Send enqueues without blocking; a full queue drops the message.
func (c *Conn) Send(m Message) {
	select {
	case <-c.done:
	case c.sendq <- m:
	default:
		slog.Debug("dropping message for slow subscriber", "conn", c.id, "kind", m.Kind)
	}
}

// Close stops the writer and closes the underlying sink. Safe to call twice.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Conn) writeLoop() {
	defer c.sink.Close()
	for {
		select {
		case <-c.done:
			return
		case m := <-c.sendq:
			if err := c.sink.WriteMessage(m); err != nil {
				slog.Debug("write to subscriber failed", "conn", c.id, "err", err)
				return
			}
		}
	}
}
