package signaling

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/quickrtc/p2p-go/pkg/worker"
	"github.com/sirupsen/logrus"
)

// Configuration of the websocket signaling client.
type Config struct {
	// URL of the rendezvous server, e.g. "wss://signaling.example.com/ws".
	URL string `yaml:"url"`
	// The identity to announce to the server.
	ClientID string `yaml:"clientId"`
}

// The frame exchanged with the rendezvous server. The payload is the opaque
// signaling message of the session layer; the server routes by `to`.
type frame struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Payload string `json:"payload"`
}

type outgoing struct {
	frame     frame
	onSuccess func()
	onFailure func(error)
}

// WebsocketClient is a Sender that relays messages through a websocket
// rendezvous server. Writes go through a single worker goroutine (gorilla
// permits at most one concurrent writer); reads are pumped on a dedicated
// goroutine and handed to the dispatch callback.
type WebsocketClient struct {
	logger *logrus.Entry
	conn   *websocket.Conn
	writes *worker.Worker[outgoing]

	mutex    sync.Mutex
	dispatch func(raw string, from string)
}

// Dial connects to the rendezvous server, announces the client id and starts
// the read pump.
func Dial(config Config, logger *logrus.Entry) (*WebsocketClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial signaling server: %w", err)
	}

	client := &WebsocketClient{
		logger: logger,
		conn:   conn,
	}

	client.writes = worker.StartWorker(worker.Config[outgoing]{
		Name:      "SignalingWriteQueue",
		QueueSize: 256,
		OnTask:    client.write,
	})

	// Announce ourselves so the server can route frames addressed to us.
	if err := conn.WriteJSON(frame{From: config.ClientID}); err != nil {
		conn.Close()
		client.writes.Stop()
		return nil, fmt.Errorf("failed to announce client id: %w", err)
	}

	go client.readPump()

	return client, nil
}

// OnMessage sets the callback invoked for every inbound signaling message.
func (c *WebsocketClient) OnMessage(dispatch func(raw string, from string)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.dispatch = dispatch
}

func (c *WebsocketClient) Send(message string, remoteID string, onSuccess func(), onFailure func(error)) {
	err := c.writes.Send(outgoing{
		frame:     frame{To: remoteID, Payload: message},
		onSuccess: onSuccess,
		onFailure: onFailure,
	})
	if err != nil && onFailure != nil {
		onFailure(err)
	}
}

// Close stops the write queue and closes the connection, which also
// terminates the read pump.
func (c *WebsocketClient) Close() {
	c.writes.Stop()
	if err := c.conn.Close(); err != nil {
		c.logger.WithError(err).Debug("failed to close signaling connection")
	}
}

func (c *WebsocketClient) write(out outgoing) {
	if err := c.conn.WriteJSON(out.frame); err != nil {
		c.logger.WithError(err).Error("failed to write signaling frame")
		if out.onFailure != nil {
			out.onFailure(err)
		}
		return
	}

	if out.onSuccess != nil {
		out.onSuccess()
	}
}

func (c *WebsocketClient) readPump() {
	for {
		var in frame
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.WithError(err).Error("signaling connection lost")
			}
			return
		}

		c.mutex.Lock()
		dispatch := c.dispatch
		c.mutex.Unlock()

		if dispatch == nil {
			c.logger.Warn("dropping signaling message, no dispatcher registered")
			continue
		}

		dispatch(in.Payload, in.From)
	}
}
