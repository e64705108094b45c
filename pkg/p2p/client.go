package p2p

import (
	"fmt"
	"sync"

	"github.com/quickrtc/p2p-go/pkg/engine"
	"github.com/quickrtc/p2p-go/pkg/signaling"
	"github.com/sirupsen/logrus"
)

// EngineFactory creates a fresh engine for the channel towards `remoteID`.
type EngineFactory func(remoteID string) (engine.PeerEngine, error)

// Client owns one channel per remote identity and routes inbound signaling
// to the right one, creating channels on demand for unsolicited invitations.
type Client struct {
	localID   string
	sender    signaling.Sender
	newEngine EngineFactory
	config    Config
	logger    *logrus.Entry

	mutex     sync.Mutex
	channels  map[string]*Channel
	observers []ChannelObserver
}

func NewClient(localID string, sender signaling.Sender, newEngine EngineFactory, config Config) *Client {
	return &Client{
		localID:   localID,
		sender:    sender,
		newEngine: newEngine,
		config:    config,
		logger:    logrus.WithField("local", localID),
		channels:  make(map[string]*Channel),
	}
}

// Channel returns the channel towards the given remote identity, creating
// one if none exists yet.
func (c *Client) Channel(remoteID string) (*Channel, error) {
	if remoteID == "" || remoteID == c.localID {
		return nil, fmt.Errorf("%w: bad remote id %q", ErrInvalidArgument, remoteID)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if channel, ok := c.channels[remoteID]; ok {
		return channel, nil
	}

	peerEngine, err := c.newEngine(remoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine for %s: %w", remoteID, err)
	}

	channel := NewChannel(c.localID, remoteID, c.sender, peerEngine, c.config)
	for _, observer := range c.observers {
		channel.AddObserver(observer)
	}
	c.channels[remoteID] = channel

	return channel, nil
}

// OnIncomingSignalingMessage routes a raw signaling message by its sender.
func (c *Client) OnIncomingSignalingMessage(raw string, from string) {
	channel, err := c.Channel(from)
	if err != nil {
		c.logger.WithError(err).Warn("dropping signaling message from unroutable peer")
		return
	}

	channel.OnIncomingSignalingMessage(raw)
}

// AddObserver registers an observer with every current and future channel.
func (c *Client) AddObserver(observer ChannelObserver) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.observers = append(c.observers, observer)
	for _, channel := range c.channels {
		channel.AddObserver(observer)
	}
}

// RemoveObserver unregisters an observer from every channel.
func (c *Client) RemoveObserver(observer ChannelObserver) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for i, registered := range c.observers {
		if registered == observer {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			break
		}
	}
	for _, channel := range c.channels {
		channel.RemoveObserver(observer)
	}
}

// Stop tears every session down and releases all channels. The client is not
// usable afterwards.
func (c *Client) Stop() {
	c.mutex.Lock()
	channels := c.channels
	c.channels = make(map[string]*Channel)
	c.mutex.Unlock()

	for _, channel := range channels {
		channel.Stop(nil, nil)
		channel.Release()
	}
}
