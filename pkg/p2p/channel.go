package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/quickrtc/p2p-go/pkg/capability"
	"github.com/quickrtc/p2p-go/pkg/engine"
	"github.com/quickrtc/p2p-go/pkg/message"
	"github.com/quickrtc/p2p-go/pkg/signaling"
	"github.com/quickrtc/p2p-go/pkg/sysinfo"
	"github.com/quickrtc/p2p-go/pkg/telemetry"
	"github.com/quickrtc/p2p-go/pkg/worker"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// The single data channel of a session.
const dataChannelLabel = "message"

// Configuration of a session channel.
type Config struct {
	// Seconds to wait for ICE to recover before giving the session up.
	ReconnectTimeout int `yaml:"reconnectTimeout"`
	// Bandwidth caps in kbps written into the local SDP. Zero means no cap.
	MaxAudioBitrate int `yaml:"maxAudioBitrate"`
	MaxVideoBitrate int `yaml:"maxVideoBitrate"`
}

// DefaultConfig returns the channel configuration with default timeouts.
func DefaultConfig() Config {
	return Config{ReconnectTimeout: 10}
}

// Channel negotiates, maintains and tears down a single WebRTC session with
// one remote peer over an out-of-band signaling transport. One channel per
// remote identity; the channel is reusable once a session has ended.
type Channel struct {
	localID  string
	remoteID string
	logger   *logrus.Entry
	sender   signaling.Sender
	engine   engine.PeerEngine
	config   Config

	// Every observer notification and every user callback runs here.
	events    *worker.Worker[func()]
	telemetry *telemetry.Telemetry

	quit     chan struct{}
	quitOnce sync.Once

	// Guards the session state and all transition bookkeeping below it.
	mutex               sync.Mutex
	state               SessionState
	caps                capability.Flags
	isCaller            bool
	isCreatingOffer     bool
	negotiationNeeded   bool
	connectionStarted   bool
	deferredRemoteOffer *webrtc.SessionDescription
	lastDisconnect      time.Time
	dataChannelCreated  bool
	dataChannelOpen     bool
	remoteTrackSources  map[string]string
	remoteStreams       map[string]*RemoteStream

	observerMutex sync.Mutex
	observers     []ChannelObserver

	published        *streamSet
	pendingPublish   *streamQueue
	pendingUnpublish *streamQueue
	pendingMessages  *messageQueue
}

// NewChannel creates a channel for the given remote identity. The channel
// takes ownership of the engine; the sender is shared with the client that
// routes inbound signaling.
func NewChannel(
	localID string,
	remoteID string,
	sender signaling.Sender,
	peerEngine engine.PeerEngine,
	config Config,
) *Channel {
	if config.ReconnectTimeout <= 0 {
		config.ReconnectTimeout = DefaultConfig().ReconnectTimeout
	}

	channel := &Channel{
		localID:  localID,
		remoteID: remoteID,
		logger:   logrus.WithFields(logrus.Fields{"local": localID, "remote": remoteID}),
		sender:   sender,
		engine:   peerEngine,
		config:   config,
		quit:     make(chan struct{}),
		telemetry: telemetry.NewTelemetry(
			context.Background(),
			"p2p-channel",
			attribute.String("local", localID),
			attribute.String("remote", remoteID),
		),
		remoteTrackSources: make(map[string]string),
		remoteStreams:      make(map[string]*RemoteStream),
		published:          newStreamSet(),
		pendingPublish:     &streamQueue{},
		pendingUnpublish:   &streamQueue{},
		pendingMessages:    &messageQueue{},
	}

	channel.events = worker.StartWorker(worker.Config[func()]{
		Name:      "PeerConnectionChannelEventQueue",
		QueueSize: 256,
		OnTask:    func(task func()) { task() },
	})

	go channel.processEngineEvents()

	return channel
}

// RemoteID returns the identity of the remote peer.
func (c *Channel) RemoteID() string {
	return c.remoteID
}

// State returns the current session state.
func (c *Channel) State() SessionState {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.state
}

// Release shuts the channel down for good: the engine and the event queue
// are stopped. Does not send anything to the remote peer; call Stop first if
// a session is still active.
func (c *Channel) Release() {
	c.quitOnce.Do(func() {
		close(c.quit)
		c.engine.Release()
		c.events.Stop()
		c.telemetry.End()
	})
}

// Invite asks the remote peer to start a session. Valid while ready or as a
// re-invite while a previous invitation is unanswered.
func (c *Channel) Invite(onSuccess func(), onFailure func(error)) {
	c.mutex.Lock()
	if c.state != SessionStateReady && c.state != SessionStateOffered {
		state := c.state
		c.mutex.Unlock()
		c.reportFailure(onFailure, fmt.Errorf("%w: invitation is not allowed while %s", ErrInvalidState, state))
		return
	}
	c.setState(SessionStateOffered)
	c.mutex.Unlock()

	// Best-effort reset of whatever stale session the remote side may still
	// be holding for us.
	c.sendMessage(message.Closed{}, nil, nil)

	c.sendMessage(message.Invitation{UserAgent: sysinfo.Local()},
		func() { c.reportSuccess(onSuccess) },
		func(err error) {
			c.mutex.Lock()
			if c.state == SessionStateOffered {
				c.setState(SessionStateReady)
			}
			c.mutex.Unlock()
			c.reportFailure(onFailure, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
		})
}

// Accept confirms a pending remote invitation.
func (c *Channel) Accept(onSuccess func(), onFailure func(error)) {
	c.mutex.Lock()
	if c.state != SessionStatePending {
		c.mutex.Unlock()
		c.reportFailure(onFailure, fmt.Errorf("%w: no pending invitation to accept", ErrInvalidState))
		return
	}
	if err := c.acceptLocked(); err != nil {
		c.mutex.Unlock()
		c.reportFailure(onFailure, err)
		return
	}
	c.mutex.Unlock()

	c.sendMessage(message.Acceptance{UserAgent: sysinfo.Local()},
		func() { c.reportSuccess(onSuccess) },
		func(err error) {
			c.reportFailure(onFailure, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
		})

	c.engine.CreateDataChannel(dataChannelLabel)
}

// Becomes the callee of the session: initializes the connection and moves to
// the matched state. Must be called with the state mutex held.
func (c *Channel) acceptLocked() error {
	c.isCaller = false
	if err := c.engine.InitializePeerConnection(); err != nil {
		return err
	}
	c.setState(SessionStateMatched)
	return nil
}

// Deny rejects a pending remote invitation.
func (c *Channel) Deny(onSuccess func(), onFailure func(error)) {
	c.mutex.Lock()
	if c.state != SessionStatePending {
		c.mutex.Unlock()
		c.reportFailure(onFailure, fmt.Errorf("%w: no pending invitation to deny", ErrInvalidState))
		return
	}
	c.setState(SessionStateReady)
	c.mutex.Unlock()

	c.sendMessage(message.Denial{},
		func() { c.reportSuccess(onSuccess) },
		func(err error) {
			c.reportFailure(onFailure, fmt.Errorf("%w: %v", ErrInvalidArgument, err))
		})
}

// Stop tears the current session down while offered, matched, connecting or
// connected. Fails with ErrInvalidState while ready or pending.
func (c *Channel) Stop(onSuccess func(), onFailure func(error)) {
	c.mutex.Lock()
	switch c.state {
	case SessionStateConnecting, SessionStateConnected:
		c.setState(SessionStateReady)
		c.mutex.Unlock()
		// OnStopped is emitted once the engine reports the closed ICE state.
		c.engine.ClosePeerConnection()
		c.sendMessage(message.Closed{}, nil, nil)
	case SessionStateMatched:
		c.setState(SessionStateReady)
		c.mutex.Unlock()
		c.engine.ClosePeerConnection()
		c.sendMessage(message.Closed{}, nil, nil)
	case SessionStateOffered:
		c.setState(SessionStateReady)
		c.mutex.Unlock()
		c.sendMessage(message.Closed{}, nil, nil)
		c.notifyStopped()
	default:
		c.mutex.Unlock()
		c.reportFailure(onFailure, fmt.Errorf("%w: no session to stop", ErrInvalidState))
		return
	}

	c.reportSuccess(onSuccess)
}

// Publish adds a local stream to the session. The stream's track sources are
// announced over signaling before the tracks reach the connection.
func (c *Channel) Publish(stream *engine.LocalStream, onSuccess func(), onFailure func(error)) {
	if stream == nil {
		c.reportFailure(onFailure, fmt.Errorf("%w: nil stream", ErrInvalidArgument))
		return
	}

	c.mutex.Lock()
	state := c.state
	caps := c.caps
	c.mutex.Unlock()

	if state != SessionStateConnected {
		c.reportFailure(onFailure, fmt.Errorf("%w: publish requires a connected session", ErrInvalidState))
		return
	}

	if !caps.SupportsPlanB && (c.published.size() > 0 || !c.pendingPublish.empty()) {
		c.reportFailure(onFailure, fmt.Errorf("%w: remote peer supports a single stream only", ErrUnsupportedMethod))
		return
	}

	if !c.published.insert(stream) {
		c.reportFailure(onFailure, fmt.Errorf("%w: stream %s is already published", ErrInvalidArgument, stream.ID()))
		return
	}
	c.pendingPublish.push(stream)

	c.reportSuccess(onSuccess)

	if c.engine.SignalingState() == webrtc.SignalingStateStable {
		c.drainPendingStreams()
	}
}

// Unpublish withdraws a previously published stream.
func (c *Channel) Unpublish(stream *engine.LocalStream, onSuccess func(), onFailure func(error)) {
	if stream == nil {
		c.reportFailure(onFailure, fmt.Errorf("%w: nil stream", ErrInvalidArgument))
		return
	}

	c.mutex.Lock()
	state := c.state
	caps := c.caps
	c.mutex.Unlock()

	if !caps.SupportsRemoveStream {
		c.reportFailure(onFailure, fmt.Errorf("%w: remote peer does not support removing streams", ErrUnsupportedMethod))
		return
	}

	if _, ok := c.published.remove(stream.ID()); !ok {
		c.reportFailure(onFailure, fmt.Errorf("%w: stream %s is not published", ErrInvalidArgument, stream.ID()))
		return
	}
	c.pendingUnpublish.push(stream)

	c.reportSuccess(onSuccess)

	if state == SessionStateConnected && c.engine.SignalingState() == webrtc.SignalingStateStable {
		c.drainPendingStreams()
	}
}

// Send delivers a text message over the data channel, buffering it until the
// channel opens if necessary. Enqueueing counts as success; delivery is
// best-effort.
func (c *Channel) Send(text string, onSuccess func(), onFailure func(error)) {
	if text == "" {
		c.reportFailure(onFailure, fmt.Errorf("%w: empty message", ErrInvalidArgument))
		return
	}

	c.mutex.Lock()
	open := c.dataChannelOpen
	created := c.dataChannelCreated
	if !created {
		c.dataChannelCreated = true
	}
	c.mutex.Unlock()

	if open {
		if err := c.engine.SendText(text); err == nil {
			c.reportSuccess(onSuccess)
			return
		}
		// The channel closed under us; fall back to buffering.
	}

	c.pendingMessages.push(text)
	if !created {
		c.engine.CreateDataChannel(dataChannelLabel)
	}

	c.reportSuccess(onSuccess)
}

// GetConnectionStats fetches a snapshot of the connection statistics.
func (c *Channel) GetConnectionStats(onSuccess func(engine.ConnectionStats), onFailure func(error)) {
	c.mutex.Lock()
	connected := c.state == SessionStateConnected
	c.mutex.Unlock()

	if !connected {
		c.reportFailure(onFailure, fmt.Errorf("%w: stats require a connected session", ErrInvalidState))
		return
	}

	c.engine.GetStats(
		func(stats engine.ConnectionStats) {
			if onSuccess != nil {
				c.post(func() { onSuccess(stats) })
			}
		},
		func(err error) { c.reportFailure(onFailure, err) },
	)
}

// Transitions to the next session state. Must be called with the state mutex
// held.
func (c *Channel) setState(next SessionState) {
	if c.state == next {
		return
	}

	c.logger.WithFields(logrus.Fields{"from": c.state, "to": next}).Debug("session state changed")
	c.telemetry.AddEvent("session state changed",
		attribute.String("from", c.state.String()),
		attribute.String("to", next.String()),
	)
	c.state = next
}

// Posts a task to the event queue.
func (c *Channel) post(task func()) {
	if err := c.events.Send(task); err != nil {
		c.logger.WithError(err).Error("failed to post to the event queue")
	}
}

func (c *Channel) reportSuccess(onSuccess func()) {
	if onSuccess != nil {
		c.post(onSuccess)
	}
}

func (c *Channel) reportFailure(onFailure func(error), err error) {
	c.logger.WithError(err).Debug("operation failed")
	if onFailure != nil {
		c.post(func() { onFailure(err) })
	}
}

// Encodes and sends a signaling message to the remote peer. The callbacks
// fire on the transport's goroutine; user-facing completions must be
// re-posted to the event queue by the caller.
func (c *Channel) sendMessage(content message.Content, onSuccess func(), onFailure func(error)) {
	raw, err := message.Encode(content)
	if err != nil {
		c.logger.WithError(err).Error("failed to encode signaling message")
		if onFailure != nil {
			onFailure(err)
		}
		return
	}

	c.sender.Send(raw, c.remoteID, onSuccess, func(err error) {
		c.logger.WithError(err).Error("failed to deliver signaling message")
		if onFailure != nil {
			onFailure(err)
		}
	})
}

func (c *Channel) notifyStopped() {
	c.telemetry.AddEvent("session stopped")
	c.notifyObservers(func(o ChannelObserver) { o.OnStopped(c.remoteID) })
}
