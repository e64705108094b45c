package p2p

import (
	"github.com/pion/webrtc/v3"
	"github.com/quickrtc/p2p-go/pkg/capability"
	"github.com/quickrtc/p2p-go/pkg/message"
	"github.com/quickrtc/p2p-go/pkg/sysinfo"
)

// OnIncomingSignalingMessage feeds a raw message from the signaling transport
// into the channel. Malformed and unknown messages are logged and dropped.
func (c *Channel) OnIncomingSignalingMessage(raw string) {
	content, err := message.Decode(raw)
	if err != nil {
		c.logger.WithError(err).Warn("dropping signaling message")
		return
	}

	// Since Go does not support ADTs, we have to use a switch statement to
	// determine the actual type of the message.
	switch msg := content.(type) {
	case message.Invitation:
		c.processInvitation(msg)
	case message.Acceptance:
		c.processAcceptance(msg)
	case message.Denial:
		c.processDenial(msg)
	case message.Closed:
		c.processRemoteStop(msg)
	case message.NegotiationNeeded:
		c.processNegotiationRequest(msg)
	case message.Description:
		c.processRemoteDescription(msg)
	case message.Candidate:
		c.processRemoteCandidate(msg)
	case message.TrackSources:
		c.processTrackSources(msg)
	default:
		c.logger.Errorf("unhandled signaling message type: %T", msg)
	}
}

func (c *Channel) processInvitation(msg message.Invitation) {
	c.mutex.Lock()
	// Capabilities must be in place before the session moves forward so
	// that a subsequent publish sees the correct flags.
	c.caps = capability.Classify(msg.UserAgent)

	switch c.state {
	case SessionStateReady, SessionStatePending:
		c.setState(SessionStatePending)
		c.mutex.Unlock()
		c.notifyObservers(func(o ChannelObserver) { o.OnInvited(c.remoteID) })

	case SessionStateOffered:
		// Both sides invited each other. The side with the smaller id
		// yields and becomes the callee; the other ignores the glare.
		if c.remoteID > c.localID {
			if err := c.acceptLocked(); err != nil {
				c.mutex.Unlock()
				c.logger.WithError(err).Error("failed to initialize connection for tie-break")
				return
			}
			c.mutex.Unlock()
			c.sendMessage(message.Acceptance{UserAgent: sysinfo.Local()}, nil, nil)
			c.engine.CreateDataChannel(dataChannelLabel)
		} else {
			c.mutex.Unlock()
			c.logger.Debug("ignoring remote invitation, local invitation wins the tie-break")
		}

	default:
		c.mutex.Unlock()
		c.logger.WithField("state", c.State()).Debug("ignoring remote invitation")
	}
}

func (c *Channel) processAcceptance(msg message.Acceptance) {
	c.mutex.Lock()
	if c.state != SessionStateOffered && c.state != SessionStateMatched {
		c.mutex.Unlock()
		c.logger.WithField("state", c.State()).Debug("ignoring remote acceptance")
		return
	}

	c.setState(SessionStateMatched)
	c.isCaller = true
	c.caps = capability.Classify(msg.UserAgent)

	if err := c.engine.InitializePeerConnection(); err != nil {
		c.mutex.Unlock()
		c.logger.WithError(err).Error("failed to initialize peer connection")
		return
	}

	c.connectionStarted = true
	c.setState(SessionStateConnecting)
	c.mutex.Unlock()

	c.notifyObservers(func(o ChannelObserver) { o.OnAccepted(c.remoteID) })

	// Creating the data channel triggers the first negotiation round.
	c.engine.CreateDataChannel(dataChannelLabel)
}

func (c *Channel) processDenial(message.Denial) {
	c.mutex.Lock()
	if c.state != SessionStateOffered {
		c.mutex.Unlock()
		c.logger.WithField("state", c.State()).Debug("ignoring remote denial")
		return
	}
	c.setState(SessionStateReady)
	c.mutex.Unlock()

	c.notifyObservers(func(o ChannelObserver) { o.OnDenied(c.remoteID) })
}

func (c *Channel) processRemoteStop(message.Closed) {
	c.mutex.Lock()
	switch c.state {
	case SessionStateConnecting, SessionStateConnected:
		c.setState(SessionStateReady)
		c.mutex.Unlock()
		// OnStopped is emitted once the engine reports the closed ICE state.
		c.engine.ClosePeerConnection()

	case SessionStatePending, SessionStateMatched:
		c.setState(SessionStateReady)
		c.mutex.Unlock()
		// No-op unless a connection was already prepared.
		c.engine.ClosePeerConnection()
		c.notifyStopped()

	default:
		// An invitation is always preceded by a reset, so a stop while
		// ready or offered carries no session to tear down.
		c.mutex.Unlock()
		c.logger.Debug("ignoring remote stop, no active session")
	}
}

func (c *Channel) processNegotiationRequest(message.NegotiationNeeded) {
	c.mutex.Lock()
	c.negotiationNeeded = true
	c.mutex.Unlock()

	if c.engine.SignalingState() == webrtc.SignalingStateStable {
		c.createOffer()
	}
}

func (c *Channel) processRemoteDescription(msg message.Description) {
	c.mutex.Lock()
	switch c.state {
	case SessionStateReady, SessionStateOffered, SessionStatePending:
		c.mutex.Unlock()
		c.logger.WithField("state", c.State()).Warn("dropping remote description, no matched session")
		return
	}

	if err := c.engine.InitializePeerConnection(); err != nil {
		c.mutex.Unlock()
		c.logger.WithError(err).Error("failed to initialize peer connection")
		return
	}

	desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(msg.Type), SDP: msg.SDP}

	apply := true
	if msg.IsOffer() && c.engine.SignalingState() != webrtc.SignalingStateStable {
		// Offer glare: park the offer until our own exchange settles.
		// A newer deferred offer always replaces an older one.
		c.deferredRemoteOffer = &desc
		apply = false
	}

	if msg.IsOffer() && c.state == SessionStateMatched {
		c.connectionStarted = true
		c.setState(SessionStateConnecting)
	}
	c.mutex.Unlock()

	if apply {
		c.engine.SetRemoteDescription(desc)
	}
}

func (c *Channel) processRemoteCandidate(msg message.Candidate) {
	c.mutex.Lock()
	switch c.state {
	case SessionStateReady, SessionStateOffered, SessionStatePending:
		c.mutex.Unlock()
		c.logger.WithField("state", c.State()).Warn("dropping remote candidate, no matched session")
		return
	}
	c.mutex.Unlock()

	mid := msg.SDPMid
	index := uint16(msg.SDPMLineIndex)
	c.engine.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     msg.Candidate,
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	})
}

func (c *Channel) processTrackSources(msg message.TrackSources) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, source := range msg.Sources {
		c.remoteTrackSources[source.ID] = source.Source
	}
}
