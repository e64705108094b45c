package p2p

import (
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/quickrtc/p2p-go/pkg/engine"
	"github.com/quickrtc/p2p-go/pkg/message"
)

// The channel's private loop over the engine's events. Runs until Release.
func (c *Channel) processEngineEvents() {
	for {
		select {
		case <-c.quit:
			return
		case event := <-c.engine.Events():
			c.processEngineEvent(event)
		}
	}
}

func (c *Channel) processEngineEvent(event engine.Event) {
	switch ev := event.(type) {
	case engine.SignalingStateChanged:
		c.onSignalingStateChanged(ev.State)
	case engine.ICEConnectionStateChanged:
		c.onICEConnectionStateChanged(ev.State)
	case engine.ICECandidateFound:
		c.onICECandidateFound(ev.Candidate)
	case engine.RenegotiationNeeded:
		c.onRenegotiationNeeded()
	case engine.CreateSDPSuccess:
		c.onCreateSDPSuccess(ev.Description)
	case engine.CreateSDPFailure:
		c.onFatalSDPFailure("failed to create session description", ev.Err)
	case engine.SetLocalSDPSuccess:
		c.onSetLocalSDPSuccess(ev.Description)
	case engine.SetLocalSDPFailure:
		c.onFatalSDPFailure("failed to set local description", ev.Err)
	case engine.SetRemoteSDPSuccess:
		c.onSetRemoteSDPSuccess(ev.Description)
	case engine.SetRemoteSDPFailure:
		c.onFatalSDPFailure("failed to set remote description", ev.Err)
	case engine.StreamAdded:
		c.onStreamAdded(ev.Stream)
	case engine.StreamRemoved:
		c.onStreamRemoved(ev.Stream)
	case engine.DataChannelCreated:
		c.onDataChannelCreated()
	case engine.DataChannelOpen:
		c.onDataChannelOpen()
	case engine.DataChannelClosed:
		c.onDataChannelClosed()
	case engine.DataChannelMessage:
		c.onDataChannelMessage(ev.Message)
	default:
		c.logger.Errorf("unknown engine event type: %T", ev)
	}
}

// Requests a new offer from the engine unless one is already in flight, in
// which case the need is recorded and served once the current exchange
// settles.
func (c *Channel) createOffer() {
	c.mutex.Lock()
	if c.isCreatingOffer {
		c.negotiationNeeded = true
		c.mutex.Unlock()
		return
	}
	c.isCreatingOffer = true
	c.negotiationNeeded = false
	c.mutex.Unlock()

	c.engine.CreateOffer()
}

func (c *Channel) onSignalingStateChanged(state webrtc.SignalingState) {
	c.logger.WithField("state", state).Debug("signaling state changed")

	if state != webrtc.SignalingStateStable {
		return
	}

	c.mutex.Lock()
	deferred := c.deferredRemoteOffer
	c.deferredRemoteOffer = nil
	c.mutex.Unlock()

	if deferred != nil {
		c.engine.SetRemoteDescription(*deferred)
		return
	}

	c.checkWaitedList()
}

// Serves whatever piled up while the connection was busy negotiating:
// pending streams first, then a postponed renegotiation.
func (c *Channel) checkWaitedList() {
	if !c.pendingPublish.empty() || !c.pendingUnpublish.empty() {
		c.drainPendingStreams()
		return
	}

	c.mutex.Lock()
	renegotiate := c.negotiationNeeded && c.isCaller
	c.mutex.Unlock()

	if renegotiate {
		c.createOffer()
	}
}

// Announces the track sources of every pending stream and hands the streams
// over to the engine. The track-sources message always precedes the
// engine-level stream addition so the remote side can classify the tracks.
func (c *Channel) drainPendingStreams() {
	for _, stream := range c.pendingPublish.drain() {
		audioSource := message.SourceMic
		videoSource := message.SourceCamera
		if stream.ScreenCast() {
			audioSource = message.SourceScreenCast
			videoSource = message.SourceScreenCast
		}

		sources := make([]message.TrackSource, 0, len(stream.AudioTracks())+len(stream.VideoTracks()))
		for _, track := range stream.AudioTracks() {
			sources = append(sources, message.TrackSource{ID: track.ID(), Source: audioSource})
		}
		for _, track := range stream.VideoTracks() {
			sources = append(sources, message.TrackSource{ID: track.ID(), Source: videoSource})
		}

		c.sendMessage(message.TrackSources{Sources: sources}, nil, nil)
		c.engine.AddStream(stream)
	}

	for _, stream := range c.pendingUnpublish.drain() {
		c.engine.RemoveStream(stream)
	}
}

func (c *Channel) onICEConnectionStateChanged(state webrtc.ICEConnectionState) {
	c.logger.WithField("state", state).Debug("ICE connection state changed")

	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		c.mutex.Lock()
		if c.state != SessionStateConnecting && c.state != SessionStateConnected {
			c.mutex.Unlock()
			return
		}
		started := c.state == SessionStateConnecting
		c.setState(SessionStateConnected)
		c.lastDisconnect = time.Time{}
		c.mutex.Unlock()

		if started {
			c.telemetry.AddEvent("session started")
			c.notifyObservers(func(o ChannelObserver) { o.OnStarted(c.remoteID) })
		}

		c.checkWaitedList()

	case webrtc.ICEConnectionStateDisconnected:
		c.mutex.Lock()
		c.lastDisconnect = time.Now()
		c.mutex.Unlock()
		c.scheduleReconnectCheck()

	case webrtc.ICEConnectionStateClosed:
		c.onConnectionClosed()
	}
}

// Gives ICE a grace period to recover before the session is given up.
func (c *Channel) scheduleReconnectCheck() {
	timeout := time.Duration(c.config.ReconnectTimeout) * time.Second

	time.AfterFunc(timeout, func() {
		c.mutex.Lock()
		last := c.lastDisconnect
		c.mutex.Unlock()

		if last.IsZero() || time.Since(last) < timeout {
			// The disconnect has resolved in the meantime.
			return
		}

		c.logger.Warn("connection did not recover, stopping the session")
		c.Stop(nil, nil)
	})
}

func (c *Channel) onConnectionClosed() {
	c.mutex.Lock()
	stopped := c.connectionStarted
	c.setState(SessionStateReady)
	c.cleanLastPeerConnectionLocked()
	c.mutex.Unlock()

	c.published.clear()
	c.pendingPublish.drain()
	c.pendingUnpublish.drain()
	c.pendingMessages.drain()

	if stopped {
		c.notifyStopped()
	}
}

// Resets the per-session bookkeeping. Must be called with the state mutex
// held.
func (c *Channel) cleanLastPeerConnectionLocked() {
	c.deferredRemoteOffer = nil
	c.negotiationNeeded = false
	c.isCreatingOffer = false
	c.isCaller = false
	c.connectionStarted = false
	c.lastDisconnect = time.Time{}
	c.dataChannelCreated = false
	c.dataChannelOpen = false
	c.remoteTrackSources = make(map[string]string)
	c.remoteStreams = make(map[string]*RemoteStream)
}

func (c *Channel) onICECandidateFound(candidate webrtc.ICECandidateInit) {
	mid := ""
	if candidate.SDPMid != nil {
		mid = *candidate.SDPMid
	}
	index := 0
	if candidate.SDPMLineIndex != nil {
		index = int(*candidate.SDPMLineIndex)
	}

	c.sendMessage(message.Candidate{
		SDPMid:        mid,
		SDPMLineIndex: index,
		Candidate:     candidate.Candidate,
	}, nil, nil)
}

func (c *Channel) onRenegotiationNeeded() {
	c.mutex.Lock()
	isCaller := c.isCaller
	c.mutex.Unlock()

	if isCaller {
		c.createOffer()
		return
	}

	// The callee never produces offers; it asks the caller to renegotiate.
	c.sendMessage(message.NegotiationNeeded{}, nil, nil)
}

func (c *Channel) onCreateSDPSuccess(desc webrtc.SessionDescription) {
	desc.SDP = c.applyBitrateLimits(desc.SDP)
	c.engine.SetLocalDescription(desc)
}

func (c *Channel) onSetLocalSDPSuccess(desc webrtc.SessionDescription) {
	c.mutex.Lock()
	c.isCreatingOffer = false
	c.mutex.Unlock()

	c.sendMessage(message.Description{Type: desc.Type.String(), SDP: desc.SDP}, nil, nil)
}

func (c *Channel) onSetRemoteSDPSuccess(desc webrtc.SessionDescription) {
	if desc.Type == webrtc.SDPTypeOffer {
		c.engine.CreateAnswer()
	}
}

// A failed SDP exchange cannot be attributed to a specific user call; the
// session is torn down instead and observers learn about it via OnStopped.
func (c *Channel) onFatalSDPFailure(context string, err error) {
	c.logger.WithError(err).Error(context)
	c.telemetry.Fail(err)
	c.Stop(nil, nil)
}

func (c *Channel) onStreamAdded(info engine.StreamInfo) {
	c.mutex.Lock()

	audioSource := c.firstKnownSource(info.AudioTrackIDs)
	videoSource := c.firstKnownSource(info.VideoTrackIDs)

	if audioSource == "" && videoSource == "" {
		c.mutex.Unlock()
		c.logger.WithField("stream", info.Label).Warn("dropping remote stream without source information")
		return
	}

	switch videoSource {
	case message.SourceCamera, message.SourceScreenCast:
		stream := &RemoteStream{
			label:         info.Label,
			source:        videoSource,
			audioTrackIDs: info.AudioTrackIDs,
			videoTrackIDs: info.VideoTrackIDs,
		}
		c.remoteStreams[info.Label] = stream
		c.mutex.Unlock()

		c.notifyObservers(func(o ChannelObserver) { o.OnStreamAdded(stream) })

	default:
		c.mutex.Unlock()
		c.logger.WithField("stream", info.Label).Error("dropping remote stream with unsupported video source")
	}
}

func (c *Channel) onStreamRemoved(info engine.StreamInfo) {
	c.mutex.Lock()
	stream, known := c.remoteStreams[info.Label]
	if !known {
		c.mutex.Unlock()
		c.logger.WithField("stream", info.Label).Warn("ignoring removal of unknown remote stream")
		return
	}

	delete(c.remoteStreams, info.Label)
	for _, id := range info.TrackIDs() {
		delete(c.remoteTrackSources, id)
	}
	c.mutex.Unlock()

	c.notifyObservers(func(o ChannelObserver) { o.OnStreamRemoved(stream) })
}

// Returns the announced source of the first track that has one. Must be
// called with the state mutex held.
func (c *Channel) firstKnownSource(trackIDs []string) string {
	for _, id := range trackIDs {
		if source, ok := c.remoteTrackSources[id]; ok {
			return source
		}
	}
	return ""
}

func (c *Channel) onDataChannelCreated() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.dataChannelCreated = true
}

func (c *Channel) onDataChannelOpen() {
	c.mutex.Lock()
	c.dataChannelCreated = true
	c.dataChannelOpen = true
	c.mutex.Unlock()

	c.drainPendingMessages()
}

func (c *Channel) onDataChannelClosed() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.dataChannelCreated = false
	c.dataChannelOpen = false
}

func (c *Channel) onDataChannelMessage(text string) {
	c.notifyObservers(func(o ChannelObserver) { o.OnData(c.remoteID, text) })
}

func (c *Channel) drainPendingMessages() {
	for _, text := range c.pendingMessages.drain() {
		if err := c.engine.SendText(text); err != nil {
			c.logger.WithError(err).Error("failed to deliver buffered message")
		}
	}
}
