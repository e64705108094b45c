package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/quickrtc/p2p-go/pkg/channel"
	"github.com/quickrtc/p2p-go/pkg/worker"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoPeerConnection        = errors.New("no peer connection")
	ErrDataChannelNotAvailable = errors.New("data channel is not available")
	ErrDataChannelNotReady     = errors.New("data channel is not ready")
)

// How long to wait for the remaining tracks of a remote stream before
// announcing it. Pion reports tracks one by one whereas the session layer
// expects whole streams.
const streamGatherInterval = 500 * time.Millisecond

var _ PeerEngine = (*PionEngine)(nil)

// PionEngine is a PeerEngine implementation on top of Pion's WebRTC stack.
// The SDP, ICE, stream, data-channel, stats and close operations are funneled
// through a single worker goroutine; InitializePeerConnection and SendText run
// on the caller's goroutine under the engine mutex. Everything Pion tells us
// back is translated into engine events.
type PionEngine struct {
	logger  *logrus.Entry
	factory *PeerConnectionFactory

	ops    *worker.Worker[func()]
	events chan Event
	sink   *channel.Sink[Event]

	mutex          sync.Mutex
	peerConnection *webrtc.PeerConnection
	dataChannel    *webrtc.DataChannel
	remoteStreams  map[string]*StreamInfo
	pendingStreams map[string]*time.Timer
	streamSenders  map[string][]*webrtc.RTPSender
}

func NewPionEngine(factory *PeerConnectionFactory, logger *logrus.Entry) *PionEngine {
	events := make(chan Event, 128)

	engine := &PionEngine{
		logger:         logger,
		factory:        factory,
		events:         events,
		sink:           channel.NewSink[Event](events),
		remoteStreams:  make(map[string]*StreamInfo),
		pendingStreams: make(map[string]*time.Timer),
		streamSenders:  make(map[string][]*webrtc.RTPSender),
	}

	engine.ops = worker.StartWorker(worker.Config[func()]{
		Name:      "PeerConnectionEngineWorker",
		QueueSize: 128,
		OnTask:    func(op func()) { op() },
	})

	return engine
}

func (e *PionEngine) Events() <-chan Event {
	return e.events
}

func (e *PionEngine) InitializePeerConnection() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.peerConnection != nil {
		return nil
	}

	peerConnection, err := e.factory.CreatePeerConnection()
	if err != nil {
		e.logger.WithError(err).Error("failed to create peer connection")
		return err
	}

	peerConnection.OnSignalingStateChange(func(state webrtc.SignalingState) {
		e.emit(SignalingStateChanged{State: state})
	})
	peerConnection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		// The terminal state is reported by `ClosePeerConnection` itself,
		// exactly once, regardless of how the connection died.
		if state != webrtc.ICEConnectionStateClosed {
			e.emit(ICEConnectionStateChanged{State: state})
		}
	})
	peerConnection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			e.logger.Debug("ICE candidate gathering finished")
			return
		}
		e.emit(ICECandidateFound{Candidate: candidate.ToJSON()})
	})
	peerConnection.OnNegotiationNeeded(func() {
		e.emit(RenegotiationNeeded{})
	})
	peerConnection.OnTrack(e.onTrack)
	peerConnection.OnDataChannel(func(dc *webrtc.DataChannel) {
		e.adoptDataChannel(dc)
	})

	e.peerConnection = peerConnection
	return nil
}

func (e *PionEngine) CreateOffer() {
	e.post(func(pc *webrtc.PeerConnection) {
		offer, err := pc.CreateOffer(nil)
		if err != nil {
			e.emit(CreateSDPFailure{Err: err})
			return
		}
		e.emit(CreateSDPSuccess{Description: offer})
	})
}

func (e *PionEngine) CreateAnswer() {
	e.post(func(pc *webrtc.PeerConnection) {
		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			e.emit(CreateSDPFailure{Err: err})
			return
		}
		e.emit(CreateSDPSuccess{Description: answer})
	})
}

func (e *PionEngine) SetLocalDescription(desc webrtc.SessionDescription) {
	e.post(func(pc *webrtc.PeerConnection) {
		if err := pc.SetLocalDescription(desc); err != nil {
			e.emit(SetLocalSDPFailure{Err: err})
			return
		}
		e.emit(SetLocalSDPSuccess{Description: desc})
	})
}

func (e *PionEngine) SetRemoteDescription(desc webrtc.SessionDescription) {
	e.post(func(pc *webrtc.PeerConnection) {
		if err := pc.SetRemoteDescription(desc); err != nil {
			e.emit(SetRemoteSDPFailure{Err: err})
			return
		}
		e.emit(SetRemoteSDPSuccess{Description: desc})
	})
}

func (e *PionEngine) AddICECandidate(candidate webrtc.ICECandidateInit) {
	e.post(func(pc *webrtc.PeerConnection) {
		if err := pc.AddICECandidate(candidate); err != nil {
			e.logger.WithError(err).Error("failed to add ICE candidate")
		}
	})
}

func (e *PionEngine) AddStream(stream *LocalStream) {
	e.post(func(pc *webrtc.PeerConnection) {
		senders := make([]*webrtc.RTPSender, 0, len(stream.tracks()))
		for _, track := range stream.tracks() {
			sender, err := pc.AddTrack(track)
			if err != nil {
				e.logger.WithError(err).Errorf("failed to add track %s", track.ID())
				continue
			}
			senders = append(senders, sender)
		}

		e.mutex.Lock()
		e.streamSenders[stream.ID()] = senders
		e.mutex.Unlock()
	})
}

func (e *PionEngine) RemoveStream(stream *LocalStream) {
	e.post(func(pc *webrtc.PeerConnection) {
		e.mutex.Lock()
		senders := e.streamSenders[stream.ID()]
		delete(e.streamSenders, stream.ID())
		e.mutex.Unlock()

		for _, sender := range senders {
			if err := pc.RemoveTrack(sender); err != nil {
				e.logger.WithError(err).Error("failed to remove track")
			}
		}
	})
}

func (e *PionEngine) CreateDataChannel(label string) {
	e.post(func(pc *webrtc.PeerConnection) {
		e.mutex.Lock()
		existing := e.dataChannel
		e.mutex.Unlock()

		if existing != nil {
			return
		}

		dc, err := pc.CreateDataChannel(label, nil)
		if err != nil {
			e.logger.WithError(err).Error("failed to create data channel")
			return
		}

		e.adoptDataChannel(dc)
	})
}

func (e *PionEngine) SendText(text string) error {
	e.mutex.Lock()
	dc := e.dataChannel
	e.mutex.Unlock()

	if dc == nil {
		return ErrDataChannelNotAvailable
	}
	if dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrDataChannelNotReady
	}

	return dc.SendText(text)
}

func (e *PionEngine) ClosePeerConnection() {
	e.post(func(pc *webrtc.PeerConnection) {
		e.mutex.Lock()
		removed := make([]StreamInfo, 0, len(e.remoteStreams))
		for _, stream := range e.remoteStreams {
			removed = append(removed, *stream)
		}
		for label, timer := range e.pendingStreams {
			timer.Stop()
			delete(e.pendingStreams, label)
		}
		e.peerConnection = nil
		e.dataChannel = nil
		e.remoteStreams = make(map[string]*StreamInfo)
		e.streamSenders = make(map[string][]*webrtc.RTPSender)
		e.mutex.Unlock()

		if err := pc.Close(); err != nil {
			e.logger.WithError(err).Error("failed to close peer connection")
		}

		for _, stream := range removed {
			e.emit(StreamRemoved{Stream: stream})
		}
		e.emit(ICEConnectionStateChanged{State: webrtc.ICEConnectionStateClosed})
	})
}

func (e *PionEngine) GetStats(onSuccess func(ConnectionStats), onFailure func(error)) {
	err := e.ops.Send(func() {
		e.mutex.Lock()
		pc := e.peerConnection
		e.mutex.Unlock()

		if pc == nil {
			onFailure(ErrNoPeerConnection)
			return
		}

		onSuccess(ConnectionStats{Report: pc.GetStats()})
	})
	if err != nil {
		onFailure(err)
	}
}

func (e *PionEngine) SignalingState() webrtc.SignalingState {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.peerConnection == nil {
		return webrtc.SignalingStateStable
	}

	return e.peerConnection.SignalingState()
}

func (e *PionEngine) Release() {
	e.sink.Seal()
	e.ops.Stop()
}

// Posts an operation to the engine worker. The operation is skipped (and
// logged) if no peer connection exists by the time it runs.
func (e *PionEngine) post(op func(pc *webrtc.PeerConnection)) {
	err := e.ops.Send(func() {
		e.mutex.Lock()
		pc := e.peerConnection
		e.mutex.Unlock()

		if pc == nil {
			e.logger.Debug("skipping engine operation, no peer connection")
			return
		}

		op(pc)
	})
	if err != nil {
		e.logger.WithError(err).Error("failed to post engine operation")
	}
}

func (e *PionEngine) emit(event Event) {
	if err := e.sink.Send(event); err != nil {
		e.logger.WithError(err).Debug("dropping engine event, sink sealed")
	}
}

// Accumulates incoming tracks into per-stream infos and announces the stream
// once no new track has arrived for `streamGatherInterval`.
func (e *PionEngine) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	label := track.StreamID()

	e.mutex.Lock()
	defer e.mutex.Unlock()

	info := e.remoteStreams[label]
	if info == nil {
		info = &StreamInfo{Label: label}
		e.remoteStreams[label] = info
	}

	switch track.Kind() {
	case webrtc.RTPCodecTypeAudio:
		info.AudioTrackIDs = append(info.AudioTrackIDs, track.ID())
	case webrtc.RTPCodecTypeVideo:
		info.VideoTrackIDs = append(info.VideoTrackIDs, track.ID())
	default:
		e.logger.Warnf("ignoring track %s of unknown kind", track.ID())
		return
	}

	if timer := e.pendingStreams[label]; timer != nil {
		timer.Stop()
	}

	e.pendingStreams[label] = time.AfterFunc(streamGatherInterval, func() {
		e.mutex.Lock()
		delete(e.pendingStreams, label)
		info, known := e.remoteStreams[label]
		if !known {
			e.mutex.Unlock()
			return
		}
		snapshot := *info
		e.mutex.Unlock()

		e.emit(StreamAdded{Stream: snapshot})
	})
}

func (e *PionEngine) adoptDataChannel(dc *webrtc.DataChannel) {
	e.mutex.Lock()
	if e.dataChannel != nil {
		e.mutex.Unlock()
		e.logger.Error("data channel already exists")
		dc.Close()
		return
	}
	e.dataChannel = dc
	e.mutex.Unlock()

	e.logger.WithField("label", dc.Label()).Debug("data channel ready")
	e.emit(DataChannelCreated{Label: dc.Label()})

	dc.OnOpen(func() {
		e.emit(DataChannelOpen{Label: dc.Label()})
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			e.emit(DataChannelMessage{Message: string(msg.Data)})
		} else {
			e.logger.Warn("data channel message is not a string, ignoring")
		}
	})

	dc.OnError(func(err error) {
		e.logger.WithError(err).Error("data channel error")
	})

	dc.OnClose(func() {
		e.mutex.Lock()
		if e.dataChannel == dc {
			e.dataChannel = nil
		}
		e.mutex.Unlock()

		e.emit(DataChannelClosed{})
	})
}
