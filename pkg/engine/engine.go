package engine

import (
	"github.com/pion/webrtc/v3"
)

// ConnectionStats is a snapshot of the engine's connection statistics.
type ConnectionStats struct {
	Report webrtc.StatsReport
}

// PeerEngine abstracts the WebRTC engine behind the capability set the
// session channel needs. The asynchronous operations are serialized onto the
// engine's own worker and complete via events delivered on the `Events`
// channel rather than via return values. InitializePeerConnection and
// SendText run on the caller's goroutine and report errors directly.
type PeerEngine interface {
	// Creates the underlying peer connection. Idempotent within a session.
	InitializePeerConnection() error

	// Asynchronous SDP operations. Completion is reported via
	// CreateSDPSuccess/CreateSDPFailure and the Set*SDP* event variants.
	CreateOffer()
	CreateAnswer()
	SetLocalDescription(desc webrtc.SessionDescription)
	SetRemoteDescription(desc webrtc.SessionDescription)

	// Feeds a remote ICE candidate to the connection.
	AddICECandidate(candidate webrtc.ICECandidateInit)

	// Attaches or withdraws the tracks of a local stream. Only permitted
	// while the signaling state is stable.
	AddStream(stream *LocalStream)
	RemoveStream(stream *LocalStream)

	// Creates the (single) data channel of the session.
	CreateDataChannel(label string)
	// Sends a text message over the data channel. Fails if the channel
	// does not exist or is not open yet.
	SendText(text string) error

	// Tears the current peer connection down. The engine reports the
	// terminal ICE state exactly once as a result.
	ClosePeerConnection()

	// Asynchronously fetches connection statistics.
	GetStats(onSuccess func(ConnectionStats), onFailure func(error))

	// Current signaling state of the connection. `SignalingStateStable`
	// when no connection exists.
	SignalingState() webrtc.SignalingState

	// The stream of engine events. Sealed on Release.
	Events() <-chan Event

	// Releases the engine's worker and event stream. The engine must not
	// be used afterwards.
	Release()
}
