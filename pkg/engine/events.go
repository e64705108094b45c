package engine

import "github.com/pion/webrtc/v3"

// Due to the limitation of Go, we're using the `interface{}` to be able to
// switch on the actual type of the event at runtime.
type Event = interface{}

type SignalingStateChanged struct {
	State webrtc.SignalingState
}

type ICEConnectionStateChanged struct {
	State webrtc.ICEConnectionState
}

type ICECandidateFound struct {
	Candidate webrtc.ICECandidateInit
}

// StreamAdded is emitted once the engine has seen all tracks of a new remote
// stream.
type StreamAdded struct {
	Stream StreamInfo
}

type StreamRemoved struct {
	Stream StreamInfo
}

// RenegotiationNeeded is emitted whenever the set of local tracks or channels
// changed in a way that requires a new offer/answer exchange.
type RenegotiationNeeded struct{}

type CreateSDPSuccess struct {
	Description webrtc.SessionDescription
}

type CreateSDPFailure struct {
	Err error
}

type SetLocalSDPSuccess struct {
	Description webrtc.SessionDescription
}

type SetLocalSDPFailure struct {
	Err error
}

type SetRemoteSDPSuccess struct {
	Description webrtc.SessionDescription
}

type SetRemoteSDPFailure struct {
	Err error
}

// DataChannelCreated is emitted when a data channel appears, either because
// we created one or because the remote peer did.
type DataChannelCreated struct {
	Label string
}

type DataChannelOpen struct {
	Label string
}

type DataChannelClosed struct{}

type DataChannelMessage struct {
	Message string
}
