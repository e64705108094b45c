package message

import "github.com/quickrtc/p2p-go/pkg/sysinfo"

// Wire type tags of the signaling envelope.
const (
	typeInvitation        = "chat-invitation"
	typeAcceptance        = "chat-accepted"
	typeDenial            = "chat-denied"
	typeClosed            = "chat-closed"
	typeNegotiationNeeded = "chat-negotiation-needed"
	typeSignal            = "chat-signal"
	typeTrackSources      = "chat-track-sources"
)

// Inner type tags of the `chat-signal` payload.
const (
	signalOffer      = "offer"
	signalAnswer     = "answer"
	signalCandidates = "candidates"
)

// Source labels a media track may carry.
const (
	SourceMic        = "mic"
	SourceCamera     = "camera"
	SourceScreenCast = "screen-cast"
)

// Due to the limitation of Go, we're using the `interface{}` to be able to
// switch on the actual type of the decoded message at runtime.
type Content = interface{}

// Invitation asks the remote peer to start a session.
type Invitation struct {
	UserAgent sysinfo.UserAgent
}

// Acceptance confirms a previously received invitation.
type Acceptance struct {
	UserAgent sysinfo.UserAgent
}

// Denial rejects a previously received invitation.
type Denial struct{}

// Closed tears the session down (or resets a stale one).
type Closed struct{}

// NegotiationNeeded asks the caller side to produce a fresh offer.
type NegotiationNeeded struct{}

// Description carries a remote SDP offer or answer.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate carries a single trickled ICE candidate.
type Candidate struct {
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
	Candidate     string `json:"candidate"`
}

// TrackSource labels one media track with the device it originates from.
type TrackSource struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// TrackSources announces the source labels for the tracks of a stream that is
// about to be added to the connection.
type TrackSources struct {
	Sources []TrackSource
}

// IsOffer reports whether the description is an SDP offer.
func (d Description) IsOffer() bool {
	return d.Type == signalOffer
}
