package p2p

// SessionState is the lifecycle state of a session with one remote peer.
//
// Allowed transitions:
//
//	Ready      -> Offered (local invite), Pending (remote invitation)
//	Offered    -> Matched (remote acceptance or lost tie-break), Ready (stop, remote deny, send failure)
//	Pending    -> Matched (local accept), Ready (local deny, remote stop)
//	Matched    -> Connecting (offer exchange begins), Ready (stop)
//	Connecting -> Connected (ICE connected/completed), Ready (stop, fatal SDP failure)
//	Connected  -> Ready (stop, ICE closed, reconnect timeout)
type SessionState int

const (
	// No session. The channel is reusable from here.
	SessionStateReady SessionState = iota
	// We have invited the remote peer and wait for their verdict.
	SessionStateOffered
	// The remote peer has invited us and waits for ours.
	SessionStatePending
	// Both sides agreed to connect; no SDP has been exchanged yet.
	SessionStateMatched
	// The offer/answer and ICE exchange is in progress.
	SessionStateConnecting
	// Media and data can flow.
	SessionStateConnected
)

func (s SessionState) String() string {
	switch s {
	case SessionStateReady:
		return "ready"
	case SessionStateOffered:
		return "offered"
	case SessionStatePending:
		return "pending"
	case SessionStateMatched:
		return "matched"
	case SessionStateConnecting:
		return "connecting"
	case SessionStateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
