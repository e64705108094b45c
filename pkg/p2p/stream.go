package p2p

// RemoteStream is a media stream published by the remote peer, surfaced to
// observers once its tracks have been matched against the source labels the
// peer announced over signaling.
type RemoteStream struct {
	label         string
	source        string
	audioTrackIDs []string
	videoTrackIDs []string
}

// Label is the engine's identifier of the stream.
func (s *RemoteStream) Label() string {
	return s.label
}

// Source is the origin of the stream's video: "camera" or "screen-cast".
func (s *RemoteStream) Source() string {
	return s.source
}

func (s *RemoteStream) AudioTrackIDs() []string {
	return s.audioTrackIDs
}

func (s *RemoteStream) VideoTrackIDs() []string {
	return s.videoTrackIDs
}
