package engine

import (
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

// StreamInfo describes a remote stream by its label and the ids of the
// tracks it carries, grouped by kind.
type StreamInfo struct {
	Label         string
	AudioTrackIDs []string
	VideoTrackIDs []string
}

// TrackIDs returns the ids of all tracks of the stream.
func (s StreamInfo) TrackIDs() []string {
	ids := make([]string, 0, len(s.AudioTrackIDs)+len(s.VideoTrackIDs))
	ids = append(ids, s.AudioTrackIDs...)
	ids = append(ids, s.VideoTrackIDs...)
	return ids
}

// LocalStream is a bundle of local tracks published together under one label.
type LocalStream struct {
	id          string
	audioTracks []webrtc.TrackLocal
	videoTracks []webrtc.TrackLocal
	screenCast  bool
}

// NewLocalStream creates a stream with the given id. An empty id is replaced
// with a random one.
func NewLocalStream(id string, screenCast bool) *LocalStream {
	if id == "" {
		id = uuid.NewString()
	}

	return &LocalStream{id: id, screenCast: screenCast}
}

func (s *LocalStream) ID() string {
	return s.id
}

// ScreenCast reports whether the stream originates from screen capture
// rather than from a microphone and camera.
func (s *LocalStream) ScreenCast() bool {
	return s.screenCast
}

func (s *LocalStream) AddAudioTrack(track webrtc.TrackLocal) {
	s.audioTracks = append(s.audioTracks, track)
}

func (s *LocalStream) AddVideoTrack(track webrtc.TrackLocal) {
	s.videoTracks = append(s.videoTracks, track)
}

func (s *LocalStream) AudioTracks() []webrtc.TrackLocal {
	return s.audioTracks
}

func (s *LocalStream) VideoTracks() []webrtc.TrackLocal {
	return s.videoTracks
}

func (s *LocalStream) tracks() []webrtc.TrackLocal {
	tracks := make([]webrtc.TrackLocal, 0, len(s.audioTracks)+len(s.videoTracks))
	tracks = append(tracks, s.audioTracks...)
	tracks = append(tracks, s.videoTracks...)
	return tracks
}
