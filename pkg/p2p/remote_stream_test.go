package p2p

import (
	"testing"
	"time"

	"github.com/quickrtc/p2p-go/pkg/engine"
	"github.com/quickrtc/p2p-go/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cameraStreamInfo() engine.StreamInfo {
	return engine.StreamInfo{
		Label:         "s1",
		AudioTrackIDs: []string{"audio-1"},
		VideoTrackIDs: []string{"video-1"},
	}
}

func TestRemoteStreamClassifiedByAnnouncedSources(t *testing.T) {
	channel, eng, _, observer := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	deliver(t, channel, message.TrackSources{Sources: []message.TrackSource{
		{ID: "audio-1", Source: message.SourceMic},
		{ID: "video-1", Source: message.SourceCamera},
	}})
	eng.emit(engine.StreamAdded{Stream: cameraStreamInfo()})

	require.Eventually(t, func() bool {
		return observer.count("stream-added:s1:camera") == 1
	}, settleTimeout, settleTick)
}

func TestRemoteStreamWithoutSourcesIsDropped(t *testing.T) {
	channel, eng, _, observer := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	// No track-sources announcement preceded this stream.
	eng.emit(engine.StreamAdded{Stream: cameraStreamInfo()})

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, observer.count("stream-added:s1:camera"))
}

func TestAudioOnlyClassificationIsDropped(t *testing.T) {
	channel, eng, _, observer := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	// Only the audio track has a source; a stream needs a classified video
	// track to be surfaced.
	deliver(t, channel, message.TrackSources{Sources: []message.TrackSource{
		{ID: "audio-1", Source: message.SourceMic},
	}})
	eng.emit(engine.StreamAdded{Stream: cameraStreamInfo()})

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, observer.count("stream-added:s1:camera"))
}

func TestScreenCastClassification(t *testing.T) {
	channel, eng, _, observer := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	deliver(t, channel, message.TrackSources{Sources: []message.TrackSource{
		{ID: "video-1", Source: message.SourceScreenCast},
	}})
	eng.emit(engine.StreamAdded{Stream: engine.StreamInfo{
		Label:         "desk",
		VideoTrackIDs: []string{"video-1"},
	}})

	require.Eventually(t, func() bool {
		return observer.count("stream-added:desk:screen-cast") == 1
	}, settleTimeout, settleTick)
}

func TestRemoteStreamRemovalForgetsSources(t *testing.T) {
	channel, eng, _, observer := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	deliver(t, channel, message.TrackSources{Sources: []message.TrackSource{
		{ID: "audio-1", Source: message.SourceMic},
		{ID: "video-1", Source: message.SourceCamera},
	}})
	eng.emit(engine.StreamAdded{Stream: cameraStreamInfo()})

	require.Eventually(t, func() bool {
		return observer.count("stream-added:s1:camera") == 1
	}, settleTimeout, settleTick)

	eng.emit(engine.StreamRemoved{Stream: cameraStreamInfo()})

	require.Eventually(t, func() bool {
		return observer.count("stream-removed:s1") == 1
	}, settleTimeout, settleTick)

	// The source entries were erased with the stream: the same stream
	// cannot be classified again without a fresh announcement.
	eng.emit(engine.StreamAdded{Stream: cameraStreamInfo()})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, observer.count("stream-added:s1:camera"))
}

func TestRemovalOfUnknownStreamIsIgnored(t *testing.T) {
	channel, eng, _, observer := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	eng.emit(engine.StreamRemoved{Stream: cameraStreamInfo()})

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, observer.count("stream-removed:s1"))
}
