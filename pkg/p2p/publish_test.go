package p2p

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/quickrtc/p2p-go/pkg/engine"
	"github.com/quickrtc/p2p-go/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStream(t *testing.T, id string, screenCast bool) *engine.LocalStream {
	t.Helper()

	stream := engine.NewLocalStream(id, screenCast)

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, id+"-audio", id)
	require.NoError(t, err)
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, id+"-video", id)
	require.NoError(t, err)

	stream.AddAudioTrack(audio)
	stream.AddVideoTrack(video)
	return stream
}

func publishOK(t *testing.T, channel *Channel, stream *engine.LocalStream) {
	t.Helper()

	done := make(chan struct{})
	channel.Publish(stream, func() { close(done) }, func(err error) { t.Errorf("publish failed: %v", err) })

	select {
	case <-done:
	case <-time.After(settleTimeout):
		t.Fatal("publish did not complete")
	}
}

func TestPublishRequiresConnectedSession(t *testing.T) {
	channel, _, sender, _ := newTestChannel(t, "beta", "alpha")

	deliver(t, channel, message.Invitation{UserAgent: chromeUA()})
	require.Eventually(t, func() bool {
		return channel.State() == SessionStatePending
	}, settleTimeout, settleTick)
	channel.Accept(nil, nil)
	require.Eventually(t, func() bool {
		return channel.State() == SessionStateMatched
	}, settleTimeout, settleTick)

	failed := make(chan error, 1)
	channel.Publish(newLocalStream(t, "cam", false), nil, func(err error) { failed <- err })

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, ErrInvalidState)
	case <-time.After(settleTimeout):
		t.Fatal("expected an invalid state failure")
	}

	// Nothing may have been queued or announced.
	assert.True(t, channel.pendingPublish.empty())
	assert.Empty(t, sentOfType[message.TrackSources](sender))
}

func TestPublishRejectsNilAndDuplicate(t *testing.T) {
	channel, eng, _, _ := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	failed := make(chan error, 2)
	channel.Publish(nil, nil, func(err error) { failed <- err })
	assert.ErrorIs(t, <-failed, ErrInvalidArgument)

	stream := newLocalStream(t, "cam", false)
	publishOK(t, channel, stream)

	channel.Publish(stream, nil, func(err error) { failed <- err })
	assert.ErrorIs(t, <-failed, ErrInvalidArgument)
}

func TestPublishAnnouncesSourcesBeforeAddingStream(t *testing.T) {
	channel, eng, sender, _ := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	publishOK(t, channel, newLocalStream(t, "cam", false))

	require.Eventually(t, func() bool {
		return len(eng.addedStreamsNow()) == 1
	}, settleTimeout, settleTick)

	// By the time the stream reached the engine, the sources were on the wire.
	announcements := sentOfType[message.TrackSources](sender)
	require.Len(t, announcements, 1)
	assert.ElementsMatch(t, []message.TrackSource{
		{ID: "cam-audio", Source: message.SourceMic},
		{ID: "cam-video", Source: message.SourceCamera},
	}, announcements[0].Sources)
}

func TestPublishScreenCastSources(t *testing.T) {
	channel, eng, sender, _ := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	publishOK(t, channel, newLocalStream(t, "desk", true))

	require.Eventually(t, func() bool {
		return len(sentOfType[message.TrackSources](sender)) == 1
	}, settleTimeout, settleTick)

	for _, source := range sentOfType[message.TrackSources](sender)[0].Sources {
		assert.Equal(t, message.SourceScreenCast, source.Source)
	}
}

func TestPublishSecondStreamNeedsPlanB(t *testing.T) {
	channel, eng, _, _ := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, firefoxUA())

	publishOK(t, channel, newLocalStream(t, "cam", false))

	failed := make(chan error, 1)
	channel.Publish(newLocalStream(t, "desk", true), nil, func(err error) { failed <- err })

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, ErrUnsupportedMethod)
	case <-time.After(settleTimeout):
		t.Fatal("expected an unsupported method failure")
	}
}

func TestUnpublishNeedsRemoveStreamSupport(t *testing.T) {
	channel, eng, _, _ := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, firefoxUA())

	stream := newLocalStream(t, "cam", false)
	publishOK(t, channel, stream)

	failed := make(chan error, 1)
	channel.Unpublish(stream, nil, func(err error) { failed <- err })
	assert.ErrorIs(t, <-failed, ErrUnsupportedMethod)
}

func TestUnpublishRemovesStream(t *testing.T) {
	channel, eng, _, _ := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	stream := newLocalStream(t, "cam", false)
	publishOK(t, channel, stream)

	done := make(chan struct{})
	channel.Unpublish(stream, func() { close(done) }, func(err error) { t.Errorf("unpublish failed: %v", err) })

	select {
	case <-done:
	case <-time.After(settleTimeout):
		t.Fatal("unpublish did not complete")
	}

	require.Eventually(t, func() bool {
		eng.mutex.Lock()
		defer eng.mutex.Unlock()
		return len(eng.removedIDs) == 1 && eng.removedIDs[0] == "cam"
	}, settleTimeout, settleTick)

	// Unpublishing an unknown stream is an argument error.
	failed := make(chan error, 1)
	channel.Unpublish(stream, nil, func(err error) { failed <- err })
	assert.ErrorIs(t, <-failed, ErrInvalidArgument)
}

func TestSendBuffersUntilDataChannelOpens(t *testing.T) {
	channel, eng, _, _ := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	sent := make(chan struct{})
	channel.Send("hello", func() { close(sent) }, func(err error) { t.Errorf("send failed: %v", err) })

	select {
	case <-sent:
	case <-time.After(settleTimeout):
		t.Fatal("send did not complete")
	}

	channel.Send("world", nil, nil)
	assert.Empty(t, eng.sentTextsNow())

	eng.openDataChannel()

	require.Eventually(t, func() bool {
		texts := eng.sentTextsNow()
		return len(texts) == 2 && texts[0] == "hello" && texts[1] == "world"
	}, settleTimeout, settleTick)

	// With the channel open, messages go straight through.
	channel.Send("direct", nil, nil)
	require.Eventually(t, func() bool {
		return len(eng.sentTextsNow()) == 3
	}, settleTimeout, settleTick)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	channel, _, _, _ := newTestChannel(t, "alpha", "beta")

	failed := make(chan error, 1)
	channel.Send("", nil, func(err error) { failed <- err })
	assert.ErrorIs(t, <-failed, ErrInvalidArgument)
}

func TestIncomingDataReachesObservers(t *testing.T) {
	channel, eng, _, observer := newTestChannel(t, "alpha", "beta")
	connectAsCaller(t, channel, eng, chromeUA())

	eng.emit(engine.DataChannelMessage{Message: "hi there"})

	require.Eventually(t, func() bool {
		return observer.count("data:hi there") == 1
	}, settleTimeout, settleTick)
}

func TestConnectionStatsRequireConnection(t *testing.T) {
	channel, eng, _, _ := newTestChannel(t, "alpha", "beta")

	failed := make(chan error, 1)
	channel.GetConnectionStats(nil, func(err error) { failed <- err })
	assert.ErrorIs(t, <-failed, ErrInvalidState)

	connectAsCaller(t, channel, eng, chromeUA())

	done := make(chan struct{})
	channel.GetConnectionStats(
		func(engine.ConnectionStats) { close(done) },
		func(err error) { t.Errorf("stats failed: %v", err) },
	)

	select {
	case <-done:
	case <-time.After(settleTimeout):
		t.Fatal("stats did not complete")
	}
}
